// Package main is the entry point for the adhand announcement daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/adhan/internal/audio"
	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/daemon"
	"github.com/jmylchreest/adhan/internal/dbus"
	"github.com/jmylchreest/adhan/internal/mqtt"
	"github.com/jmylchreest/adhan/internal/store"
)

const taskMQTTHeartbeat = "mqtt-heartbeat"

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to adhand.toml (default: $XDG_CONFIG_HOME/adhan/adhand.toml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("adhand version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath); err != nil {
		logger.Error("adhand failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	logger.Info("starting adhand", "version", version)

	cfg, err := config.LoadDaemonConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location.Load()
	if err != nil {
		return err
	}
	if err := config.EnsureDataDir(); err != nil {
		logger.Warn("failed to create data directory", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Timetable
	timetable := store.NewTimetable(cfg.TimetablePath(), loc)
	defer timetable.Close()
	if err := timetable.Hydrate(); err != nil {
		logger.Warn("failed to load timetable, announcements are off until it loads", "error", err)
	}
	logger.Info("timetable loaded", "path", timetable.Path(), "days", timetable.Len(), "timezone", loc)

	if cfg.Timetable.Watch {
		fw, err := store.NewFileWatcher(timetable, timetable.Path(), logger.With("component", "timetable"))
		if err != nil {
			logger.Warn("failed to create timetable watcher", "error", err)
		} else {
			fw.OnReload(func(err error) {
				if err != nil {
					logger.Warn("timetable reload failed, keeping previous days", "error", err)
					return
				}
				logger.Info("timetable reloaded", "days", timetable.Len())
			})
			if err := fw.Start(); err != nil {
				logger.Warn("failed to start timetable watcher", "error", err)
			}
			defer fw.Stop()
		}
	}

	// Kiosk
	statePath := config.StatePath()
	device := daemon.NewDevice(cfg, logger.With("component", "device"))
	kiosk := daemon.NewKiosk(cfg, timetable, device, statePath, logger)
	defer kiosk.Close()

	if cfg.Quiet.Enabled {
		if err := kiosk.SetQuiet(true, store.QuietTriggerConfig, "adhand"); err != nil {
			logger.Warn("failed to persist quiet mode", "error", err)
		}
	} else if state, err := store.LoadSharedState(statePath); err == nil {
		kiosk.ApplyState(state)
	}

	scheduler := daemon.NewScheduler(logger.With("component", "scheduler"))
	kiosk.RegisterTasks(scheduler)

	// MQTT
	publisher := setupMQTT(cfg, kiosk, scheduler, logger)

	// D-Bus
	var server *dbus.ControlServer
	if cfg.DBus.Enabled {
		server = setupDBus(cfg, kiosk, logger)
	}

	kiosk.Start(ctx)

	if cfg.Audio.WatchAssets {
		assets := audio.NewWatcher(kiosk.Manager(), logger.With("component", "assets"))
		kiosk.WatchAssets(assets, cfg.AssetDir())
		if err := assets.Start(ctx); err != nil {
			logger.Warn("failed to start asset watcher", "error", err)
		}
		defer assets.Stop()
	}

	stateWatcher := daemon.NewStateWatcher(statePath, logger)
	stateWatcher.SetChangeCallback(kiosk.ApplyState)
	if err := stateWatcher.Start(ctx); err != nil {
		logger.Warn("failed to start state watcher", "error", err)
	}
	defer stateWatcher.Stop()

	configWatcher, err := daemon.NewConfigWatcher(configPath, logger)
	if err != nil {
		logger.Warn("failed to create config watcher", "error", err)
	} else {
		configWatcher.SetReloadCallback(func(newConfig *config.DaemonConfig) {
			kiosk.ApplyConfig(newConfig)
			scheduler.SetInterval(daemon.TaskMonitor, newConfig.Audio.MonitorInterval.Duration())
			scheduler.SetInterval(daemon.TaskHeartbeat, newConfig.Audio.HeartbeatInterval.Duration())
			if publisher != nil {
				scheduler.SetInterval(taskMQTTHeartbeat, newConfig.MQTT.HeartbeatInterval.Duration())
			}
		})
		configWatcher.SetErrorCallback(func(err error) {
			kiosk.Reporter().Report(err)
		})
		if err := configWatcher.StartWith(ctx, cfg); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		}
		defer configWatcher.Stop()
	}

	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	if publisher != nil {
		publishSystem(publisher, mqtt.EventStartup, "", kiosk, logger)
	}
	logger.Info("adhand ready", "location", cfg.Location.Name, "assets", len(kiosk.Assets()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	cancel()
	scheduler.Stop()
	if server != nil {
		_ = server.Stop()
	}
	if publisher != nil {
		publishSystem(publisher, mqtt.EventShutdown, sigName(sig), kiosk, logger)
		_ = publisher.Close()
	}

	logger.Info("adhand stopped")
	return nil
}

// setupMQTT connects the publisher and routes channel events, failures and
// heartbeats to it. It returns nil when MQTT is disabled or unreachable.
func setupMQTT(cfg *config.DaemonConfig, kiosk *daemon.Kiosk, scheduler *daemon.Scheduler, logger *slog.Logger) mqtt.Publisher {
	if !cfg.MQTT.Enabled {
		return nil
	}

	log := logger.With("component", "mqtt")
	pub, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      byte(cfg.MQTT.QoS),
		Retain:   cfg.MQTT.Retain,
		Location: cfg.Location.Name,
	}, log)
	if err != nil {
		logger.Warn("MQTT disabled, broker unreachable", "broker", cfg.MQTT.Broker, "error", err)
		return nil
	}

	kiosk.AddObserver(func(ev audio.Event) {
		go func() {
			err := pub.PublishAnnouncement(mqtt.AnnouncementEvent{
				Timestamp: ev.At,
				Event:     string(ev.Kind),
				Request:   ev.Request,
				Err:       ev.Err,
			})
			if err != nil {
				log.Debug("failed to publish announcement event", "event", ev.Kind, "error", err)
			}
		}()
	})

	kiosk.Reporter().AddHandler(func(key string, err error) {
		go publishSystem(pub, mqtt.EventError, err.Error(), kiosk, log)
	})

	scheduler.Every(taskMQTTHeartbeat, cfg.MQTT.HeartbeatInterval.Duration(), func(context.Context, time.Time) {
		publishSystem(pub, mqtt.EventHeartbeat, "", kiosk, log)
	})
	return pub
}

func publishSystem(pub mqtt.Publisher, event, reason string, kiosk *daemon.Kiosk, logger *slog.Logger) {
	err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     event,
		Reason:    reason,
		Quiet:     kiosk.Quiet(),
		Retained:  event != mqtt.EventError,
	})
	if err != nil {
		logger.Warn("failed to publish system event", "event", event, "error", err)
	}
}

// setupDBus exports the control service and forwards channel events as
// signals. Failure leaves the daemon running without remote control.
func setupDBus(cfg *config.DaemonConfig, kiosk *daemon.Kiosk, logger *slog.Logger) *dbus.ControlServer {
	conn, err := dbus.Connect(cfg.DBus.Bus)
	if err != nil {
		logger.Warn("D-Bus unavailable, remote control disabled", "bus", cfg.DBus.Bus, "error", err)
		return nil
	}

	server := dbus.NewControlServer(kiosk, logger.With("component", "dbus"))
	if err := server.Start(conn); err != nil {
		logger.Warn("failed to start D-Bus control server", "error", err)
		return nil
	}
	kiosk.AddObserver(server.ObserveEvent)
	return server
}

func sigName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	}
	return sig.String()
}
