package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/config"
)

var configOpts struct {
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage adhand configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default adhand.toml",
	Long: `Write the default daemon configuration to adhand.toml (or --daemon-config).

An existing file is left alone unless --force is given.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective adhand configuration",
	Long: `Print the daemon configuration after defaults and environment overrides
(ADHAN_BLACKOUT_PERIOD, ADHAN_PRE_PRAYER_LEAD, ADHAN_TIMETABLE, ADHAN_MQTT_BROKER)
have been applied.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)

	configInitCmd.Flags().BoolVarP(&configOpts.force, "force", "f", false,
		"Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := globalOpts.daemonConfigPath
	if path == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !configOpts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveDaemonConfig(path, config.DefaultDaemonConfig()); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := toml.Marshal(daemonCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
