package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/model"
)

var playOpts struct {
	priority string
	volume   float64
}

var playCmd = &cobra.Command{
	Use:   "play <asset>",
	Short: "Play an asset through adhand",
	Long: `Ask adhand to play an asset on its audio channel.

The asset is a file name relative to the daemon's asset directory. The
request goes through the same arbitration as scheduled announcements, so a
lower priority may be queued or dropped while something else plays. Quiet
mode does not apply to manual playback.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&playOpts.priority, "priority", "p", model.PriorityPrayer.String(),
		"Priority (prayer, prePrayer, postPrayer, hourly)")
	playCmd.Flags().Float64Var(&playOpts.volume, "volume", 1,
		"Volume from 0 to 1")
}

func runPlay(cmd *cobra.Command, args []string) error {
	if _, err := model.ParsePriority(playOpts.priority); err != nil {
		return err
	}

	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := client.Play(ctx, args[0], playOpts.priority, model.ClampVolume(playOpts.volume))
	if err != nil {
		return fmt.Errorf("failed to play %s: %w", args[0], err)
	}
	fmt.Println(id)
	return nil
}
