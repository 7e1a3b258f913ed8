package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/scheduler"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [profile-id]",
	Short: "Refresh one profile, or every profile with --all",
	Args: func(cmd *cobra.Command, args []string) error {
		if refreshAll && len(args) > 0 {
			return errors.New("pass either a profile id or --all")
		}
		if !refreshAll && len(args) != 1 {
			return errors.New("a profile id is required unless --all is set")
		}
		return nil
	},
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every tracked profile once")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Flush(flushTimeout)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if refreshAll {
		// One pass must not drop anything, so the queue holds the whole fleet.
		total, err := a.store.Profiles().Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		sched := scheduler.New(scheduler.Config{
			Workers:   cfg.Scheduler.Workers,
			QueueSize: max(int(total), cfg.Scheduler.QueueSize),
		}, a.store.Profiles(), a.refresher)
		stats := sched.Tick(cmd.Context())
		sched.Wait()
		fmt.Fprintf(out, "profiles=%d scheduled=%d dropped_in_flight=%d dropped_queue_full=%d\n",
			stats.Profiles, stats.Scheduled, stats.DroppedInFlight, stats.DroppedQueueFull)
		return nil
	}

	result, err := a.refresher.RefreshExclusive(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("refresh %s: %w", args[0], err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
