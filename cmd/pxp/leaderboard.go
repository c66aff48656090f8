package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pixelprobe/pixelprobe/internal/config"
	"github.com/pixelprobe/pixelprobe/internal/db"
	"github.com/pixelprobe/pixelprobe/internal/leaderboard"
	"github.com/pixelprobe/pixelprobe/internal/store"
	"github.com/spf13/cobra"
)

func newLeaderboardCmd() *cobra.Command {
	var (
		configPath string
		task       string
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the model speed leaderboard",
		Long:  "Rebuilds the leaderboard from stored analysis records and prints it, fastest model first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboard(cmd, configPath, task)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pixelprobe.yaml", "path to Pixelprobe config file")
	cmd.Flags().StringVarP(&task, "task", "t", "", "filter by task (e.g. OCR)")
	return cmd
}

func runLeaderboard(cmd *cobra.Command, configPath, task string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	st, err := store.New(gdb, cfg.Server.UploadDir)
	if err != nil {
		return err
	}

	board := leaderboard.New()
	recs, err := st.AllRecords()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.LatencySeconds < 0 {
			continue
		}
		if err := board.RecordTask(rec.Model, rec.Task, rec.LatencySeconds); err != nil {
			return err
		}
	}

	entries := board.RankingsForTask(task)
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No analysis records yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tMODEL\tAVG LATENCY\tRUNS")
	for i, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%.2fs\t%d\n", i+1, e.Model, e.AverageLatencySeconds, e.Runs)
	}
	return w.Flush()
}
