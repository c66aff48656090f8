package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pixelprobe/pixelprobe/internal/classify"
	"github.com/pixelprobe/pixelprobe/internal/config"
	"github.com/pixelprobe/pixelprobe/internal/db"
	"github.com/pixelprobe/pixelprobe/internal/dispatch"
	"github.com/pixelprobe/pixelprobe/internal/leaderboard"
	"github.com/pixelprobe/pixelprobe/internal/retention"
	"github.com/pixelprobe/pixelprobe/internal/server"
	"github.com/pixelprobe/pixelprobe/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Pixelprobe API server",
		Long:  "Starts the HTTP API: analysis uploads, stored results, the model speed leaderboard, and the QR share endpoint. Stops cleanly on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pixelprobe.yaml", "path to Pixelprobe config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	// Secrets come from .env when present; missing file is fine.
	if err := godotenv.Load(); err == nil {
		log.Printf("serve: loaded environment from .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Server.Port = port
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
	if err := rehydrateBoard(board, st); err != nil {
		log.Printf("serve: rehydrate leaderboard warning: %v", err)
	}

	classifier := classify.New(classify.Opts{
		EndpointURL: cfg.Classifier.Endpoint,
		APIKey:      cfg.Classifier.APIKey,
		Timeout:     cfg.Classifier.Timeout.Std(),
		MaxTokens:   cfg.Classifier.MaxTokens,
		Temperature: cfg.Classifier.Temperature,
	})

	runner := dispatch.NewHTTPRunner(cfg.Backends.BaseURL, cfg.Backends.Timeout.Std())

	pruner := retention.New(board, st, cfg.Leaderboard.Retention.Std())
	if err := pruner.Start(cfg.Leaderboard.PruneSchedule); err != nil {
		return err
	}
	defer pruner.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.StartOpts{
		Store:       st,
		Classifier:  classifier,
		Board:       board,
		Runner:      runner,
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		Out:         cmd.OutOrStdout(),
	})
}

// rehydrateBoard replays stored records into the leaderboard so rankings
// survive a restart.
func rehydrateBoard(board *leaderboard.Board, st *store.Store) error {
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
	return nil
}
