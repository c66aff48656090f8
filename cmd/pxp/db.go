package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pixelprobe/pixelprobe/internal/config"
	"github.com/pixelprobe/pixelprobe/internal/db"
	"github.com/pixelprobe/pixelprobe/internal/models"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Pixelprobe database",
		Long:  "Opens the configured database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pixelprobe.yaml", "path to Pixelprobe config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	fmt.Fprintf(out, "Opened %s database\n", cfg.Database.Driver)

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	fmt.Fprintln(out, "Migrated tables")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all Pixelprobe tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "pixelprobe.yaml", "path to Pixelprobe config file")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, force bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !force {
		fmt.Fprint(out, "This deletes all analysis records. Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	for _, m := range models.All() {
		if err := gdb.Migrator().DropTable(m); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	fmt.Fprintln(out, "Database reset.")
	return nil
}
