// Command migrate applies the embedded database schema.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/migrations"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/repository/postgres"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the La Pública database schema",
	Long: `Apply or roll back the SQL migrations embedded in the binary.

The database is taken from database.url in the config file, or from
DATABASE_URL when set.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(cmd.Context(), func(r *migrations.Runner) error {
			if err := r.Up(); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back the last N migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			steps = n
		}
		return withRunner(cmd.Context(), func(r *migrations.Runner) error {
			if err := r.Down(steps); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(cmd.Context(), func(r *migrations.Runner) error {
			return printVersion(cmd, r)
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return withRunner(cmd.Context(), func(r *migrations.Runner) error {
			return r.Force(v)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to config file")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd)
}

func withRunner(ctx context.Context, fn func(*migrations.Runner) error) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetDefault(logger.New(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.RedactPII))
	defer logger.Sync()

	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	db, err := postgres.Open(ctx, cfg.Database.URL, 2, 1)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := migrations.New(db)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func printVersion(cmd *cobra.Command, r *migrations.Runner) error {
	v, dirty, ok, err := r.Version()
	if err != nil {
		return err
	}
	switch {
	case !ok:
		cmd.Println("schema: empty")
	case dirty:
		cmd.Printf("schema: version %d (dirty)\n", v)
	default:
		cmd.Printf("schema: version %d\n", v)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
