package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/api/schemas"
	"github.com/xkilldash9x/filament-cli/internal/config"
	"github.com/xkilldash9x/filament-cli/internal/export"
	"github.com/xkilldash9x/filament-cli/internal/observability"
	"github.com/xkilldash9x/filament-cli/internal/store"
)

// storeProvider creates a run store. The indirection lets tests inject a mock
// store instead of a live database connection.
type storeProvider interface {
	// Create initializes and returns a run store, a cleanup function to
	// release resources, and an error if the creation fails.
	Create(ctx context.Context, cfg *config.Config) (schemas.RunStore, func(), error)
}

// defaultStoreProvider is the production implementation: a real PostgreSQL
// connection pool.
type defaultStoreProvider struct{}

// NewStoreProvider creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL using the configured URL and returns the run
// store plus a cleanup closing the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (schemas.RunStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (FILAMENT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	runStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return runStore, cleanup, nil
}

// schemaInitializer is implemented by stores that can bootstrap their tables.
type schemaInitializer interface {
	InitSchema(ctx context.Context) error
}

// newRunsCmd creates the `runs` command group for working with saved runs.
func newRunsCmd(provider storeProvider) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and export runs saved in the database",
	}
	runsCmd.AddCommand(newRunsListCmd(provider))
	runsCmd.AddCommand(newRunsInitCmd(provider))
	runsCmd.AddCommand(newRunsExportCmd(provider))
	return runsCmd
}

func newRunsListCmd(provider storeProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runStore, cleanup, err := provider.Create(ctx, cfg)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			records, err := runStore.ListRuns(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSEED\tSTEPS\tVERTICES\tCREATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.Seed, r.Steps, r.VertexCount, r.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newRunsInitCmd(provider storeProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the run tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runStore, cleanup, err := provider.Create(ctx, cfg)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			initializer, ok := runStore.(schemaInitializer)
			if !ok {
				return fmt.Errorf("configured store cannot initialize a schema")
			}
			return initializer.InitSchema(ctx)
		},
	}
}

func newRunsExportCmd(provider storeProvider) *cobra.Command {
	var (
		runID      string
		outputPath string
		format     string
		compress   bool
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Re-export a saved run to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runStore, cleanup, err := provider.Create(ctx, cfg)
			if err != nil {
				return err
			}
			if cleanup != nil {
				defer cleanup()
			}

			record, snap, err := runStore.LoadRun(ctx, runID)
			if err != nil {
				return err
			}

			if format == "" {
				format = cfg.Export.Format
			}
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = cfg.Export.Output
			}

			if err := export.WriteFile(outputPath, snap, parsed, compress); err != nil {
				return err
			}

			logger.Info("Run exported",
				zap.String("run_id", record.ID),
				zap.String("path", outputPath),
				zap.String("format", string(parsed)))

			fmt.Fprintln(cmd.OutOrStdout(), outputPath)
			return nil
		},
	}

	exportCmd.Flags().StringVar(&runID, "run-id", "", "the run to export (required)")
	_ = exportCmd.MarkFlagRequired("run-id")
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path")
	exportCmd.Flags().StringVarP(&format, "format", "f", "", "export format: dot, json, or graphml")
	exportCmd.Flags().BoolVar(&compress, "compress", false, "brotli-compress the output file")

	return exportCmd
}
