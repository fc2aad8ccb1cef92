package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/filament-cli/api/schemas"
	"github.com/xkilldash9x/filament-cli/internal/export"
	"github.com/xkilldash9x/filament-cli/internal/observability"
)

// newResumeCmd creates and configures the `resume` command.
func newResumeCmd() *cobra.Command {
	var (
		fromFile string
		runID    string
		save     bool
	)

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue growing a previously exported or saved figure",
		Long: `Rebuilds a figure from a JSON snapshot (optionally brotli-compressed) or
from a saved database run, then keeps growing it under the current
configuration until a stop condition is hit.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("simulation.max_vertices", cmd.Flags().Lookup("max-vertices")); err != nil {
				return err
			}
			if err := viper.BindPFlag("export.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("export.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			return viper.BindPFlag("export.compress", cmd.Flags().Lookup("compress"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if (fromFile == "") == (runID == "") {
				return fmt.Errorf("exactly one of --from or --run-id is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var snap *schemas.TreeSnapshot
			if fromFile != "" {
				snap, err = export.ReadSnapshotFile(fromFile)
				if err != nil {
					return fmt.Errorf("failed to load snapshot: %w", err)
				}
			} else {
				provider := NewStoreProvider()
				runStore, cleanup, err := provider.Create(ctx, cfg)
				if err != nil {
					return fmt.Errorf("failed to initialize store: %w", err)
				}
				if cleanup != nil {
					defer cleanup()
				}
				_, snap, err = runStore.LoadRun(ctx, runID)
				if err != nil {
					return fmt.Errorf("failed to load run: %w", err)
				}
			}

			logger.Info("Resuming figure",
				zap.Int64("seed", snap.Seed),
				zap.Int64("steps", snap.Steps),
				zap.Int("vertices", snap.VertexCount()))

			sim, _, err := buildSimulator(cfg, snap, snap.Seed, logger)
			if err != nil {
				return err
			}

			result, err := runAndExport(ctx, sim, cfg, logger)
			if err != nil {
				return err
			}

			if save {
				if err := persistRun(ctx, cfg, result, NewStoreProvider(), logger); err != nil {
					return err
				}
			}
			return nil
		},
	}

	resumeCmd.Flags().StringVar(&fromFile, "from", "", "snapshot file to resume from")
	resumeCmd.Flags().StringVar(&runID, "run-id", "", "saved run to resume from")
	resumeCmd.Flags().Int("max-vertices", 0, "stop once the figure reaches this many vertices")
	resumeCmd.Flags().StringP("output", "o", "", "output file path")
	resumeCmd.Flags().StringP("format", "f", "", "export format: dot, json, or graphml")
	resumeCmd.Flags().Bool("compress", false, "brotli-compress the output file")
	resumeCmd.Flags().BoolVar(&save, "save", false, "also persist the resumed run to the database")

	return resumeCmd
}
