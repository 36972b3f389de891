package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"asvprep/internal/ledger"
	"asvprep/internal/logging"
	"asvprep/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var firstStage int
	var lastStage int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the preparation pipeline",
		Long: "Execute the numbered preparation stages in order: corpus download,\n" +
			"eval normalization, test layout, train layout, and augmentation\n" +
			"corpora. Completed stages are skipped on re-runs.",
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if firstStage > lastStage {
				return fmt.Errorf("%w: --stage %d is beyond --stop-stage %d", errUnexpectedArgs, firstStage, lastStage)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []pipeline.Option{}
			store, err := ledger.Open(cfg.Paths.LogDir)
			if err != nil {
				logger.Warn("run ledger unavailable", logging.Error(err))
			} else {
				defer store.Close()
				opts = append(opts, pipeline.WithLedger(store))
			}

			runner, err := pipeline.New(cfg, logger, opts...)
			if err != nil {
				return err
			}
			return runner.Run(runCtx, firstStage, lastStage)
		},
	}

	cmd.Flags().IntVar(&firstStage, "stage", 1, "First stage to execute")
	cmd.Flags().IntVar(&lastStage, "stop-stage", 99, "Last stage to execute")
	return cmd
}
