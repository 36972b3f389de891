package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"asvprep/internal/config"
	"asvprep/internal/fileutil"
	"asvprep/internal/ledger"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show preparation state and recent runs",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(artifactChecks(cfg)))
			for _, artifact := range artifactChecks(cfg) {
				rows = append(rows, []string{
					artifact.stage,
					artifact.name,
					artifact.path,
					markPassed(artifact.present, colorize),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Artifact", "Path", "Present"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))

			return printRecentRuns(cmd.Context(), out, cfg)
		},
	}
}

type artifact struct {
	stage   string
	name    string
	path    string
	present bool
}

func artifactChecks(cfg *config.Config) []artifact {
	prefix := cfg.Paths.DataDirPrefix
	return []artifact{
		{"1", "Corpus", cfg.CorpusDir(), fileutil.DirExists(cfg.CorpusDir())},
		{"2", "Eval protocol", cfg.EvalDir(), fileutil.DirExists(cfg.EvalDir())},
		{"3", "Test layout", cfg.TestDir(), fileutil.DirExists(cfg.TestDir())},
		{"4", "Train layout", cfg.TrainDir(), fileutil.DirExists(cfg.TrainDir())},
		{"5", "MUSAN corpus", filepath.Join(prefix, "musan"), fileutil.DirExists(filepath.Join(prefix, "musan"))},
		{"5", "RIRS corpus", filepath.Join(prefix, "RIRS_NOISES"), fileutil.DirExists(filepath.Join(prefix, "RIRS_NOISES"))},
		{"5", "Sampling pools", filepath.Join(cfg.Paths.TargetDir, "rirs.scp"), fileutil.FileExists(filepath.Join(cfg.Paths.TargetDir, "rirs.scp"))},
	}
}

func printRecentRuns(ctx context.Context, out io.Writer, cfg *config.Config) error {
	dbPath := filepath.Join(cfg.Paths.LogDir, "ledger.db")
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(out, "No recorded runs")
		return nil
	}

	store, err := ledger.Open(cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			fmt.Sprintf("%d..%d", run.FirstStage, run.LastStage),
			run.Outcome,
			run.StartedAt.UTC().Format(time.RFC3339),
			finished,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Stages", "Outcome", "Started", "Finished"},
		rows,
		nil,
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
