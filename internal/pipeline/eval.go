package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"asvprep/internal/fileutil"
	"asvprep/internal/logging"
	"asvprep/internal/protocol"
)

// runEvalPrep builds the normalized evaluation directory: the merged
// enrollment list (female entries before male), per-speaker concatenated
// enrollment audio, a copy of every evaluation utterance, and the
// normalized trial pairs. The whole body is skipped when the directory
// already exists.
func runEvalPrep(ctx context.Context, env *Env) error {
	log := logging.NewComponentLogger(env.Logger, "eval")
	cfg := env.Config
	evalDir := cfg.EvalDir()

	if fileutil.DirExists(evalDir) {
		log.Info("eval directory already prepared, skipping", logging.String("dir", evalDir))
		return nil
	}
	if err := os.MkdirAll(evalDir, 0o755); err != nil {
		return fmt.Errorf("create eval directory: %w", err)
	}

	protoDir := filepath.Join(cfg.CorpusDir(), asvProtocolDir)
	mergedPath := filepath.Join(evalDir, mergedEnrollName)
	lines, err := protocol.ConcatFiles(mergedPath,
		filepath.Join(protoDir, evalFemaleEnroll),
		filepath.Join(protoDir, evalMaleEnroll),
	)
	if err != nil {
		return err
	}
	log.Info("merged enrollment protocols", logging.Int("lines", lines))

	enrollments, err := protocol.ParseEnrollments(mergedPath)
	if err != nil {
		return err
	}

	flacDir := filepath.Join(cfg.CorpusDir(), filepath.FromSlash(evalAudioSubdir))
	for _, enrollment := range enrollments {
		inputs := make([]string, 0, len(enrollment.Utterances))
		for _, utterance := range enrollment.Utterances {
			inputs = append(inputs, filepath.Join(flacDir, utterance+".flac"))
		}
		output := filepath.Join(evalDir, enrollment.Speaker+".flac")
		if err := env.Concat.Concat(ctx, inputs, output); err != nil {
			return fmt.Errorf("enrollment audio for %s: %w", enrollment.Speaker, err)
		}
	}
	log.Info("built enrollment audio", logging.Int("speakers", len(enrollments)))

	copied, err := bulkCopy(ctx, flacDir, evalDir, cfg.Pipeline.NProc)
	if err != nil {
		return err
	}
	log.Info("copied evaluation audio", logging.Int("files", copied))

	trials, err := protocol.ParseTrials(filepath.Join(protoDir, evalTrialFile))
	if err != nil {
		return err
	}
	if err := protocol.WriteNormalized(trials, filepath.Join(evalDir, rawTrialsName)); err != nil {
		return err
	}
	log.Info("normalized trial protocol", logging.Int("trials", len(trials)))

	return nil
}

// bulkCopy copies every regular file in srcDir into dstDir using a worker
// pool of the given size.
func bulkCopy(ctx context.Context, srcDir, dstDir string, workers int) (int, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, fmt.Errorf("read audio directory: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	names := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue // keep draining so the feeder never blocks
				}
				if err := fileutil.CopyFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
					setErr(fmt.Errorf("copy %s: %w", name, err))
				}
			}
		}()
	}

	copied := 0
feed:
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		select {
		case names <- entry.Name():
			copied++
		case <-ctx.Done():
			setErr(ctx.Err())
			break feed
		}
	}
	close(names)
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return copied, nil
}
