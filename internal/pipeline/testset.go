package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"asvprep/internal/fileutil"
	"asvprep/internal/logging"
	"asvprep/internal/manifest"
)

// runTestLayout converts the normalized evaluation directory into the
// canonical test layout: wav.scp and utt2spk built from the audio files,
// spk2utt derived, everything key-sorted and validated, and the trial file
// rekeyed against wav.scp. Skipped entirely when the target directory
// exists.
func runTestLayout(ctx context.Context, env *Env) error {
	log := logging.NewComponentLogger(env.Logger, "test-layout")
	cfg := env.Config
	testDir := cfg.TestDir()

	if fileutil.DirExists(testDir) {
		log.Info("test directory already prepared, skipping", logging.String("dir", testDir))
		return nil
	}
	if err := os.MkdirAll(testDir, 0o755); err != nil {
		return fmt.Errorf("create test directory: %w", err)
	}

	evalDir := cfg.EvalDir()
	wav, utt2spk, err := scanEvalAudio(evalDir)
	if err != nil {
		return err
	}
	if len(wav) == 0 {
		return fmt.Errorf("no audio found under %s", evalDir)
	}

	manifest.SortByKey(wav)
	manifest.SortByKey(utt2spk)
	if err := manifest.WriteTable(filepath.Join(testDir, manifest.WavScp), wav); err != nil {
		return err
	}
	if err := manifest.WriteTable(filepath.Join(testDir, manifest.Utt2Spk), utt2spk); err != nil {
		return err
	}
	if err := manifest.DeriveSpk2Utt(testDir); err != nil {
		return err
	}
	if err := manifest.ValidateDir(testDir); err != nil {
		return err
	}
	log.Info("built test manifests", logging.Int("utterances", len(wav)))

	kept, err := manifest.RekeyTrials(
		filepath.Join(evalDir, rawTrialsName),
		filepath.Join(testDir, manifest.WavScp),
		filepath.Join(testDir, trialsName),
	)
	if err != nil {
		return err
	}
	log.Info("rekeyed trials", logging.Int("trials", kept))

	return nil
}

// scanEvalAudio builds manifest entries from the audio files in the
// normalized eval directory. Evaluation utterances carry no speaker labels,
// so utt2spk maps every key to itself; per-speaker enrollment files get
// their speaker id as key the same way.
func scanEvalAudio(dir string) ([]manifest.Entry, []manifest.Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read eval directory: %w", err)
	}

	var wav, utt2spk []manifest.Entry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".flac" && ext != ".wav" {
			continue
		}
		key := strings.TrimSuffix(name, ext)
		wav = append(wav, manifest.Entry{Key: key, Value: filepath.Join(dir, name)})
		utt2spk = append(utt2spk, manifest.Entry{Key: key, Value: key})
	}
	return wav, utt2spk, nil
}
