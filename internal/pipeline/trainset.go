package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"asvprep/internal/fileutil"
	"asvprep/internal/logging"
	"asvprep/internal/manifest"
	"asvprep/internal/protocol"
)

// runTrainLayout populates the canonical train directory from the corpus
// train protocol. Unlike the other stages there is no existence guard on
// the stage body, only on directory creation: the manifests are rebuilt on
// every run.
func runTrainLayout(ctx context.Context, env *Env) error {
	log := logging.NewComponentLogger(env.Logger, "train-layout")
	cfg := env.Config
	trainDir := cfg.TrainDir()

	if err := os.MkdirAll(trainDir, 0o755); err != nil {
		return fmt.Errorf("create train directory: %w", err)
	}

	protocolPath := filepath.Join(cfg.CorpusDir(), cmProtocolDir, trainProtocol)
	records, err := protocol.ParseTrainProtocol(protocolPath)
	if err != nil {
		return err
	}

	flacDir := filepath.Join(cfg.CorpusDir(), filepath.FromSlash(trainAudioSubdir))
	var wav, utt2spk []manifest.Entry
	missing := 0
	for _, record := range records {
		audioPath := filepath.Join(flacDir, record.Utterance+".flac")
		if !fileutil.FileExists(audioPath) {
			missing++
			continue
		}
		wav = append(wav, manifest.Entry{Key: record.Utterance, Value: audioPath})
		utt2spk = append(utt2spk, manifest.Entry{Key: record.Utterance, Value: record.Speaker})
	}
	if missing > 0 {
		log.Warn("train protocol references missing audio",
			logging.Int("missing", missing),
			logging.String("dir", flacDir),
		)
	}
	if len(wav) == 0 {
		return fmt.Errorf("no train audio found under %s", flacDir)
	}

	manifest.SortByKey(wav)
	manifest.SortByKey(utt2spk)
	if err := manifest.WriteTable(filepath.Join(trainDir, manifest.WavScp), wav); err != nil {
		return err
	}
	if err := manifest.WriteTable(filepath.Join(trainDir, manifest.Utt2Spk), utt2spk); err != nil {
		return err
	}
	if err := manifest.DeriveSpk2Utt(trainDir); err != nil {
		return err
	}
	if err := manifest.ValidateDir(trainDir); err != nil {
		return err
	}

	log.Info("built train manifests", logging.Int("utterances", len(wav)))
	return nil
}
