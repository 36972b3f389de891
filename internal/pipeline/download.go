package pipeline

import (
	"context"
	"fmt"
	"os"

	"asvprep/internal/archive"
	"asvprep/internal/fileutil"
	"asvprep/internal/logging"
)

// runDownload fetches and extracts the ASVspoof LA archive. The download
// and the extraction skip independently: an existing archive suppresses the
// fetch, an existing corpus directory suppresses everything else. The
// archive is deleted only after a successful extraction.
func runDownload(ctx context.Context, env *Env) error {
	log := logging.NewComponentLogger(env.Logger, "download")
	cfg := env.Config
	corpusDir := cfg.CorpusDir()
	archivePath := cfg.ArchivePath()

	if fileutil.FileExists(archivePath) || fileutil.DirExists(corpusDir) {
		log.Info("archive already present, skipping download", logging.String("archive", archivePath))
	} else {
		if err := env.Fetcher.Available(); err != nil {
			return err
		}
		log.Info("downloading corpus archive",
			logging.String("url", cfg.Corpus.URL),
			logging.String("archive", archivePath),
		)
		if err := env.Fetcher.Fetch(ctx, cfg.Corpus.URL, archivePath); err != nil {
			return err
		}
	}

	if fileutil.DirExists(corpusDir) {
		log.Info("corpus already extracted, skipping extraction", logging.String("dir", corpusDir))
		return nil
	}

	log.Info("extracting corpus archive", logging.String("archive", archivePath))
	if err := archive.Extract(archivePath, cfg.Paths.DataDirPrefix); err != nil {
		return err
	}
	if !fileutil.DirExists(corpusDir) {
		return fmt.Errorf("archive %s did not produce %s", archivePath, corpusDir)
	}
	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("remove archive after extraction: %w", err)
	}

	log.Info("corpus ready", logging.String("dir", corpusDir))
	return nil
}
