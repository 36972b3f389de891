package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"asvprep/internal/archive"
	"asvprep/internal/fileutil"
	"asvprep/internal/logging"
)

// MUSAN categories staged as separate sampling pools.
var musanCategories = []string{"music", "noise", "speech"}

// Room sizes of the simulated impulse responses, in the order they appear
// in rirs.scp. largeroom is deliberately absent.
var rirRooms = []string{"mediumroom", "smallroom"}

type auxCorpus struct {
	name string
	url  string
	dir  string
}

// runAugment stages the MUSAN and RIRS_NOISES corpora. Download and
// extraction skip independently per artifact; the scp sampling pools are
// always rebuilt from a filesystem scan.
func runAugment(ctx context.Context, env *Env) error {
	log := logging.NewComponentLogger(env.Logger, "augment")
	cfg := env.Config
	prefix := cfg.Paths.DataDirPrefix

	corpora := []auxCorpus{
		{name: "musan", url: cfg.Augment.MusanURL, dir: "musan"},
		{name: "rirs", url: cfg.Augment.RIRSURL, dir: "RIRS_NOISES"},
	}

	for _, corpus := range corpora {
		dir := filepath.Join(prefix, corpus.dir)
		archivePath := filepath.Join(prefix, path.Base(corpus.url))

		if fileutil.DirExists(dir) {
			log.Info("corpus already extracted, skipping",
				logging.String("corpus", corpus.name),
				logging.String("dir", dir),
			)
			continue
		}

		if fileutil.FileExists(archivePath) {
			log.Info("archive already downloaded, skipping download",
				logging.String("corpus", corpus.name),
				logging.String("archive", archivePath),
			)
		} else {
			if err := env.Fetcher.Available(); err != nil {
				return err
			}
			log.Info("downloading corpus archive",
				logging.String("corpus", corpus.name),
				logging.String("url", corpus.url),
			)
			if err := env.Fetcher.Fetch(ctx, corpus.url, archivePath); err != nil {
				return err
			}
		}

		log.Info("extracting corpus archive",
			logging.String("corpus", corpus.name),
			logging.String("archive", archivePath),
		)
		if err := archive.Extract(archivePath, prefix); err != nil {
			return err
		}
		if !fileutil.DirExists(dir) {
			return fmt.Errorf("archive %s did not produce %s", archivePath, dir)
		}
	}

	if err := os.MkdirAll(cfg.Paths.TargetDir, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	for _, category := range musanCategories {
		paths, err := collectAudio(filepath.Join(prefix, "musan", category))
		if err != nil {
			return err
		}
		out := filepath.Join(cfg.Paths.TargetDir, "musan_"+category+".scp")
		if err := writePathList(out, paths); err != nil {
			return err
		}
		log.Info("wrote sampling pool", logging.String("list", out), logging.Int("files", len(paths)))
	}

	// mediumroom entries precede every smallroom entry.
	var rirPaths []string
	for _, room := range rirRooms {
		paths, err := collectAudio(filepath.Join(prefix, "RIRS_NOISES", "simulated_rirs", room))
		if err != nil {
			return err
		}
		rirPaths = append(rirPaths, paths...)
	}
	out := filepath.Join(cfg.Paths.TargetDir, "rirs.scp")
	if err := writePathList(out, rirPaths); err != nil {
		return err
	}
	log.Info("wrote sampling pool", logging.String("list", out), logging.Int("files", len(rirPaths)))

	return nil
}

// collectAudio returns the sorted absolute paths of every .wav under root.
func collectAudio(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".wav" {
			return nil
		}
		absolute, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		paths = append(paths, absolute)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func writePathList(dst string, paths []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}
