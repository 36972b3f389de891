package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDirPrefix string `toml:"data_dir_prefix"`
	TargetDir     string `toml:"target_dir"`
	LogDir        string `toml:"log_dir"`
}

// Corpus contains the location of the ASVspoof corpus archive.
type Corpus struct {
	URL     string `toml:"url"`
	Archive string `toml:"archive"`
}

// Augment contains the locations of the augmentation corpora.
type Augment struct {
	MusanURL string `toml:"musan_url"`
	RIRSURL  string `toml:"rirs_url"`
}

// Tools names the external binaries the pipeline shells out to.
type Tools struct {
	Downloader string `toml:"downloader"`
	FFmpeg     string `toml:"ffmpeg"`
}

// Pipeline contains stage-execution tuning.
type Pipeline struct {
	// NProc bounds the worker pool used for the evaluation bulk copy.
	NProc int `toml:"n_proc"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for asvprep.
//
// Configuration sections by subsystem:
//   - Paths: corpus prefix, canonical-layout target dir, log dir
//   - Corpus: ASVspoof LA archive URL and name
//   - Augment: MUSAN and RIRS_NOISES archive URLs
//   - Tools: external downloader and ffmpeg binaries
//   - Pipeline: bulk-copy parallelism
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Corpus   Corpus   `toml:"corpus"`
	Augment  Augment  `toml:"augment"`
	Tools    Tools    `toml:"tools"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/asvprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("asvprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDirPrefix, c.Paths.TargetDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CorpusDir returns the extracted corpus root, the stage-1 idempotence marker.
func (c *Config) CorpusDir() string {
	return filepath.Join(c.Paths.DataDirPrefix, "LA")
}

// ArchivePath returns where the downloaded corpus archive lands.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Paths.DataDirPrefix, c.Corpus.Archive)
}

// EvalDir returns the normalized evaluation directory, the stage-2 idempotence marker.
func (c *Config) EvalDir() string {
	return filepath.Join(c.CorpusDir(), "eval_asv")
}

// TestDir returns the canonical-layout test directory.
func (c *Config) TestDir() string {
	return filepath.Join(c.Paths.TargetDir, "test")
}

// TrainDir returns the canonical-layout train directory.
func (c *Config) TrainDir() string {
	return filepath.Join(c.Paths.TargetDir, "train")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
