package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCorpus(); err != nil {
		return err
	}
	if err := c.validateAugment(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDirPrefix == "" {
		return errors.New("paths.data_dir_prefix must be set")
	}
	if c.Paths.TargetDir == "" {
		return errors.New("paths.target_dir must be set")
	}
	return nil
}

func (c *Config) validateCorpus() error {
	if c.Corpus.URL == "" {
		return errors.New("corpus.url must be set")
	}
	if c.Corpus.Archive == "" {
		return errors.New("corpus.archive must be set")
	}
	if strings.ContainsRune(c.Corpus.Archive, '/') {
		return fmt.Errorf("corpus.archive must be a bare file name, got %q", c.Corpus.Archive)
	}
	return nil
}

func (c *Config) validateAugment() error {
	if c.Augment.MusanURL == "" {
		return errors.New("augment.musan_url must be set")
	}
	if c.Augment.RIRSURL == "" {
		return errors.New("augment.rirs_url must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.Downloader == "" {
		return errors.New("tools.downloader must be set")
	}
	if c.Tools.FFmpeg == "" {
		return errors.New("tools.ffmpeg must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.NProc < 1 {
		return fmt.Errorf("pipeline.n_proc must be at least 1, got %d", c.Pipeline.NProc)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
