package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDirPrefix, err = expandPath(strings.TrimSpace(c.Paths.DataDirPrefix)); err != nil {
		return err
	}
	if c.Paths.TargetDir, err = expandPath(strings.TrimSpace(c.Paths.TargetDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}

	c.Corpus.URL = strings.TrimSpace(c.Corpus.URL)
	c.Corpus.Archive = strings.TrimSpace(c.Corpus.Archive)
	c.Augment.MusanURL = strings.TrimSpace(c.Augment.MusanURL)
	c.Augment.RIRSURL = strings.TrimSpace(c.Augment.RIRSURL)
	c.Tools.Downloader = strings.TrimSpace(c.Tools.Downloader)
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
