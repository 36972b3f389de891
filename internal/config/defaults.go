package config

const (
	defaultDataDirPrefix = "~/.local/share/asvprep/corpora"
	defaultTargetDir     = "data"
	defaultLogDir        = "~/.local/share/asvprep/logs"
	defaultCorpusURL     = "https://datashare.ed.ac.uk/bitstream/handle/10283/3336/LA.zip"
	defaultCorpusArchive = "LA.zip"
	defaultMusanURL      = "https://www.openslr.org/resources/17/musan.tar.gz"
	defaultRIRSURL       = "https://www.openslr.org/resources/28/rirs_noises.zip"
	defaultDownloader    = "wget"
	defaultFFmpeg        = "ffmpeg"
	defaultNProc         = 8
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDirPrefix: defaultDataDirPrefix,
			TargetDir:     defaultTargetDir,
			LogDir:        defaultLogDir,
		},
		Corpus: Corpus{
			URL:     defaultCorpusURL,
			Archive: defaultCorpusArchive,
		},
		Augment: Augment{
			MusanURL: defaultMusanURL,
			RIRSURL:  defaultRIRSURL,
		},
		Tools: Tools{
			Downloader: defaultDownloader,
			FFmpeg:     defaultFFmpeg,
		},
		Pipeline: Pipeline{
			NProc: defaultNProc,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
