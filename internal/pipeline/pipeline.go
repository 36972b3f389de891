package pipeline

import (
	"context"
	"log/slog"

	"asvprep/internal/audio"
	"asvprep/internal/config"
	"asvprep/internal/download"
)

// Env carries the shared collaborators every stage body needs. It replaces
// the global shell state of recipe scripts with an explicit value.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Fetcher *download.Client
	Concat  *audio.Concatenator
}

// Stage is one numbered pipeline step. Bodies are responsible for their own
// idempotence checks; the runner only handles range filtering, logging, and
// ledger bookkeeping.
type Stage struct {
	Number int
	Name   string
	Run    func(context.Context, *Env) error
}

// DefaultStages returns the preparation pipeline in data-dependency order.
// Stage 4 depends only on stage 1's output and stage 5 on nothing at all,
// but execution stays serialized for log readability.
func DefaultStages() []Stage {
	return []Stage{
		{Number: 1, Name: "corpus download", Run: runDownload},
		{Number: 2, Name: "eval normalize", Run: runEvalPrep},
		{Number: 3, Name: "test layout", Run: runTestLayout},
		{Number: 4, Name: "train layout", Run: runTrainLayout},
		{Number: 5, Name: "augment corpora", Run: runAugment},
	}
}

// Corpus-internal layout of the extracted ASVspoof LA archive.
const (
	asvProtocolDir   = "ASVspoof2019_LA_asv_protocols"
	cmProtocolDir    = "ASVspoof2019_LA_cm_protocols"
	evalAudioSubdir  = "ASVspoof2019_LA_eval/flac"
	trainAudioSubdir = "ASVspoof2019_LA_train/flac"

	evalFemaleEnroll = "ASVspoof2019.LA.asv.eval.female.trn.txt"
	evalMaleEnroll   = "ASVspoof2019.LA.asv.eval.male.trn.txt"
	evalTrialFile    = "ASVspoof2019.LA.asv.eval.gi.trl.txt"
	trainProtocol    = "ASVspoof2019.LA.cm.train.trn.txt"

	mergedEnrollName = "trn.txt"
	rawTrialsName    = "trials.raw"
	trialsName       = "trials"
)
