package pipeline

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"asvprep/internal/audio"
	"asvprep/internal/config"
	"asvprep/internal/download"
	"asvprep/internal/logging"
	"asvprep/internal/manifest"
)

// fakeFetchExecutor stands in for the downloader binary. It copies a
// prepared archive to the destination argument and counts invocations.
type fakeFetchExecutor struct {
	src   string
	calls int
}

func (f *fakeFetchExecutor) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	f.calls++
	dest := args[len(args)-1]
	data, err := os.ReadFile(f.src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// fakeConcatExecutor stands in for ffmpeg. It parses the concat list and
// writes the joined input bytes to the output argument.
type fakeConcatExecutor struct {
	calls int
}

func (f *fakeConcatExecutor) Run(_ context.Context, _ string, args []string) error {
	f.calls++
	listFile := ""
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			listFile = args[i+1]
		}
	}
	data, err := os.ReadFile(listFile)
	if err != nil {
		return err
	}

	var joined []byte
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		p := strings.TrimSuffix(strings.TrimPrefix(line, "file '"), "'")
		chunk, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		joined = append(joined, chunk...)
	}
	return os.WriteFile(args[len(args)-1], joined, 0o644)
}

func stageEnv(t *testing.T, cfg *config.Config, fetch *fakeFetchExecutor, concat *fakeConcatExecutor) *Env {
	t.Helper()
	fetcher, err := download.New("sh", download.WithExecutor(fetch))
	if err != nil {
		t.Fatalf("download.New: %v", err)
	}
	concatenator, err := audio.New("ffmpeg", audio.WithExecutor(concat))
	if err != nil {
		t.Fatalf("audio.New: %v", err)
	}
	return &Env{
		Config:  cfg,
		Logger:  logging.NewNop(),
		Fetcher: fetcher,
		Concat:  concatenator,
	}
}

func writeFixtureZip(t *testing.T, dest string, files map[string]string) {
	t.Helper()
	out, err := os.Create(dest)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(out)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
}

func writeFixtureTarGz(t *testing.T, dest string, files map[string]string) {
	t.Helper()
	out, err := os.Create(dest)
	if err != nil {
		t.Fatalf("create tarball: %v", err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		header := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatalf("tar entry %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("tar entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close tarball: %v", err)
	}
}

func corpusFixtureFiles() map[string]string {
	return map[string]string{
		"LA/" + asvProtocolDir + "/" + evalFemaleEnroll: "LA_0001 LA_E_11,LA_E_12\n",
		"LA/" + asvProtocolDir + "/" + evalMaleEnroll:   "LA_0002 LA_E_21\n",
		"LA/" + asvProtocolDir + "/" + evalTrialFile: "LA_0001 LA_E_31 bonafide target\n" +
			"LA_0002 LA_E_32 bonafide nontarget\n" +
			"LA_0001 LA_E_33 A07 spoof\n" +
			"LA_0001 LA_E_99 bonafide target\n",
		"LA/" + cmProtocolDir + "/" + trainProtocol: "LA_0079 LA_T_0001 - - bonafide\n" +
			"LA_0080 LA_T_0002 - A07 spoof\n" +
			"LA_0081 LA_T_9999 - - bonafide\n",
		"LA/" + evalAudioSubdir + "/LA_E_11.flac":    "audio-e11",
		"LA/" + evalAudioSubdir + "/LA_E_12.flac":    "audio-e12",
		"LA/" + evalAudioSubdir + "/LA_E_21.flac":    "audio-e21",
		"LA/" + evalAudioSubdir + "/LA_E_31.flac":    "audio-e31",
		"LA/" + evalAudioSubdir + "/LA_E_32.flac":    "audio-e32",
		"LA/" + evalAudioSubdir + "/LA_E_33.flac":    "audio-e33",
		"LA/" + trainAudioSubdir + "/LA_T_0001.flac": "audio-t1",
		"LA/" + trainAudioSubdir + "/LA_T_0002.flac": "audio-t2",
	}
}

// writeCorpusFixture lays out an already extracted corpus under the data
// prefix, the state stage 1 leaves behind.
func writeCorpusFixture(t *testing.T, cfg *config.Config) {
	t.Helper()
	for name, body := range corpusFixtureFiles() {
		p := filepath.Join(cfg.Paths.DataDirPrefix, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func readLines(t *testing.T, p string) []string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestDownloadStageFetchesExtractsAndRemovesArchive(t *testing.T) {
	cfg := testConfig(t)
	zipPath := filepath.Join(t.TempDir(), "corpus.zip")
	writeFixtureZip(t, zipPath, corpusFixtureFiles())

	fetch := &fakeFetchExecutor{src: zipPath}
	env := stageEnv(t, cfg, fetch, &fakeConcatExecutor{})

	if err := runDownload(context.Background(), env); err != nil {
		t.Fatalf("runDownload: %v", err)
	}
	if fetch.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", fetch.calls)
	}
	if _, err := os.Stat(filepath.Join(cfg.CorpusDir(), asvProtocolDir)); err != nil {
		t.Fatalf("corpus not extracted: %v", err)
	}
	if _, err := os.Stat(cfg.ArchivePath()); !os.IsNotExist(err) {
		t.Fatalf("archive should be removed after extraction, stat err = %v", err)
	}

	// A second run sees the corpus directory and touches nothing.
	if err := runDownload(context.Background(), env); err != nil {
		t.Fatalf("runDownload rerun: %v", err)
	}
	if fetch.calls != 1 {
		t.Fatalf("rerun must not fetch again, got %d calls", fetch.calls)
	}
}

func TestDownloadStageSkipsFetchWhenArchivePresent(t *testing.T) {
	cfg := testConfig(t)
	writeFixtureZip(t, cfg.ArchivePath(), corpusFixtureFiles())

	fetch := &fakeFetchExecutor{src: "unused"}
	env := stageEnv(t, cfg, fetch, &fakeConcatExecutor{})

	if err := runDownload(context.Background(), env); err != nil {
		t.Fatalf("runDownload: %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("fetch must be skipped when the archive exists, got %d calls", fetch.calls)
	}
	if _, err := os.Stat(filepath.Join(cfg.CorpusDir(), cmProtocolDir)); err != nil {
		t.Fatalf("corpus not extracted: %v", err)
	}
}

func TestDownloadStageReportsMissingDownloader(t *testing.T) {
	cfg := testConfig(t)
	fetcher, err := download.New("asvprep-no-such-tool")
	if err != nil {
		t.Fatalf("download.New: %v", err)
	}
	env := stageEnv(t, cfg, &fakeFetchExecutor{src: "unused"}, &fakeConcatExecutor{})
	env.Fetcher = fetcher

	err = runDownload(context.Background(), env)
	if !errors.Is(err, download.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, statErr := os.Stat(cfg.ArchivePath()); !os.IsNotExist(statErr) {
		t.Fatal("no archive may be created when the downloader is missing")
	}
}

func TestEvalStageBuildsNormalizedDirectory(t *testing.T) {
	cfg := testConfig(t)
	writeCorpusFixture(t, cfg)

	concat := &fakeConcatExecutor{}
	env := stageEnv(t, cfg, &fakeFetchExecutor{src: "unused"}, concat)

	if err := runEvalPrep(context.Background(), env); err != nil {
		t.Fatalf("runEvalPrep: %v", err)
	}
	evalDir := cfg.EvalDir()

	merged := readLines(t, filepath.Join(evalDir, mergedEnrollName))
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged enrollment lines, got %d", len(merged))
	}
	if !strings.HasPrefix(merged[0], "LA_0001") || !strings.HasPrefix(merged[1], "LA_0002") {
		t.Fatalf("female enrollments must precede male: %v", merged)
	}

	if concat.calls != 2 {
		t.Fatalf("expected one concat per speaker, got %d", concat.calls)
	}
	spk1, err := os.ReadFile(filepath.Join(evalDir, "LA_0001.flac"))
	if err != nil {
		t.Fatalf("speaker audio: %v", err)
	}
	if string(spk1) != "audio-e11audio-e12" {
		t.Fatalf("enrollment inputs joined out of order: %q", spk1)
	}

	for _, utt := range []string{"LA_E_11", "LA_E_21", "LA_E_33"} {
		if _, err := os.Stat(filepath.Join(evalDir, utt+".flac")); err != nil {
			t.Fatalf("evaluation audio %s not copied: %v", utt, err)
		}
	}

	trials := readLines(t, filepath.Join(evalDir, rawTrialsName))
	want := []string{
		"LA_0001 LA_E_31 target",
		"LA_0002 LA_E_32 nontarget",
		"LA_0001 LA_E_33 nontarget",
		"LA_0001 LA_E_99 target",
	}
	if len(trials) != len(want) {
		t.Fatalf("expected %d trial lines, got %d", len(want), len(trials))
	}
	for i, line := range want {
		if trials[i] != line {
			t.Fatalf("trial line %d = %q, want %q", i, trials[i], line)
		}
	}

	// An existing eval directory suppresses the whole body.
	if err := os.Remove(filepath.Join(evalDir, rawTrialsName)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := runEvalPrep(context.Background(), env); err != nil {
		t.Fatalf("runEvalPrep rerun: %v", err)
	}
	if _, err := os.Stat(filepath.Join(evalDir, rawTrialsName)); !os.IsNotExist(err) {
		t.Fatal("rerun must not rebuild an existing eval directory")
	}
}

func TestTestLayoutStageBuildsValidatedManifests(t *testing.T) {
	cfg := testConfig(t)
	writeCorpusFixture(t, cfg)
	env := stageEnv(t, cfg, &fakeFetchExecutor{src: "unused"}, &fakeConcatExecutor{})

	if err := runEvalPrep(context.Background(), env); err != nil {
		t.Fatalf("runEvalPrep: %v", err)
	}
	if err := runTestLayout(context.Background(), env); err != nil {
		t.Fatalf("runTestLayout: %v", err)
	}
	testDir := cfg.TestDir()

	if err := manifest.ValidateDir(testDir); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
	wav, err := manifest.ReadTable(filepath.Join(testDir, manifest.WavScp))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	// 2 speaker enrollment files plus 6 copied evaluation utterances.
	if len(wav) != 8 {
		t.Fatalf("expected 8 wav.scp entries, got %d", len(wav))
	}
	for i := 1; i < len(wav); i++ {
		if wav[i-1].Key >= wav[i].Key {
			t.Fatalf("wav.scp not sorted at %d: %q >= %q", i, wav[i-1].Key, wav[i].Key)
		}
	}

	// The LA_E_99 trial references audio that never existed and must be
	// dropped by the rekeying.
	trials := readLines(t, filepath.Join(testDir, trialsName))
	if len(trials) != 3 {
		t.Fatalf("expected 3 rekeyed trials, got %d: %v", len(trials), trials)
	}
	for _, line := range trials {
		if strings.Contains(line, "LA_E_99") {
			t.Fatalf("trial with missing audio survived rekeying: %q", line)
		}
	}
}

func TestTrainLayoutStageSkipsMissingAudio(t *testing.T) {
	cfg := testConfig(t)
	writeCorpusFixture(t, cfg)
	env := stageEnv(t, cfg, &fakeFetchExecutor{src: "unused"}, &fakeConcatExecutor{})

	if err := runTrainLayout(context.Background(), env); err != nil {
		t.Fatalf("runTrainLayout: %v", err)
	}
	trainDir := cfg.TrainDir()

	if err := manifest.ValidateDir(trainDir); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
	utt2spk, err := manifest.ReadTable(filepath.Join(trainDir, manifest.Utt2Spk))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	// LA_T_9999 has no audio file and must not appear.
	if len(utt2spk) != 2 {
		t.Fatalf("expected 2 utt2spk entries, got %d", len(utt2spk))
	}
	if utt2spk[0].Key != "LA_T_0001" || utt2spk[0].Value != "LA_0079" {
		t.Fatalf("unexpected first entry: %+v", utt2spk[0])
	}
	if utt2spk[1].Key != "LA_T_0002" || utt2spk[1].Value != "LA_0080" {
		t.Fatalf("unexpected second entry: %+v", utt2spk[1])
	}
}

func TestAugmentStageBuildsSamplingPools(t *testing.T) {
	cfg := testConfig(t)

	musanArchive := filepath.Join(cfg.Paths.DataDirPrefix, path.Base(cfg.Augment.MusanURL))
	writeFixtureTarGz(t, musanArchive, map[string]string{
		"musan/music/fma/music-0001.wav":      "m",
		"musan/noise/free-sound/noise-01.wav": "n",
		"musan/speech/librivox/speech-1.wav":  "s",
		"musan/music/fma/README":              "not audio",
	})
	rirsArchive := filepath.Join(cfg.Paths.DataDirPrefix, path.Base(cfg.Augment.RIRSURL))
	writeFixtureZip(t, rirsArchive, map[string]string{
		"RIRS_NOISES/simulated_rirs/smallroom/Room001/Room001-00001.wav":  "s1",
		"RIRS_NOISES/simulated_rirs/mediumroom/Room042/Room042-00007.wav": "m1",
		"RIRS_NOISES/simulated_rirs/largeroom/Room100/Room100-00001.wav":  "l1",
	})

	fetch := &fakeFetchExecutor{src: "unused"}
	env := stageEnv(t, cfg, fetch, &fakeConcatExecutor{})

	if err := runAugment(context.Background(), env); err != nil {
		t.Fatalf("runAugment: %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("archives were present, expected no fetches, got %d", fetch.calls)
	}

	for _, category := range musanCategories {
		lines := readLines(t, filepath.Join(cfg.Paths.TargetDir, "musan_"+category+".scp"))
		if len(lines) != 1 {
			t.Fatalf("musan_%s.scp: expected 1 entry, got %d", category, len(lines))
		}
		if !strings.HasSuffix(lines[0], ".wav") {
			t.Fatalf("musan_%s.scp entry is not audio: %q", category, lines[0])
		}
	}

	rirs := readLines(t, filepath.Join(cfg.Paths.TargetDir, "rirs.scp"))
	if len(rirs) != 2 {
		t.Fatalf("expected 2 rirs.scp entries, got %d: %v", len(rirs), rirs)
	}
	if !strings.Contains(rirs[0], "mediumroom") || !strings.Contains(rirs[1], "smallroom") {
		t.Fatalf("mediumroom entries must precede smallroom: %v", rirs)
	}
	for _, line := range rirs {
		if strings.Contains(line, "largeroom") {
			t.Fatalf("largeroom impulse responses must be excluded: %q", line)
		}
	}

	// Extracted corpora survive a rerun untouched and the pools are rebuilt.
	if err := runAugment(context.Background(), env); err != nil {
		t.Fatalf("runAugment rerun: %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("rerun must not fetch, got %d calls", fetch.calls)
	}
}
