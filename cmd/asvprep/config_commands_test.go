package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asvprep/internal/config"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if !strings.Contains(out.String(), target) {
		t.Fatalf("output should mention target path: %q", out.String())
	}

	// The sample must parse and validate.
	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected overwrite refusal")
	}

	cmd = newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target, "--overwrite"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestDepsCommandListsRequirements(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "asvprep.toml")
	body := "[paths]\n" +
		"data_dir_prefix = \"" + filepath.Join(base, "corpora") + "\"\n" +
		"target_dir = \"" + filepath.Join(base, "data") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", configPath, "deps"})

	// The command errors when a tool is absent from PATH; the report must
	// be printed either way.
	_ = cmd.Execute()

	for _, want := range []string{"Downloader", "FFmpeg", "Log directory"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("deps output missing %q:\n%s", want, out.String())
		}
	}
}

func TestStatusCommandReportsArtifacts(t *testing.T) {
	base := t.TempDir()
	configPath := filepath.Join(base, "asvprep.toml")
	body := "[paths]\n" +
		"data_dir_prefix = \"" + filepath.Join(base, "corpora") + "\"\n" +
		"target_dir = \"" + filepath.Join(base, "data") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", configPath, "status"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Corpus", "Train layout", "No recorded runs"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("status output missing %q:\n%s", want, out.String())
		}
	}
}
