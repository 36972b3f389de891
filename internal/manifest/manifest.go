// Package manifest models the canonical flat-text layout consumed by
// downstream speech toolkits: wav.scp, utt2spk, and spk2utt. Manifests are
// key-sorted by byte order; spk2utt is always the mechanical inverse of
// utt2spk.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Standard manifest file names.
const (
	WavScp  = "wav.scp"
	Utt2Spk = "utt2spk"
	Spk2Utt = "spk2utt"
)

// Entry is one manifest line: a key and the rest of the line.
type Entry struct {
	Key   string
	Value string
}

// ReadTable reads a two-column manifest. The first whitespace-delimited
// field is the key; everything after it is the value.
func ReadTable(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, " ")
		if !found || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s line %d: expected `key value`, got %q", filepath.Base(path), lineNo, line)
		}
		entries = append(entries, Entry{Key: key, Value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteTable writes entries as `key value` lines.
func WriteTable(path string, entries []Entry) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, entry := range entries {
		fmt.Fprintf(w, "%s %s\n", entry.Key, entry.Value)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// SortByKey sorts entries by key in byte order, the ordering downstream
// tools binary-search against.
func SortByKey(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

// SortFile rewrites a manifest sorted by key in place.
func SortFile(path string) error {
	entries, err := ReadTable(path)
	if err != nil {
		return err
	}
	SortByKey(entries)
	return WriteTable(path, entries)
}

// InvertUtt2Spk derives spk2utt entries from utt2spk ones: each speaker maps
// to its space-joined, key-sorted utterance list.
func InvertUtt2Spk(utt2spk []Entry) []Entry {
	bySpeaker := make(map[string][]string)
	for _, entry := range utt2spk {
		bySpeaker[entry.Value] = append(bySpeaker[entry.Value], entry.Key)
	}

	spk2utt := make([]Entry, 0, len(bySpeaker))
	for speaker, utterances := range bySpeaker {
		sort.Strings(utterances)
		spk2utt = append(spk2utt, Entry{Key: speaker, Value: strings.Join(utterances, " ")})
	}
	SortByKey(spk2utt)
	return spk2utt
}

// DeriveSpk2Utt writes dir/spk2utt as the inverse of dir/utt2spk.
func DeriveSpk2Utt(dir string) error {
	utt2spk, err := ReadTable(filepath.Join(dir, Utt2Spk))
	if err != nil {
		return fmt.Errorf("derive spk2utt: %w", err)
	}
	return WriteTable(filepath.Join(dir, Spk2Utt), InvertUtt2Spk(utt2spk))
}
