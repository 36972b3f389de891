// Package protocol parses ASVspoof protocol manifests: enrollment files
// (speaker plus comma-separated utterance list), speaker-verification trial
// files, and the countermeasure train protocol.
package protocol

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Labels carried by normalized trial pairs. Spoofed trials fold into
// nontarget: downstream verification scoring is binary.
const (
	LabelTarget    = "target"
	LabelNontarget = "nontarget"
)

// Enrollment associates a speaker with its enrollment utterances.
type Enrollment struct {
	Speaker    string
	Utterances []string
}

// Trial is one speaker-verification trial from the raw protocol.
type Trial struct {
	Speaker   string
	Utterance string
	Source    string // bonafide or the spoofing system id
	Key       string // target, nontarget, or spoof
}

// TrainRecord is one line of the countermeasure train protocol.
type TrainRecord struct {
	Speaker   string
	Utterance string
	Attack    string
	Label     string
}

// ParseEnrollments reads an enrollment file: `<speaker> <utt1>,<utt2>,...`.
func ParseEnrollments(path string) ([]Enrollment, error) {
	var enrollments []Enrollment
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 2 {
			return fmt.Errorf("line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		utterances := strings.Split(fields[1], ",")
		for i, utt := range utterances {
			utterances[i] = strings.TrimSpace(utt)
		}
		enrollments = append(enrollments, Enrollment{Speaker: fields[0], Utterances: utterances})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse enrollments %s: %w", path, err)
	}
	return enrollments, nil
}

// ParseTrials reads a raw trial file: `<speaker> <utterance> <source> <key>`.
func ParseTrials(path string) ([]Trial, error) {
	var trials []Trial
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 4 {
			return fmt.Errorf("line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		key := fields[3]
		switch key {
		case "target", "nontarget", "spoof":
		default:
			return fmt.Errorf("line %d: unknown trial key %q", lineNo, key)
		}
		trials = append(trials, Trial{
			Speaker:   fields[0],
			Utterance: fields[1],
			Source:    fields[2],
			Key:       key,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse trials %s: %w", path, err)
	}
	return trials, nil
}

// ParseTrainProtocol reads the train protocol: `<speaker> <utterance> - <attack> <label>`.
func ParseTrainProtocol(path string) ([]TrainRecord, error) {
	var records []TrainRecord
	err := scanLines(path, func(lineNo int, fields []string) error {
		if len(fields) != 5 {
			return fmt.Errorf("line %d: expected 5 fields, got %d", lineNo, len(fields))
		}
		records = append(records, TrainRecord{
			Speaker:   fields[0],
			Utterance: fields[1],
			Attack:    fields[3],
			Label:     fields[4],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse train protocol %s: %w", path, err)
	}
	return records, nil
}

// NormalizedLabel maps a raw trial key to the binary verification label.
func (t Trial) NormalizedLabel() string {
	if t.Key == "target" {
		return LabelTarget
	}
	return LabelNontarget
}

// WriteNormalized rewrites trials as `<speaker> <utterance> <label>` pairs.
func WriteNormalized(trials []Trial, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, trial := range trials {
		fmt.Fprintf(w, "%s %s %s\n", trial.Speaker, trial.Utterance, trial.NormalizedLabel())
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// ConcatFiles appends srcs to dst in order and returns the total line count.
// Used to merge the gender-split enrollment files (female first, then male).
func ConcatFiles(dst string, srcs ...string) (int, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	lines := 0
	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", src, err)
		}
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			fmt.Fprintln(w, scanner.Text())
			lines++
		}
		err = scanner.Err()
		in.Close()
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", src, err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	return lines, out.Close()
}

func scanLines(path string, visit func(lineNo int, fields []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := visit(lineNo, strings.Fields(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
