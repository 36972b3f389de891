package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RekeyTrials rewrites a normalized trial file so that both the enrollment
// reference and the test utterance resolve against wav.scp keys. Trials
// referencing identifiers absent from the manifest are dropped; the count
// of kept trials is returned.
func RekeyTrials(trialsPath, wavScpPath, outPath string) (int, error) {
	wav, err := ReadTable(wavScpPath)
	if err != nil {
		return 0, fmt.Errorf("rekey trials: %w", err)
	}
	keys := make(map[string]struct{}, len(wav))
	for _, entry := range wav {
		keys[entry.Key] = struct{}{}
	}

	in, err := os.Open(trialsPath)
	if err != nil {
		return 0, fmt.Errorf("rekey trials: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("rekey trials: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	kept := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return 0, fmt.Errorf("rekey trials: %s line %d: expected 3 fields, got %d", trialsPath, lineNo, len(fields))
		}
		if _, ok := keys[fields[0]]; !ok {
			continue
		}
		if _, ok := keys[fields[1]]; !ok {
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", fields[0], fields[1], fields[2])
		kept++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("rekey trials: %w", err)
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("rekey trials: %w", err)
	}
	return kept, out.Close()
}
