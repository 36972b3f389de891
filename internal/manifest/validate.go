package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateDir checks a canonical-layout directory for consistency:
// wav.scp, utt2spk, and spk2utt exist, are key-sorted with unique keys,
// cover the same utterance set, and spk2utt is the exact inverse of
// utt2spk. Any violation fails the calling stage.
func ValidateDir(dir string) error {
	wav, err := readSorted(dir, WavScp)
	if err != nil {
		return err
	}
	utt2spk, err := readSorted(dir, Utt2Spk)
	if err != nil {
		return err
	}
	spk2utt, err := readSorted(dir, Spk2Utt)
	if err != nil {
		return err
	}

	wavKeys := make(map[string]struct{}, len(wav))
	for _, entry := range wav {
		wavKeys[entry.Key] = struct{}{}
	}

	speakerOf := make(map[string]string, len(utt2spk))
	for _, entry := range utt2spk {
		if _, ok := wavKeys[entry.Key]; !ok {
			return fmt.Errorf("validate %s: utterance %s in utt2spk missing from wav.scp", dir, entry.Key)
		}
		speakerOf[entry.Key] = entry.Value
	}
	if len(utt2spk) != len(wav) {
		return fmt.Errorf("validate %s: wav.scp has %d entries, utt2spk has %d", dir, len(wav), len(utt2spk))
	}

	seen := make(map[string]struct{}, len(utt2spk))
	for _, entry := range spk2utt {
		for _, utterance := range strings.Fields(entry.Value) {
			speaker, ok := speakerOf[utterance]
			if !ok {
				return fmt.Errorf("validate %s: utterance %s in spk2utt missing from utt2spk", dir, utterance)
			}
			if speaker != entry.Key {
				return fmt.Errorf("validate %s: utterance %s assigned to %s in utt2spk but listed under %s", dir, utterance, speaker, entry.Key)
			}
			if _, dup := seen[utterance]; dup {
				return fmt.Errorf("validate %s: utterance %s listed twice in spk2utt", dir, utterance)
			}
			seen[utterance] = struct{}{}
		}
	}
	if len(seen) != len(speakerOf) {
		return fmt.Errorf("validate %s: spk2utt covers %d utterances, utt2spk has %d", dir, len(seen), len(speakerOf))
	}

	return nil
}

func readSorted(dir, name string) ([]Entry, error) {
	path := filepath.Join(dir, name)
	entries, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", dir, err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key > entries[i].Key {
			return nil, fmt.Errorf("validate %s: %s not sorted at key %s", dir, name, entries[i].Key)
		}
		if entries[i-1].Key == entries[i].Key {
			return nil, fmt.Errorf("validate %s: %s has duplicate key %s", dir, name, entries[i].Key)
		}
	}
	return entries, nil
}
