package voiceink

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no VoiceInk store exists in any known location.
var ErrNotFound = errors.New("voiceink database not found")

// candidateDirs lists where VoiceInk keeps its SwiftData store, most common first.
var candidateDirs = []string{
	"Library/Application Support/com.prakashjoshipax.VoiceInk",
	"Library/Application Support/VoiceInk",
	"Library/Containers/com.prakashjoshipax.VoiceInk/Data/Library/Application Support",
	"Library/Containers/VoiceInk/Data/Library/Application Support",
}

// FindDatabase locates the VoiceInk store under the current user's home.
func FindDatabase() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return findDatabaseIn(home)
}

func findDatabaseIn(home string) (string, error) {
	for _, dir := range candidateDirs {
		base := filepath.Join(home, dir)
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			continue
		}

		if isFile(filepath.Join(base, "default.store")) {
			return filepath.Join(base, "default.store"), nil
		}

		stores, _ := filepath.Glob(filepath.Join(base, "*.store"))
		for _, p := range stores {
			// dictionary.store holds the vocabulary, not transcriptions
			if filepath.Base(p) == "dictionary.store" {
				continue
			}
			if isFile(p) {
				return p, nil
			}
		}

		dbs, _ := filepath.Glob(filepath.Join(base, "*.sqlite"))
		for _, p := range dbs {
			if isFile(p) {
				return p, nil
			}
		}
	}
	return "", ErrNotFound
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
