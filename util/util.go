package util

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExpandTilde expands the tilde in a path to the current user's
// home directory.
func ExpandTilde(filePath string) (string, error) {
	if !strings.HasPrefix(filePath, "~") {
		return filePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(filePath, "~")), nil
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	for i := range list {
		if list[i] == item {
			return true
		}
	}
	return false
}

// LooksSafeToDelete returns true if the file is older than minAge
// and its name is at least minLength characters. A guard against
// deleting something like "/" or "p" through a mangled path.
func LooksSafeToDelete(path string, minLength int, minAgeMinutes int) bool {
	if len(path) < minLength {
		return false
	}
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(stat.ModTime()) > time.Duration(minAgeMinutes)*time.Minute
}
