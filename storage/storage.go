// Package storage persists daymark.ProfileRecord values to the config
// folder as indented JSON, one file per profile. Writes go through a
// temp-file-then-rename so a reader never observes a partially written
// file, and every write in the process is serialized through a single
// package-level mutex — spec.md §4.4/§9: "preserve this to cap I/O
// concurrency" across however many profiles a Scheduler is juggling.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brightfall/daymark"
	"github.com/brightfall/daymark/id"
)

// writeMu is the single process-wide file mutex spec.md calls for: every
// profile's save, regardless of which Profile instance issues it, blocks
// behind this one lock.
var writeMu sync.Mutex

// ProfileFileName returns the config-folder-relative file name for a
// profile named name.
func ProfileFileName(name string) string {
	return name + "-Profile.json"
}

// SaveProfile marshals rec as indented JSON and writes it atomically
// (temp file, then os.Rename) into dir, under rec.Name's profile file
// name. The write is serialized against every other SaveProfile call in
// the process.
func SaveProfile(dir string, rec daymark.ProfileRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &daymark.PersistenceError{Op: "marshal", Path: rec.Name, Err: err}
	}

	path := filepath.Join(dir, ProfileFileName(rec.Name))
	tmp := fmt.Sprintf("%s.%s.tmp", path, id.TempSuffix())

	writeMu.Lock()
	defer writeMu.Unlock()

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &daymark.PersistenceError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &daymark.PersistenceError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// LoadProfile decodes one profile file.
func LoadProfile(path string) (daymark.ProfileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return daymark.ProfileRecord{}, &daymark.PersistenceError{Op: "read", Path: path, Err: err}
	}
	var rec daymark.ProfileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return daymark.ProfileRecord{}, &daymark.PersistenceError{Op: "decode", Path: path, Err: err}
	}
	return rec, nil
}

// DiscoverProfiles lists the full paths of every file in dir matching
// "*rofile.json" — spec.md §5/§9's deliberately loose glob, which accepts
// both "Profile.json" and "profile.json" spellings (and, as the Open
// Question notes, any path ending that way).
func DiscoverProfiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &daymark.PersistenceError{Op: "readdir", Path: dir, Err: err}
	}
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match("*rofile.json", entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}
	return matches, nil
}

// EnsureDir creates dir (and any missing parents) if it doesn't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &daymark.PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// DeleteProfileFile removes a profile's on-disk file. A missing file is
// not an error — RemoveProfile should succeed even if the file was
// already gone.
func DeleteProfileFile(dir, name string) error {
	path := filepath.Join(dir, ProfileFileName(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &daymark.PersistenceError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
