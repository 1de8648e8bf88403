// Package store persists the task list and presentation preferences as
// a flat key-value JSON document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/lwtt/pkg/model"
)

const (
	xdgAppName = "lwtt"
	dataFile   = "data.json"
)

// ErrCreateDir reports that the data directory could not be created.
var ErrCreateDir = errors.New("cannot create data directory")

// Store reads and writes the document at Path.
type Store struct {
	Path string
}

// New returns a Store for the document at path.
func New(path string) *Store {
	return &Store{Path: path}
}

// DefaultPath is ~/.config/lwtt/data.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName, dataFile), nil
}

// Load reads and decodes the document. A missing file yields an empty
// state. A file that exists but is not a JSON object of strings is an
// error, so that a later save cannot silently replace it.
func (s *Store) Load() (*State, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Decode(nil), nil
		}
		return nil, err
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return Decode(doc), nil
}

// Save encodes records and prefs and replaces the document. The
// directory is created on first save. The previous document survives
// any failure.
func (s *Store) Save(records []model.Record, prefs Preferences) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateDir, err)
	}

	f, err := os.CreateTemp(dir, dataFile+".*")
	if err != nil {
		return fmt.Errorf("failed to open data file for writing: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Encode(records, prefs)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}
