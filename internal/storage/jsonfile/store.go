// Package jsonfile stores small JSON documents on disk with atomic replacement.
package jsonfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Store persists one JSON document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for <dir>/<prefix>_<scope>.json, creating dir if needed.
func NewStore(dir, prefix, scope string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "create state dir %s", dir)
	}

	name := prefix
	if s := SanitizeScope(scope); s != "" {
		name = prefix + "_" + s
	}

	return &Store{path: filepath.Join(dir, name+".json")}, nil
}

// Path returns the file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load decodes the document into v. Returns false when the file does not exist or is empty.
func (s *Store) Load(v any) (bool, error) {
	if s == nil || s.path == "" {
		return false, nil
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, errors.Wrap(err, "read state file")
	}

	if len(payload) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, errors.Wrap(err, "decode state file")
	}

	return true, nil
}

// Save writes the document atomically via temp file.
func (s *Store) Save(v any) error {
	if s == nil || s.path == "" {
		return nil
	}

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode state file")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, filePermissions); err != nil {
		return errors.Wrap(err, "write state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist state file")
	}

	return nil
}

// SanitizeScope lowercases the value and collapses anything outside [a-z0-9] into single underscores.
func SanitizeScope(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	var b strings.Builder

	prevUnderscore := false

	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)

			prevUnderscore = false

			continue
		}

		if !prevUnderscore {
			b.WriteByte('_')

			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
