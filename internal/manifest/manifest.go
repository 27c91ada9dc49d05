// Package manifest loads and persists the declarative credential manifest.
// The document has two independent containers: a user-authored credentials
// list with explicit env mappings, and an auto-maintained section written
// exclusively by the capture path. The two never overwrite each other.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the manifest file name under the credentials dir.
const FileName = "manifest.yml"

// Dir is the directory under the base dir that holds the manifest and the
// shared api key file.
const Dir = "credentials"

// Credential is a user-authored entry: field name -> env var name.
type Credential struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	EnvMapping map[string]string `yaml:"env_mapping,omitempty"`
}

// AutoCredential is an auto-maintained entry keyed by the sanitized
// credential name. Data values are ${ENV_VAR} placeholders unless the user
// edited in a literal. ID, when present, is the platform's stable
// credential id and is the only reliable delete-match key.
type AutoCredential struct {
	ID   string            `yaml:"id,omitempty"`
	Name string            `yaml:"name"`
	Type string            `yaml:"type"`
	Data map[string]string `yaml:"data"`
}

// Manifest is the whole document.
type Manifest struct {
	Credentials []Credential              `yaml:"credentials,omitempty"`
	Auto        map[string]AutoCredential `yaml:"_autoCredentials,omitempty"`
}

// Store reads and writes the manifest file under a base dir.
type Store struct {
	path string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{path: filepath.Join(baseDir, Dir, FileName)}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Load parses the manifest. An absent file is not an error and yields an
// empty manifest.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Save serializes the manifest back, creating parent directories as needed.
func (s *Store) Save(m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// UpsertAuto writes an entry into the auto-maintained section under its
// key, leaving the user-authored credentials untouched.
func (m *Manifest) UpsertAuto(key string, entry AutoCredential) {
	if m.Auto == nil {
		m.Auto = map[string]AutoCredential{}
	}
	m.Auto[key] = entry
}

// DeleteAutoByID removes the auto entry whose stored platform id matches.
// Returns the removed entry's key, or false when no entry carries that id.
func (m *Manifest) DeleteAutoByID(id string) (string, bool) {
	for key, entry := range m.Auto {
		if entry.ID != "" && entry.ID == id {
			delete(m.Auto, key)
			return key, true
		}
	}
	return "", false
}
