// Package workflows persists workflow documents as pretty-printed JSON
// files and locates them for deletion by stable identity rather than by
// name alone.
package workflows

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"flowsync/internal/identity"
)

// SyncIDField is the identifier embedded in every exported file. The
// platform never interprets a field by this name; it exists solely so a
// rename between save and delete still resolves to the right file. It is
// stripped again on any read back.
const SyncIDField = "_syncId"

// ErrNotFound reports that no file matched an identifier or name. Callers
// treat an already-absent file as a benign outcome, not a failure.
var ErrNotFound = errors.New("workflow file not found")

// Writer saves and deletes workflow files under a base dir.
type Writer struct {
	baseDir string
}

// NewWriter creates a Writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Save writes the cleaned workflow document to its canonical path,
// embedding the stable id when one is known. Returns the written path.
func (w *Writer) Save(doc map[string]any, name, workflowID, folderPath string) (string, error) {
	outPath := identity.WorkflowPath(name, folderPath, w.baseDir)

	toWrite := make(map[string]any, len(doc)+1)
	if workflowID != "" {
		toWrite[SyncIDField] = workflowID
	}
	for k, v := range doc {
		toWrite[k] = v
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create workflow dir: %w", err)
	}

	data, err := json.MarshalIndent(toWrite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize workflow: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write workflow: %w", err)
	}
	return outPath, nil
}

// Delete removes the workflow file matching the given identifier or name.
// It first scans for a file whose embedded id matches, then falls back to
// the name-derived path; the fallback covers files written before id
// embedding existed or written externally. Returns the deleted path, or
// ErrNotFound when no file matched.
func (w *Writer) Delete(idOrName string) (string, error) {
	path := w.Locate(idOrName)
	if path == "" {
		return "", ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to delete workflow file: %w", err)
	}
	return path, nil
}

// Locate finds the file for an identifier or name without removing it.
// Returns "" when nothing matched.
func (w *Writer) Locate(idOrName string) string {
	root := filepath.Join(w.baseDir, identity.WorkflowsDir)

	if path := findBySyncID(root, idOrName); path != "" {
		return path
	}

	filename := identity.Slugify(idOrName) + ".json"
	return findByName(root, filename)
}

// ReadDocument reads a workflow file back with the embedded id stripped, in
// the shape the platform accepts for import.
func ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}
	delete(doc, SyncIDField)
	return doc, nil
}

func findBySyncID(root, workflowID string) string {
	if workflowID == "" {
		return ""
	}
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return fs.SkipAll
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var doc struct {
			SyncID string `json:"_syncId"`
		}
		// invalid json files are skipped
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil
		}
		if doc.SyncID == workflowID {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func findByName(root, filename string) string {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipAll
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}
