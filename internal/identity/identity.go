// Package identity derives the stable on-disk names the sync uses:
// manifest keys and env var names for credentials, file paths for
// workflows. Everything here is a pure function of its inputs.
package identity

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// WorkflowsDir is the fixed root under the base dir that holds exported
// workflow files.
const WorkflowsDir = "workflows"

// CredentialKey derives the manifest key for a credential name: lower-case,
// non-alphanumeric runs collapsed to a single underscore, no leading or
// trailing underscores. Same name always yields the same key.
func CredentialKey(name string) string {
	return sanitize(strings.ToLower(name), '_')
}

// EnvVarName proposes the environment variable that supplies a credential
// field, following the PREFIX_FIELD convention.
func EnvVarName(credentialName, fieldName string) string {
	prefix := sanitize(strings.ToUpper(credentialName), '_')
	suffix := sanitize(strings.ToUpper(fieldName), '_')
	return prefix + "_" + suffix
}

// Slugify turns a workflow name into its file stem: lower-case ASCII,
// hyphen-separated.
func Slugify(name string) string {
	return sanitize(strings.ToLower(name), '-')
}

// WorkflowPath computes the canonical file path for a workflow. A non-empty
// folder path nests the file under the workflows root.
func WorkflowPath(name, folderPath, baseDir string) string {
	filename := Slugify(name) + ".json"
	if folderPath != "" {
		return filepath.Join(baseDir, WorkflowsDir, filepath.FromSlash(folderPath), filename)
	}
	return filepath.Join(baseDir, WorkflowsDir, filename)
}

// asciiFold decomposes accented letters and strips the combining marks, so
// "Ü" folds to "U" instead of vanishing from the derived name.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitize collapses every run of characters outside [a-z0-9] (or [A-Z0-9]
// for upper-cased input) into a single separator and trims separators from
// both ends. Accented letters are folded to their ASCII base first.
func sanitize(s string, sep byte) string {
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte(sep)
			}
			pending = false
			b.WriteByte(c)
		} else {
			pending = true
		}
	}
	return b.String()
}
