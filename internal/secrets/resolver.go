// Package secrets resolves ${ENV_VAR} placeholder indirections against the
// process environment. Secret values never touch the manifest; the manifest
// only names the variables that supply them.
package secrets

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// Env looks up a variable by name. Injectable so tests do not have to
// mutate the process environment.
type Env func(name string) string

// OSEnv reads from the process environment.
func OSEnv(name string) string {
	return os.Getenv(name)
}

// Resolved is the outcome of resolving a single manifest value.
type Resolved struct {
	// Value is the coerced value, or nil when the placeholder's variable
	// was absent or empty.
	Value any
	// Missing names the unresolved variable, if any.
	Missing []string
}

// Resolve resolves a raw manifest value. Non-placeholder values pass through
// unchanged (literals are respected as-is). A placeholder whose variable is
// unset or empty reports the variable as missing and yields a nil value;
// callers omit the field rather than failing the record.
func Resolve(raw string, env Env) Resolved {
	m := placeholderRe.FindStringSubmatch(raw)
	if m == nil {
		return Resolved{Value: raw}
	}

	name := m[1]
	v := env(name)
	if v == "" {
		return Resolved{Missing: []string{name}}
	}
	return Resolved{Value: Coerce(v)}
}

// Coerce converts an environment value to its natural type: the literal
// strings "true"/"false" become booleans, anything parseable as a number
// becomes numeric, everything else stays a string.
func Coerce(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.TrimSpace(v) != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return v
}

// IsPlaceholder reports whether a raw value has the ${NAME} shape.
func IsPlaceholder(raw string) bool {
	return placeholderRe.MatchString(raw)
}

// PlaceholderName extracts NAME from a ${NAME} value, or returns "" when
// the value is not a placeholder.
func PlaceholderName(raw string) string {
	m := placeholderRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}
