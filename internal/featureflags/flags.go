package featureflags

import (
	"os"
	"strings"
)

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v, ok := lookup(name)
	return ok && v
}

// Flags resolves feature flags against per-flag defaults, so features that
// ship enabled stay on unless explicitly switched off in the environment.
type Flags struct {
	defaults map[string]bool
}

// New creates a flag set with the given defaults. Unknown flags default to
// off.
func New(defaults map[string]bool) *Flags {
	return &Flags{defaults: defaults}
}

// Enabled reports whether a flag is on, preferring the environment over the
// default.
func (f *Flags) Enabled(name string) bool {
	if v, ok := lookup(name); ok {
		return v
	}
	return f.defaults[name]
}

func lookup(name string) (bool, bool) {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, true
	default:
		return false, true
	}
}
