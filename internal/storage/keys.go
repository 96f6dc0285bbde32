package storage

import (
	"strings"

	"github.com/google/uuid"
)

// KeyInput describes an object key request. Filename is untrusted client input.
type KeyInput struct {
	Filename  string
	ProjectID string
	UserID    string
	// Prefix overrides the configured key prefix when set.
	Prefix string
}

// newToken is swapped in tests to make keys deterministic.
var newToken = func() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}

// BuildObjectKey returns <prefix>/[project/][user/]<token>-<name>. The name is reduced to
// its last path element with traversal sequences removed so the key cannot escape prefix.
func BuildObjectKey(defaultPrefix string, in KeyInput) string {
	prefix := in.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	segments := make([]string, 0, 3)
	for _, s := range []string{prefix, in.ProjectID, in.UserID} {
		if s = sanitizeSegment(s); s != "" {
			segments = append(segments, s)
		}
	}

	return strings.Join(segments, "/") + "/" + newToken() + "-" + SanitizeFilename(in.Filename)
}

// SanitizeFilename keeps only the base name of a client supplied path.
func SanitizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	return name
}

func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, `\`, "/")
	parts := strings.Split(s, "/")
	kept := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "." || p == ".." {
			continue
		}
		kept = append(kept, strings.ReplaceAll(p, "..", ""))
	}
	return strings.Join(kept, "/")
}

// HasPrefix reports whether key lives under prefix and contains no traversal sequences.
func HasPrefix(key, prefix string) bool {
	want := strings.Trim(prefix, "/") + "/"
	if !strings.HasPrefix(key, want) || len(key) == len(want) {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return false
		}
	}
	return !strings.Contains(key, `\`)
}
