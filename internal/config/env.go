package config

import (
	"os"
	"strings"
)

// Lookup returns the trimmed value of an environment variable. Variables
// that are unset or blank are reported as missing.
func Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Get returns the trimmed value of name, or fallback when it is missing.
func Get(name, fallback string) string {
	if v, ok := Lookup(name); ok {
		return v
	}
	return fallback
}

// Present reports whether every named variable is set to a non-blank value.
// Readiness probes use it for their required settings.
func Present(names ...string) bool {
	for _, name := range names {
		if _, ok := Lookup(name); !ok {
			return false
		}
	}
	return true
}

// List splits a comma-separated variable, dropping empty elements.
func List(name string) []string {
	v, ok := Lookup(name)
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
