// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package access

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Matcher tests permission keys against a compiled pattern.
//
// Patterns use ':' as the separator, so "user:*" matches "user:read" but not
// "user:read:self", and "user:**" matches both.
type Matcher struct {
	pattern string
	glob    glob.Glob
}

// CompilePattern compiles a permission pattern.
func CompilePattern(pattern string) (*Matcher, error) {
	g, err := glob.Compile(pattern, ':')
	if err != nil {
		return nil, oops.Code("ACCESS_INVALID_PATTERN").
			With("pattern", pattern).
			Wrap(err)
	}
	return &Matcher{pattern: pattern, glob: g}, nil
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether key matches.
func (m *Matcher) Match(key string) bool {
	return m.glob.Match(key)
}

// MatchAny reports whether any of perms matches.
func (m *Matcher) MatchAny(perms []Permission) bool {
	for _, p := range perms {
		if m.glob.Match(p.Key()) {
			return true
		}
	}
	return false
}
