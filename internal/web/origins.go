// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// originPatterns matches Origin headers against glob patterns such as
// "https://*.example.com". A '*' never crosses a '.' or ':' so it matches a
// single host label.
type originPatterns []glob.Glob

// splitOrigins separates literal origins from glob patterns and compiles the
// patterns.
func splitOrigins(origins []string) (literal []string, patterns originPatterns, err error) {
	for _, origin := range origins {
		if !strings.ContainsAny(origin, "*?[{") {
			literal = append(literal, origin)
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return nil, nil, oops.Code("WEB_INVALID_CONFIG").
				With("origin", origin).
				Errorf("origin pattern must start with http:// or https://")
		}
		g, err := glob.Compile(origin, '.', ':')
		if err != nil {
			return nil, nil, oops.Code("WEB_INVALID_CONFIG").With("origin", origin).Wrap(err)
		}
		patterns = append(patterns, g)
	}
	return literal, patterns, nil
}

func (p originPatterns) allow(origin string) bool {
	for _, g := range p {
		if g.Match(origin) {
			return true
		}
	}
	return false
}
