package fetch

import (
	"news-digest/internal/config"
)

// sourceMatcher decides whether a provider source name belongs to the user's
// preferred sources, taking configured aliases into account.
type sourceMatcher struct {
	names map[string]struct{}
}

func newSourceMatcher(preferred []string, aliases config.SourceAliases) *sourceMatcher {
	m := &sourceMatcher{names: make(map[string]struct{})}
	for _, p := range preferred {
		key := config.NormalizeSourceName(p)
		if key == "" {
			continue
		}
		m.names[key] = struct{}{}
		for _, alias := range aliases.Lookup(key) {
			if a := config.NormalizeSourceName(alias); a != "" {
				m.names[a] = struct{}{}
			}
		}
	}
	return m
}

// active reports whether any preferred source was configured.
func (m *sourceMatcher) active() bool {
	return len(m.names) > 0
}

func (m *sourceMatcher) match(source string) bool {
	_, ok := m.names[config.NormalizeSourceName(source)]
	return ok
}
