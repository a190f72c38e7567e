package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSourceAliasesYAML []byte

// SourceAliases maps a normalized (lower-case, trimmed) preferred source name
// to the provider names considered equivalent to it.
type SourceAliases map[string][]string

// Lookup returns the aliases configured for a preferred source name.
func (a SourceAliases) Lookup(preferred string) []string {
	return a[NormalizeSourceName(preferred)]
}

// NormalizeSourceName is the key form used by SourceAliases.
func NormalizeSourceName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type sourceAliasFile struct {
	Sources []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"sources"`
}

// DefaultSourceAliases returns the built-in alias table.
func DefaultSourceAliases() SourceAliases {
	aliases, err := ParseSourceAliases(defaultSourceAliasesYAML)
	if err != nil {
		// embedded file is covered by tests
		panic(fmt.Sprintf("embedded sources.yaml: %v", err))
	}
	return aliases
}

// LoadSourceAliases reads an alias table from a YAML file. An empty path
// returns the built-in table.
func LoadSourceAliases(path string) (SourceAliases, error) {
	if path == "" {
		return DefaultSourceAliases(), nil
	}
	// #nosec G304 -- path comes from operator configuration, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source aliases: %w", err)
	}
	return ParseSourceAliases(data)
}

// ParseSourceAliases parses the YAML alias format:
//
//	sources:
//	  - name: BBC
//	    aliases: [BBC News]
//
// Entries for the same name are merged.
func ParseSourceAliases(data []byte) (SourceAliases, error) {
	var file sourceAliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse source aliases: %w", err)
	}

	out := make(SourceAliases, len(file.Sources))
	for i, entry := range file.Sources {
		key := NormalizeSourceName(entry.Name)
		if key == "" {
			return nil, fmt.Errorf("parse source aliases: entry %d has no name", i)
		}
		for _, alias := range entry.Aliases {
			if alias = strings.TrimSpace(alias); alias != "" {
				out[key] = append(out[key], alias)
			}
		}
		if _, ok := out[key]; !ok {
			out[key] = nil
		}
	}
	return out, nil
}
