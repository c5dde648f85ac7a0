package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// aliasFile is the YAML shape for operator-supplied transition aliases:
//
//	transition_aliases:
//	  in review:
//	    - ready for review
//	    - code review
type aliasFile struct {
	TransitionAliases map[string][]string `yaml:"transition_aliases"`
}

// DefaultTransitionAliases maps a canonical target status (lowercased) to the
// transition or destination names that should satisfy it. Jira workflows name
// the review column inconsistently, so "in review" carries several built-ins.
func DefaultTransitionAliases() map[string][]string {
	return map[string][]string{
		"in review": {"ready for review", "in review", "review", "code review"},
	}
}

// loadTransitionAliases merges the operator's YAML alias file (if any) over
// the built-in defaults. User-supplied aliases for a status replace the
// defaults for that status; untouched statuses keep theirs.
func loadTransitionAliases(path string) (map[string][]string, error) {
	aliases := DefaultTransitionAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAliasFile, path, err)
	}

	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAliasFile, path, err)
	}

	for status, names := range file.TransitionAliases {
		key := strings.ToLower(strings.TrimSpace(status))
		if key == "" || len(names) == 0 {
			continue
		}
		cleaned := make([]string, 0, len(names))
		for _, name := range names {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			aliases[key] = cleaned
		}
	}
	return aliases, nil
}
