// Package allergen implements the shared allergen parsing, serialization and
// aggregation rules used by both the persistence layer and the report
// builders, so the precedence logic exists exactly once.
package allergen

import (
	"sort"
	"strings"
)

// Status is a declared allergen risk level.
type Status string

const (
	StatusHas Status = "has"
	StatusNo  Status = "no"
	StatusMay Status = "may"
)

// Declaration pairs an allergen name with its declared status.
type Declaration struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// ParseStatus normalises a raw status token. It accepts the canonical
// has/no/may values and the import spreadsheet shorthand (y, yes, n, no,
// may, "may contain", p). Anything else is rejected.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "has", "y", "yes":
		return StatusHas, true
	case "no", "n":
		return StatusNo, true
	case "may", "may contain", "p":
		return StatusMay, true
	default:
		return "", false
	}
}

// Parse decodes a serialized "name:status" list. Malformed or unrecognised
// entries are dropped, never surfaced as errors.
func Parse(serialized string) []Declaration {
	if strings.TrimSpace(serialized) == "" {
		return nil
	}

	tokens := strings.Split(serialized, ",")
	declarations := make([]Declaration, 0, len(tokens))
	for _, token := range tokens {
		idx := strings.LastIndex(token, ":")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(token[:idx])
		status, ok := ParseStatus(token[idx+1:])
		if name == "" || !ok {
			continue
		}
		declarations = append(declarations, Declaration{Name: name, Status: status})
	}
	return declarations
}

// Serialize encodes declarations into the persisted "name:status" list.
// Declarations with empty names are skipped.
func Serialize(declarations []Declaration) string {
	tokens := make([]string, 0, len(declarations))
	for _, declaration := range declarations {
		name := strings.TrimSpace(declaration.Name)
		if name == "" {
			continue
		}
		tokens = append(tokens, name+":"+string(declaration.Status))
	}
	return strings.Join(tokens, ",")
}

// Summarize merges declaration lists into a single summary map using the
// has > may precedence. A "no" or undeclared status contributes nothing and
// never appears in the result. The merge is commutative and associative, so
// ingredient order cannot affect the outcome.
func Summarize(lists ...[]Declaration) map[string]Status {
	summary := make(map[string]Status)
	for _, list := range lists {
		for _, declaration := range list {
			name := strings.TrimSpace(declaration.Name)
			if name == "" {
				continue
			}
			switch declaration.Status {
			case StatusHas:
				summary[name] = StatusHas
			case StatusMay:
				if summary[name] != StatusHas {
					summary[name] = StatusMay
				}
			}
		}
	}
	return summary
}

// Names returns the summary's allergen names sorted alphabetically, which
// report builders use for stable column ordering.
func Names(summary map[string]Status) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
