package lookup

import "strings"

// FilterSpec selects which instruments are eligible. A non-null identifier
// is always required and is not configurable here.
type FilterSpec struct {
	// ExcludeTickers drops instruments whose symbol contains any of these.
	ExcludeTickers []string
	// ListedOnly keeps only listed/active instruments.
	ListedOnly bool
	// DisplayName keeps instruments whose display name contains it. Empty matches all.
	DisplayName string
}

// Candidate is an unfiltered instrument row as held by a lookup source.
type Candidate struct {
	Identifier  string `yaml:"identifier"`
	Symbol      string `yaml:"symbol"`
	DisplayName string `yaml:"display_name"`
	Listed      bool   `yaml:"listed"`
}

// Matches applies the filter the same way the SQL predicate does.
func (f FilterSpec) Matches(c Candidate) bool {
	if c.Identifier == "" {
		return false
	}
	for _, ex := range f.ExcludeTickers {
		if ex != "" && strings.Contains(c.Symbol, ex) {
			return false
		}
	}
	if f.ListedOnly && !c.Listed {
		return false
	}
	if f.DisplayName != "" && !strings.Contains(c.DisplayName, f.DisplayName) {
		return false
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere in the value.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
