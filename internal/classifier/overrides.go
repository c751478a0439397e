package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Override pins the expected page count for documents whose display name
// matches Pattern.
type Override struct {
	Pattern *regexp.Regexp
	Pages   int
}

// OverrideTable is consulted in order; the first match wins.
type OverrideTable []Override

// Lookup returns the pinned page count for name.
func (t OverrideTable) Lookup(name string) (int, bool) {
	for _, o := range t {
		if o.Pattern != nil && o.Pattern.MatchString(name) {
			return o.Pages, true
		}
	}
	return 0, false
}

// ParseOverrides parses "pattern=N;pattern=N". Patterns are case-insensitive
// regular expressions matched against display names.
func ParseOverrides(s string) (OverrideTable, error) {
	var table OverrideTable
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.LastIndex(entry, "=")
		if i <= 0 {
			return nil, fmt.Errorf("override %q: expected pattern=pages", entry)
		}
		pages, err := strconv.Atoi(strings.TrimSpace(entry[i+1:]))
		if err != nil || pages <= 0 {
			return nil, fmt.Errorf("override %q: invalid page count", entry)
		}
		re, err := regexp.Compile("(?i)" + strings.TrimSpace(entry[:i]))
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", entry, err)
		}
		table = append(table, Override{Pattern: re, Pages: pages})
	}
	return table, nil
}

// ParsePatterns compiles a ";"-separated list of case-insensitive patterns.
func ParsePatterns(s string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range strings.Split(s, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
