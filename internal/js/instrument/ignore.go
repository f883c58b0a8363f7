package instrument

import (
	"fmt"
	"regexp"
)

// IgnoreList decides which sources pass through uninstrumented.
//
// A source is ignored when its whole identifier matches any pattern, so
// "partial" patterns like `jquery.*` only ignore names that start with
// jquery, not names merely containing it.
type IgnoreList struct {
	patterns []*regexp.Regexp
}

// NewIgnoreList compiles the patterns. A pattern that does not compile is
// fatal here rather than silently skipped at match time.
func NewIgnoreList(patterns []string) (*IgnoreList, error) {
	il := &IgnoreList{}
	for _, p := range patterns {
		re, err := regexp.Compile(`\A(?:` + p + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
		}
		il.patterns = append(il.patterns, re)
	}
	return il, nil
}

// ShouldIgnore reports whether the source identifier matches any pattern.
func (il *IgnoreList) ShouldIgnore(name string) bool {
	if il == nil {
		return false
	}
	for _, re := range il.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
