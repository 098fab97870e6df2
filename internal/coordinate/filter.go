package coordinate

import (
	"fmt"
	"regexp"
)

// GroupFilter excludes artifacts whose group id matches any configured pattern
type GroupFilter struct {
	patterns []*regexp.Regexp
}

// NewGroupFilter compiles the exclusion patterns
func NewGroupFilter(patterns []string) (*GroupFilter, error) {
	f := &GroupFilter{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid group pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// IsExcluded checks if the artifact's group matches any excluded pattern
func (f *GroupFilter) IsExcluded(a Artifact) bool {
	if f == nil {
		return false
	}
	for _, pattern := range f.patterns {
		if pattern.MatchString(a.GroupID) {
			return true
		}
	}
	return false
}
