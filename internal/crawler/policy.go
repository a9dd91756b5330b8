package crawler

import (
	"fmt"
	"regexp"
	"strings"
)

// FolderPolicy decides which folders are read. Patterns are matched
// against the full folder path and must match all of it. A nil policy
// includes everything.
type FolderPolicy struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewFolderPolicy compiles the include and exclude patterns. Empty
// patterns are ignored.
func NewFolderPolicy(include, exclude []string) (*FolderPolicy, error) {
	inc, err := compileAll(include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exc, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &FolderPolicy{include: inc, exclude: exc}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range SplitPatterns(patterns) {
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// SplitPatterns flattens comma separated values into single patterns,
// trimming blanks.
func SplitPatterns(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Excluded reports whether path matches an exclude pattern.
func (p *FolderPolicy) Excluded(path string) bool {
	if p == nil {
		return false
	}
	return matchAny(p.exclude, path)
}

// Included reports whether the messages of path should be read. Exclusion
// wins over inclusion; without include patterns every other folder is
// included.
func (p *FolderPolicy) Included(path string) bool {
	if p == nil {
		return true
	}
	if p.Excluded(path) {
		return false
	}
	return len(p.include) == 0 || matchAny(p.include, path)
}

func matchAny(patterns []*regexp.Regexp, path string) bool {
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
