package services

import (
	"path"
	"strings"
)

// Excluded reports whether relPath (slash-separated, relative to the
// source root) is covered by any exclusion pattern. A pattern matches
// when it equals the path, matches it as a glob, matches any single path
// segment, or names a directory the path lives under.
func Excluded(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(relPath, pattern string) bool {
	if relPath == pattern {
		return true
	}
	if ok, err := path.Match(pattern, relPath); err == nil && ok {
		return true
	}
	// Directory prefix: "tests" excludes "tests/test_api.py".
	if strings.HasPrefix(relPath, pattern+"/") {
		return true
	}
	// Per-segment glob: "*.enc" excludes ".deploy/id_deploy.enc".
	for _, segment := range strings.Split(relPath, "/") {
		if ok, err := path.Match(pattern, segment); err == nil && ok {
			return true
		}
	}
	return false
}
