package assetconfig

import (
	"path"
	"strings"
)

// Glob is a compiled match pattern. No third-party glob library in the
// surveyed dependency set supports the "**" recursive-directory wildcard
// used by the config rule files, so this is a small hand-rolled matcher
// layered on path.Match: a pattern is split on "/", each non-"**" segment
// is matched against the corresponding path segment with path.Match, and
// "**" consumes zero or more path segments before lookahead resumes.
type Glob struct {
	segments []string
}

// CompileGlob validates and compiles a glob pattern relative to a config
// rule's directory.
func CompileGlob(pattern string) (*Glob, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	segs := strings.Split(pattern, "/")
	for _, s := range segs {
		if s == "**" {
			continue
		}
		if _, err := path.Match(s, ""); err != nil {
			return nil, err
		}
	}
	return &Glob{segments: segs}, nil
}

// Match reports whether rel (a slash-separated path relative to the rule's
// directory) matches the compiled pattern.
func (g *Glob) Match(rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	return matchSegments(g.segments, strings.Split(rel, "/"))
}

func matchSegments(pattern, input []string) bool {
	if len(pattern) == 0 {
		return len(input) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], input) {
			return true
		}
		if len(input) == 0 {
			return false
		}
		return matchSegments(pattern, input[1:])
	}
	if len(input) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], input[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], input[1:])
}
