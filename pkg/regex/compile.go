package regex

import (
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

type cacheKey struct {
	pattern    string
	ignoreCase bool
}

var cache sync.Map

// Compile compiles pattern with regexp2, reusing previously compiled patterns.
func Compile(pattern string, ignoreCase bool) (*Pattern, error) {
	key := cacheKey{pattern: pattern, ignoreCase: ignoreCase}
	if p, ok := cache.Load(key); ok {
		return p.(*Pattern), nil
	}

	opts := regexp2.None
	if ignoreCase {
		opts |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		Expression: re,
		Text:       pattern,
	}
	actual, _ := cache.LoadOrStore(key, p)
	return actual.(*Pattern), nil
}

func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := Compile(pattern, false); err != nil {
			return err
		}
	}
	return nil
}

// LikeToRegex converts a SQL LIKE pattern into an anchored regular expression.
// % matches any run of characters, _ a single character and \ escapes the next one.
func LikeToRegex(like string) string {
	var sb strings.Builder
	sb.WriteString(`^`)

	escaped := false
	for _, r := range like {
		switch {
		case escaped:
			sb.WriteString(quote(r))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			sb.WriteString(`.*`)
		case r == '_':
			sb.WriteString(`.`)
		default:
			sb.WriteString(quote(r))
		}
	}
	if escaped {
		sb.WriteString(`\\`)
	}

	sb.WriteString(`$`)
	return sb.String()
}

func quote(r rune) string {
	return regexp2.Escape(string(r))
}

// CompileLike compiles a SQL LIKE pattern.
func CompileLike(like string, ignoreCase bool) (*Pattern, error) {
	return Compile(`(?s)`+LikeToRegex(like), ignoreCase)
}
