package regex

func Check(text string, pattern *Pattern) (bool, error) {
	match, err := pattern.Expression.MatchString(text)
	if err != nil {
		return false, err
	}
	return match, nil
}

// CheckAny returns true if any pattern matches
func CheckAny(text string, patterns []*Pattern) (bool, error) {
	for _, pattern := range patterns {
		match, err := Check(text, pattern)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// MatchString compiles pattern (cached) and matches it against text.
func MatchString(pattern string, text string, ignoreCase bool) (bool, error) {
	p, err := Compile(pattern, ignoreCase)
	if err != nil {
		return false, err
	}
	return Check(text, p)
}

// MatchLike reports whether text matches the SQL LIKE pattern.
func MatchLike(like string, text string, ignoreCase bool) (bool, error) {
	p, err := CompileLike(like, ignoreCase)
	if err != nil {
		return false, err
	}
	return Check(text, p)
}
