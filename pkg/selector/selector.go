package selector

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrEmptySelector is returned when a selector has no usable parts.
var ErrEmptySelector = errors.New("empty selector")

// elementEnd matches the rest of a serialized element up to its terminator.
const elementEnd = `([-_a-zA-Z0-9\.:"= ]*?)?($|;|:([^;^\s]*(;|$|\s)))`

var attributePattern = regexp.MustCompile(`^(.*?)\[(.*)=(.*)\]$`)

// Part is a single compound selector, e.g. "a.btn#buy[data-x=1]".
type Part struct {
	Tag              string
	Classes          []string
	Attributes       map[string]string
	DirectDescendant bool
}

// Parse splits a CSS selector into its parts, innermost element first.
// Supports a subset of CSS selectors:
//   - tag: "button"
//   - .class / tag.class: ".primary", "a.nav.active"
//   - #id / tag#id: "#signup"
//   - [attr=val]: "[data-attr=buy]", "a[href='/x']"
//   - :nth-child(n) / :nth-of-type(n)
//   - descendant (space) and child (>) combinators
func Parse(selector string) ([]Part, error) {
	// universal selectors don't narrow anything down
	selector = strings.ReplaceAll(selector, "> * > ", "")
	selector = strings.ReplaceAll(selector, "> *", "")
	selector = strings.TrimSpace(selector)

	tokens := split(selector)

	var parts []Part
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if tok == ">" || tok == "" {
			continue
		}

		// the combinator sits between this token and its ancestor
		direct := i > 0 && tokens[i-1] == ">"
		parts = append(parts, parsePart(tok, direct))
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptySelector, selector)
	}
	return parts, nil
}

// split breaks the selector on spaces outside of attribute brackets and quotes
func split(selector string) []string {
	var (
		tokens  []string
		current strings.Builder
		inAttr  bool
		quote   rune
	)

	for _, ch := range selector {
		switch {
		case ch == '[' && quote == 0:
			inAttr = true
		case ch == ']' && quote == 0:
			inAttr = false
		case ch == '"' || ch == '\'':
			if quote == 0 {
				quote = ch
			} else if quote == ch {
				quote = 0
			}
		}

		if ch == ' ' && !inAttr && quote == 0 {
			tokens = append(tokens, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}

	return append(tokens, current.String())
}

func parsePart(tok string, direct bool) Part {
	p := Part{
		Attributes:       map[string]string{},
		DirectDescendant: direct,
	}

	if m := attributePattern.FindStringSubmatch(tok); m != nil {
		key := m[2]
		if key == "id" {
			key = "attr_id"
		}
		p.Attributes[key] = strings.Trim(m[3], `"'`)
		tok = m[1]
	}

	for _, pseudo := range []string{"nth-child", "nth-of-type"} {
		marker := ":" + pseudo + "("
		if idx := strings.Index(tok, marker); idx >= 0 {
			rest := tok[idx+len(marker):]
			if end := strings.Index(rest, ")"); end >= 0 {
				p.Attributes[pseudo] = rest[:end]
				rest = rest[end+1:]
			}
			tok = tok[:idx] + rest
		}
	}

	if idx := strings.Index(tok, "#"); idx >= 0 {
		id := tok[idx+1:]
		tok = tok[:idx]
		// classes may follow the id, e.g. #main.wide
		if dot := strings.Index(id, "."); dot >= 0 {
			tok += id[dot:]
			id = id[:dot]
		}
		p.Attributes["attr_id"] = id
	}

	if strings.Contains(tok, ".") {
		split := strings.Split(tok, ".")
		for _, class := range split[1:] {
			if class != "" {
				p.Classes = append(p.Classes, class)
			}
		}
		tok = split[0]
	}

	p.Tag = tok
	return p
}

// Regex compiles a CSS selector into a regular expression that matches a
// serialized element chain ("a.btn:attr__href=\"/x\"nth-child=\"1\";div...").
func Regex(selector string) (string, error) {
	parts, err := Parse(selector)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, p := range parts {
		switch p.Tag {
		case "":
		case "*":
			b.WriteString(".+")
		default:
			b.WriteString(regexp.QuoteMeta(p.Tag))
		}

		if len(p.Classes) > 0 {
			classes := append([]string(nil), p.Classes...)
			sort.Strings(classes)
			for i, c := range classes {
				classes[i] = regexp.QuoteMeta(c)
			}
			b.WriteString(`.*?\.`)
			b.WriteString(strings.Join(classes, `\..*?`))
		}

		if len(p.Attributes) > 0 {
			keys := make([]string, 0, len(p.Attributes))
			for k := range p.Attributes {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			b.WriteString(".*?")
			for _, k := range keys {
				fmt.Fprintf(&b, `%s="%s".*?`, regexp.QuoteMeta(k), regexp.QuoteMeta(p.Attributes[k]))
			}
		}

		b.WriteString(elementEnd)

		// ancestors follow the element in the chain; plain descendants may skip elements
		if i < len(parts)-1 && !p.DirectDescendant {
			b.WriteString("(.*;)?")
		}
	}

	return b.String(), nil
}
