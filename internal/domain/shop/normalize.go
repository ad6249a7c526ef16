package shop

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName returns the canonical form of a product name: trimmed and
// lowercased with Unicode-aware case mapping, so "TOMATO", "Tomato" and
// " tomato " are the same product.
func NormalizeName(name string) string {
	// Casers carry state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// Categories is category input as vendors send it: either a list (whose
// elements may themselves be delimited strings) or a single tag.
type Categories struct {
	List []string
	Tag  string
}

// CategoriesOf is shorthand for a list-based category input.
func CategoriesOf(list ...string) Categories {
	return Categories{List: list}
}

// Provided reports whether any non-blank category value was supplied.
func (c Categories) Provided() bool {
	return len(splitTags(c.List)) > 0 || strings.TrimSpace(c.Tag) != ""
}

// Normalize returns the canonical tag set: the list takes precedence over the
// single tag, values are split on ',' and ';', trimmed, de-duplicated in
// first-seen order, and an empty result becomes [DefaultCategory].
func (c Categories) Normalize() []string {
	tags := splitTags(c.List)
	if len(tags) == 0 {
		tags = splitTags([]string{c.Tag})
	}
	if len(tags) == 0 {
		return []string{DefaultCategory}
	}
	return tags
}

func splitTags(values []string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, v := range values {
		parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
