package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// SlugID derives a definition id from a display name: accents are folded,
// anything outside [a-z0-9] becomes an underscore, and an _N suffix is
// appended until taken reports the id as free. fallback is used when the
// name has no usable characters.
func SlugID(name, fallback string, taken func(id string) bool) string {
	base := asciiFold(name)
	base = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(base), "_"), "_")
	if base == "" {
		base = fallback
	}
	id := base
	for n := 1; taken != nil && taken(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func asciiFold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NextID returns one more than the largest numeric jersey id.
func NextID(items []Jersey) string {
	max := 0
	for _, it := range items {
		if n, err := strconv.Atoi(it.ID); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// CategoryIDs returns a lookup of the ids in defs.
func CategoryIDs(defs []Category) map[string]struct{} {
	out := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		out[d.ID] = struct{}{}
	}
	return out
}

// TagIDs returns a lookup of the ids in defs.
func TagIDs(defs []Tag) map[string]struct{} {
	out := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		out[d.ID] = struct{}{}
	}
	return out
}

// Dangling counts references to categories and tags that are not defined.
func Dangling(items []Jersey, cats []Category, tags []Tag) (categories, tagRefs int) {
	catIDs, tagIDs := CategoryIDs(cats), TagIDs(tags)
	for _, it := range items {
		for _, c := range it.AllCategories() {
			if _, ok := catIDs[c]; !ok {
				categories++
			}
		}
		for _, t := range it.Tags {
			if _, ok := tagIDs[t]; !ok {
				tagRefs++
			}
		}
	}
	return categories, tagRefs
}
