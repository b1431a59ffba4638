// Package resolve maps raw category and tag references found on jerseys to
// display labels. Resolution never fails: references to deleted or unknown
// definitions get a placeholder label.
package resolve

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/eringen/jerseyfolio/catalog"
)

// Kind selects the placeholder wording and fallback table.
type Kind string

const (
	KindCategory Kind = "category"
	KindTag      Kind = "tag"
)

// PlaceholderColor is used for labels that match no definition.
const PlaceholderColor = "#6c757d"

// legacy ids that predate categories.json and tags.json
var legacyNames = map[Kind]map[string]string{
	KindCategory: {
		"home":    "Domicile",
		"away":    "Extérieur",
		"special": "Spéciaux",
		"vintage": "Vintage",
		"keeper":  "Gardien",
	},
	KindTag: {
		"home":    "Domicile",
		"away":    "Extérieur",
		"special": "Spéciaux",
		"vintage": "Vintage",
	},
}

// Label is a resolved reference.
type Label struct {
	Raw   string
	ID    string
	Name  string
	Color string
	// Known is false for placeholder labels.
	Known bool
}

type definition struct {
	id, name, color string
}

// Resolver looks references up by id, then by display name, then in the
// legacy table.
type Resolver struct {
	kind         Kind
	byID         map[string]definition
	byName       map[string]definition
	defaultColor string
}

// NewCategories builds a resolver over category definitions.
func NewCategories(defs []catalog.Category) *Resolver {
	r := newResolver(KindCategory, catalog.DefaultCategoryColor)
	for _, d := range defs {
		r.add(definition{id: d.ID, name: d.Name, color: d.Color})
	}
	return r
}

// NewTags builds a resolver over tag definitions.
func NewTags(defs []catalog.Tag) *Resolver {
	r := newResolver(KindTag, catalog.DefaultTagColor)
	for _, d := range defs {
		r.add(definition{id: d.ID, name: d.Name, color: d.Color})
	}
	return r
}

func newResolver(kind Kind, color string) *Resolver {
	return &Resolver{
		kind:         kind,
		byID:         make(map[string]definition),
		byName:       make(map[string]definition),
		defaultColor: color,
	}
}

func (r *Resolver) add(d definition) {
	if d.name == "" {
		d.name = d.id
	}
	if d.color == "" {
		d.color = r.defaultColor
	}
	if k := Normalize(d.id); k != "" {
		if _, dup := r.byID[k]; !dup {
			r.byID[k] = d
		}
	}
	if k := Normalize(d.name); k != "" {
		if _, dup := r.byName[k]; !dup {
			r.byName[k] = d
		}
	}
}

// Resolve returns the label for raw. The result always has a non-empty Name.
func (r *Resolver) Resolve(raw string) Label {
	key := Normalize(raw)
	if d, ok := r.byID[key]; ok {
		return Label{Raw: raw, ID: d.id, Name: d.name, Color: d.color, Known: true}
	}
	if d, ok := r.byName[key]; ok {
		return Label{Raw: raw, ID: d.id, Name: d.name, Color: d.color, Known: true}
	}
	if name, ok := legacyNames[r.kind][key]; ok {
		return Label{Raw: raw, ID: key, Name: name, Color: r.defaultColor, Known: true}
	}
	return Label{
		Raw:   raw,
		ID:    raw,
		Name:  fmt.Sprintf("deleted %s (%s)", r.kind, raw),
		Color: PlaceholderColor,
	}
}

// ResolveAll resolves every reference, dropping labels whose display name
// was already produced by an earlier reference.
func (r *Resolver) ResolveAll(raws []string) []Label {
	seen := make(map[string]struct{}, len(raws))
	out := make([]Label, 0, len(raws))
	for _, raw := range raws {
		l := r.Resolve(raw)
		k := Normalize(l.Name)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Name is shorthand for Resolve(raw).Name.
func (r *Resolver) Name(raw string) string {
	return r.Resolve(raw).Name
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Normalize decomposes s, drops combining marks, lower-cases and trims it,
// so "Extérieur", "exterieur " and "EXTERIEUR" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
