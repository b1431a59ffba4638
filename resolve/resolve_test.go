package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/jerseyfolio/catalog"
)

var testCategories = []catalog.Category{
	{ID: "home", Name: "Domicile", Color: "#123456"},
	{ID: "retro_90s", Name: "Rétro 90s"},
}

var testTags = []catalog.Tag{
	{ID: "signed", Name: "Signé", Color: "#ff0000"},
	{ID: "match_worn", Name: "Match worn"},
}

func TestResolveByID(t *testing.T) {
	r := NewCategories(testCategories)
	l := r.Resolve("home")
	assert.True(t, l.Known)
	assert.Equal(t, "Domicile", l.Name)
	assert.Equal(t, "#123456", l.Color)

	l = r.Resolve("retro_90s")
	assert.Equal(t, "Rétro 90s", l.Name)
	assert.Equal(t, catalog.DefaultCategoryColor, l.Color, "missing color falls back to the kind default")
}

func TestResolveByNormalizedName(t *testing.T) {
	r := NewTags(testTags)
	for _, raw := range []string{"Signé", "signe", "SIGNE ", "signed"} {
		l := r.Resolve(raw)
		assert.Truef(t, l.Known, "raw %q", raw)
		assert.Equalf(t, "signed", l.ID, "raw %q", raw)
	}
}

func TestResolveLegacyFallback(t *testing.T) {
	cats := NewCategories(nil)
	assert.Equal(t, "Gardien", cats.Name("keeper"))
	assert.Equal(t, "Extérieur", cats.Name("AWAY"))

	tags := NewTags(nil)
	assert.Equal(t, "Vintage", tags.Name("vintage"))
	assert.Equal(t, "deleted tag (keeper)", tags.Name("keeper"), "keeper is only a legacy category")
}

func TestResolveUnknownIsTotal(t *testing.T) {
	cats := NewCategories(testCategories)
	tags := NewTags(testTags)
	for _, raw := range []string{"", "gone", "  ", "ünïcødé", "deleted tag (x)"} {
		cl := cats.Resolve(raw)
		tl := tags.Resolve(raw)
		require.NotEmpty(t, cl.Name)
		require.NotEmpty(t, tl.Name)
		assert.Equal(t, cl, cats.Resolve(raw), "resolution must be stable")
		assert.Equal(t, tl, tags.Resolve(raw), "resolution must be stable")
	}
	l := cats.Resolve("gone")
	assert.False(t, l.Known)
	assert.Equal(t, "deleted category (gone)", l.Name)
	assert.Equal(t, PlaceholderColor, l.Color)
}

func TestResolveDeletedCategoryStillRenders(t *testing.T) {
	defs := append([]catalog.Category(nil), testCategories...)
	j := catalog.Jersey{ID: "1", Category: "retro_90s", Images: []string{"1.jpg"}}

	before := NewCategories(defs).Resolve(j.Category)
	require.True(t, before.Known)

	after := NewCategories(defs[:1]).Resolve(j.Category)
	assert.False(t, after.Known)
	assert.Equal(t, "deleted category (retro_90s)", after.Name)
}

func TestResolveAllDedupes(t *testing.T) {
	r := NewTags(testTags)
	labels := r.ResolveAll([]string{"signed", "Signé", "match_worn", "SIGNE", "old", "old"})
	var names []string
	for _, l := range labels {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Signé", "Match worn", "deleted tag (old)"}, names)
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Extérieur":  "exterieur",
		" ÉDITION ":  "edition",
		"Spéciaux":   "speciaux",
		"plain":      "plain",
		"ﬁnal":       "ﬁnal",
		"Çáva": "cava",
	}
	for in, want := range tests {
		assert.Equalf(t, want, Normalize(in), "Normalize(%q)", in)
	}
}
