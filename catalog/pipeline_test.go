package catalog

import (
	"fmt"
	"testing"
)

func numbered(n int) []Jersey {
	items := make([]Jersey, n)
	for i := range items {
		items[i] = Jersey{
			ID:        fmt.Sprint(i + 1),
			Title:     fmt.Sprintf("Maillot %02d", i+1),
			Category:  "home",
			Images:    []string{fmt.Sprintf("%d.jpg", i+1)},
			CreatedAt: fmt.Sprintf("2024-01-%02dT10:00:00", i+1),
		}
	}
	return items
}

func TestApplyThirteenItemsTwoPages(t *testing.T) {
	items := numbered(13)
	v := NewViewState(12)

	page := Apply(items, v)
	if len(page.Items) != 12 {
		t.Fatalf("page 1 has %d items, want 12", len(page.Items))
	}
	if !page.Pagination.HasNext {
		t.Errorf("page 1 HasNext = false, want true")
	}
	if page.Pagination.HasPrev {
		t.Errorf("page 1 HasPrev = true, want false")
	}
	if page.Pagination.TotalPages != 2 || page.Pagination.TotalItems != 13 {
		t.Errorf("pagination = %+v, want 2 pages of 13 items", page.Pagination)
	}

	v.GoToPage(2)
	page = Apply(items, v)
	if len(page.Items) != 1 {
		t.Fatalf("page 2 has %d items, want 1", len(page.Items))
	}
	if page.Pagination.HasNext {
		t.Errorf("page 2 HasNext = true, want false")
	}
	if !page.Pagination.HasPrev {
		t.Errorf("page 2 HasPrev = false, want true")
	}
	// newest first by default, so the oldest item lands on page 2
	if page.Items[0].ID != "1" {
		t.Errorf("page 2 item = %s, want 1", page.Items[0].ID)
	}
}

func TestApplyPageSizeBound(t *testing.T) {
	for n := 0; n <= 30; n++ {
		items := numbered(n)
		for per := 1; per <= 13; per += 4 {
			v := NewViewState(per)
			for p := 1; p <= 4; p++ {
				v.GoToPage(p)
				page := Apply(items, v)
				if len(page.Items) > per {
					t.Fatalf("n=%d per=%d page=%d: %d items exceeds page size", n, per, p, len(page.Items))
				}
				want := (n + per - 1) / per
				if page.Pagination.TotalPages != want {
					t.Fatalf("n=%d per=%d: TotalPages = %d, want %d", n, per, page.Pagination.TotalPages, want)
				}
			}
		}
	}
}

func TestSearchMatchesTagCaseInsensitive(t *testing.T) {
	items := []Jersey{
		{ID: "1", Title: "Domicile 2024", Tags: []string{"vintage"}, Images: []string{"a.jpg"}},
		{ID: "2", Title: "Extérieur 2024", Tags: []string{"retro"}, Images: []string{"b.jpg"}},
		{ID: "3", Title: "Third kit", Description: "Blue", Images: []string{"c.jpg"}},
	}
	for _, term := range []string{"vintage", "VINTAGE", "Vint"} {
		got := Search(items, term)
		if len(got) != 1 || got[0].ID != "1" {
			t.Errorf("Search(%q) = %v, want only item 1", term, ids(got))
		}
	}
}

func TestSearchFields(t *testing.T) {
	items := []Jersey{
		{ID: "1", Name: "Home Shirt"},
		{ID: "2", Title: "Away"},
		{ID: "3", Description: "Worn in the FINAL"},
		{ID: "4"},
	}
	tests := []struct {
		term string
		want []string
	}{
		{"shirt", []string{"1"}},
		{"away", []string{"2"}},
		{"final", []string{"3"}},
		{"", []string{"1", "2", "3", "4"}},
		{"nothing", nil},
	}
	for _, tt := range tests {
		got := ids(Search(items, tt.term))
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("Search(%q) = %v, want %v", tt.term, got, tt.want)
		}
	}
}

func TestFilterAllKeepsCardinality(t *testing.T) {
	items := []Jersey{
		{ID: "1", Category: "home"},
		{ID: "2", Category: "away", Categories: []string{"vintage"}},
		{ID: "3", Category: "special"},
	}
	if got := Filter(items, AllCategories); len(got) != len(items) {
		t.Errorf("Filter(all) kept %d, want %d", len(got), len(items))
	}
	if got := ids(Filter(items, "vintage")); fmt.Sprint(got) != "[2]" {
		t.Errorf("Filter(vintage) = %v, want [2]", got)
	}
	if got := ids(Filter(items, "home")); fmt.Sprint(got) != "[1]" {
		t.Errorf("Filter(home) = %v, want [1]", got)
	}
	if got := Filter(items, "keeper"); len(got) != 0 {
		t.Errorf("Filter(keeper) = %v, want none", ids(got))
	}
}

func TestViewStateResetsPage(t *testing.T) {
	v := NewViewState(12)
	v.GoToPage(3)
	v.SetCategory("home")
	if v.Page != 1 {
		t.Errorf("SetCategory left page at %d", v.Page)
	}
	v.GoToPage(3)
	v.SetSearch("retro")
	if v.Page != 1 {
		t.Errorf("SetSearch left page at %d", v.Page)
	}
	v.GoToPage(4)
	v.SetCategory("")
	if v.Category != AllCategories || v.Page != 1 {
		t.Errorf("SetCategory(\"\") = %q page %d, want all page 1", v.Category, v.Page)
	}
	v.GoToPage(0)
	if v.Page != 1 {
		t.Errorf("GoToPage(0) = %d, want 1", v.Page)
	}
}

func TestSortKeys(t *testing.T) {
	items := []Jersey{
		{ID: "a", Name: "beta", Year: Year{Text: "2023-24"}, CreatedAt: "2024-03-01T00:00:00Z"},
		{ID: "b", Title: "Alpha", Year: NumericYear(1998), UpdatedAt: "2024-05-01T00:00:00"},
		{ID: "c", Name: "gamma", Date: "2023-01-01"},
		{ID: "d", Name: "Delta", Year: NumericYear(2010)},
	}
	tests := []struct {
		key   SortKey
		order Order
		want  string
	}{
		{SortName, Asc, "[b a d c]"},
		{SortName, Desc, "[c d a b]"},
		{SortYear, Asc, "[c b d a]"},
		{SortYear, Desc, "[a d b c]"},
		{SortDate, Desc, "[b a c d]"},
		{SortDate, Asc, "[d c a b]"},
	}
	for _, tt := range tests {
		got := append([]Jersey(nil), items...)
		Sort(got, tt.key, tt.order)
		if fmt.Sprint(ids(got)) != tt.want {
			t.Errorf("Sort(%s, %s) = %v, want %s", tt.key, tt.order, ids(got), tt.want)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := numbered(5)
	before := fmt.Sprint(ids(items))
	v := NewViewState(2)
	v.SetSort(SortName, Desc)
	Apply(items, v)
	if after := fmt.Sprint(ids(items)); after != before {
		t.Errorf("input reordered: %s -> %s", before, after)
	}
}

func TestPaginatePastEnd(t *testing.T) {
	got, p := Paginate(numbered(3), 5, 2)
	if len(got) != 0 {
		t.Errorf("got %d items past the end", len(got))
	}
	if p.HasNext || !p.HasPrev || p.TotalPages != 2 {
		t.Errorf("pagination = %+v", p)
	}
}

func TestPopularAndRecent(t *testing.T) {
	items := []Jersey{
		{ID: "1", Views: 5, CreatedAt: "2024-01-01"},
		{ID: "2", Views: 50, CreatedAt: "2022-01-01"},
		{ID: "3", Views: 7, CreatedAt: "2025-01-01"},
	}
	if got := fmt.Sprint(ids(Popular(items, 2))); got != "[2 3]" {
		t.Errorf("Popular = %s, want [2 3]", got)
	}
	if got := fmt.Sprint(ids(Recent(items, 2))); got != "[3 1]" {
		t.Errorf("Recent = %s, want [3 1]", got)
	}
}

func TestParseSortAndOrder(t *testing.T) {
	if ParseSortKey("NAME") != SortName || ParseSortKey("year") != SortYear || ParseSortKey("bogus") != SortDate {
		t.Error("ParseSortKey mismatch")
	}
	if ParseOrder("asc") != Asc || ParseOrder("") != Desc {
		t.Error("ParseOrder mismatch")
	}
}

func ids(items []Jersey) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
