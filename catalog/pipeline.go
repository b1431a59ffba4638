package catalog

import (
	"sort"
	"strings"
	"time"
)

// AllCategories is the category sentinel that disables the category filter.
const AllCategories = "all"

// DefaultPerPage is the gallery page size.
const DefaultPerPage = 12

// SortKey selects the sort comparator.
type SortKey string

const (
	SortDate SortKey = "date"
	SortName SortKey = "name"
	SortYear SortKey = "year"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSortKey returns the sort key named by s, or SortDate.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortName:
		return SortName
	case SortYear:
		return SortYear
	}
	return SortDate
}

// ParseOrder returns the order named by s, or Desc.
func ParseOrder(s string) Order {
	if Order(strings.ToLower(strings.TrimSpace(s))) == Asc {
		return Asc
	}
	return Desc
}

// ViewState is the gallery's current filter, search, sort and page.
type ViewState struct {
	Page     int
	Category string
	Search   string
	Sort     SortKey
	Order    Order
	PerPage  int
}

// NewViewState returns the initial state: first page of everything, newest first.
func NewViewState(perPage int) ViewState {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return ViewState{
		Page:     1,
		Category: AllCategories,
		Sort:     SortDate,
		Order:    Desc,
		PerPage:  perPage,
	}
}

// SetCategory changes the category filter and returns to the first page.
func (v *ViewState) SetCategory(c string) {
	if strings.TrimSpace(c) == "" {
		c = AllCategories
	}
	v.Category = c
	v.Page = 1
}

// SetSearch changes the search term and returns to the first page.
func (v *ViewState) SetSearch(s string) {
	v.Search = s
	v.Page = 1
}

// SetSort changes the sort key and direction and returns to the first page.
func (v *ViewState) SetSort(key SortKey, order Order) {
	v.Sort = key
	v.Order = order
	v.Page = 1
}

// GoToPage moves to page p. Pages below 1 are treated as 1.
func (v *ViewState) GoToPage(p int) {
	if p < 1 {
		p = 1
	}
	v.Page = p
}

// Pagination is derived from a pipeline run and never stored.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	PerPage     int  `json:"per_page"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// Page is the visible slice of the catalog plus its pagination metadata.
type Page struct {
	Items      []Jersey
	Pagination Pagination
}

// Apply runs the pipeline in its fixed order: category filter, search,
// sort, slice. The input slice is not modified.
func Apply(items []Jersey, v ViewState) Page {
	if v.PerPage <= 0 {
		v.PerPage = DefaultPerPage
	}
	matched := Search(Filter(items, v.Category), v.Search)
	Sort(matched, v.Sort, v.Order)
	visible, p := Paginate(matched, v.Page, v.PerPage)
	return Page{Items: visible, Pagination: p}
}

// Filter keeps items in category c. The "all" sentinel keeps everything.
// The result is always a fresh slice.
func Filter(items []Jersey, c string) []Jersey {
	out := make([]Jersey, 0, len(items))
	for _, it := range items {
		if c == "" || c == AllCategories || it.InCategory(c) {
			out = append(out, it)
		}
	}
	return out
}

// Search keeps items whose name, title, description or any tag contains
// term, ignoring case. An empty term keeps everything.
func Search(items []Jersey, term string) []Jersey {
	if term == "" {
		return items
	}
	term = strings.ToLower(term)
	out := make([]Jersey, 0, len(items))
	for _, it := range items {
		if matches(it, term) {
			out = append(out, it)
		}
	}
	return out
}

func matches(it Jersey, term string) bool {
	for _, s := range []string{it.Name, it.Title, it.Description} {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// Sort orders items in place. There is no secondary key: items with equal
// keys keep no particular order.
func Sort(items []Jersey, key SortKey, order Order) {
	var less func(a, b Jersey) bool
	switch key {
	case SortName:
		less = func(a, b Jersey) bool { return sortName(a) < sortName(b) }
	case SortYear:
		less = func(a, b Jersey) bool { return a.Year.Int() < b.Year.Int() }
	default:
		less = func(a, b Jersey) bool { return Timestamp(a).Before(Timestamp(b)) }
	}
	if order == Desc {
		sort.Slice(items, func(i, j int) bool { return less(items[j], items[i]) })
		return
	}
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func sortName(j Jersey) string {
	if j.Name != "" {
		return strings.ToLower(j.Name)
	}
	return strings.ToLower(j.Title)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp returns the jersey's creation time: created_at, else updated_at,
// else date. Missing or unparseable values are the Unix epoch.
func Timestamp(j Jersey) time.Time {
	for _, s := range []string{j.CreatedAt, j.UpdatedAt, j.Date} {
		if s == "" {
			continue
		}
		if t, ok := parseTimestamp(s); ok {
			return t
		}
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(0, 0).UTC()
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Paginate returns the items of 1-based page and the pagination metadata.
// A page past the end yields no items.
func Paginate(items []Jersey, page, perPage int) ([]Jersey, Pagination) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	n := len(items)
	p := Pagination{
		CurrentPage: page,
		TotalPages:  (n + perPage - 1) / perPage,
		TotalItems:  n,
		PerPage:     perPage,
		HasPrev:     page > 1,
	}
	start := (page - 1) * perPage
	end := start + perPage
	p.HasNext = end < n
	if start >= n {
		return []Jersey{}, p
	}
	if end > n {
		end = n
	}
	return items[start:end], p
}

// Popular returns up to n items with the most views.
func Popular(items []Jersey, n int) []Jersey {
	out := append([]Jersey(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	return limit(out, n)
}

// Recent returns up to n items, newest first.
func Recent(items []Jersey, n int) []Jersey {
	out := append([]Jersey(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return Timestamp(out[j]).Before(Timestamp(out[i])) })
	return limit(out, n)
}

// Active returns the publicly listed items.
func Active(items []Jersey) []Jersey {
	out := make([]Jersey, 0, len(items))
	for _, it := range items {
		if it.IsActive() {
			out = append(out, it)
		}
	}
	return out
}

func limit(items []Jersey, n int) []Jersey {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
