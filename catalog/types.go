// Package catalog holds the jersey catalog entities and the pure
// filter, search, sort and paginate pipeline shared by every renderer.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a jersey, category or tag id does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalid is returned when a document or request fails validation.
	ErrInvalid = errors.New("catalog: invalid")
)

// Category is a category definition from categories.json.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Tag is a tag definition from tags.json.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Default colors given to definitions created without one.
const (
	DefaultCategoryColor = "#8B1538"
	DefaultTagColor      = "#00FF00"
)

// Year is a season year as written in the document. Documents mix JSON
// numbers (2024) and strings ("2023-24"); the original kind is kept so a
// decode/encode cycle does not rewrite the field.
type Year struct {
	Text    string
	Numeric bool
}

// NumericYear builds a Year that encodes as a JSON number.
func NumericYear(y int) Year {
	return Year{Text: strconv.Itoa(y), Numeric: true}
}

// IsZero reports whether the year is absent.
func (y Year) IsZero() bool { return y.Text == "" }

// Int parses the leading digits of the year, returning 0 when there are none.
func (y Year) Int() int {
	return leadingInt(y.Text)
}

func (y Year) String() string { return y.Text }

func (y Year) MarshalJSON() ([]byte, error) {
	if y.Numeric {
		return []byte(y.Text), nil
	}
	return json.Marshal(y.Text)
}

func (y *Year) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*y = Year{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*y = Year{Text: s}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*y = Year{Text: n.String(), Numeric: true}
	}
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		return -n
	}
	return n
}

// Jersey is one catalog item. Decoded documents remember their raw field
// values: on encode, unchanged fields are written back byte for byte and
// fields the application does not model are passed through.
type Jersey struct {
	ID          string
	Name        string
	Title       string
	Description string
	Category    string
	Categories  []string
	Year        Year
	Images      []string
	Thumbnail   string
	Tags        []string
	Views       int
	Date        string
	CreatedAt   string
	UpdatedAt   string
	Active      *bool

	// categoryList marks documents that stored "category" as an array.
	categoryList bool
	raw          map[string]json.RawMessage
	base         *Jersey
}

type jerseyField struct {
	key    string
	value  func(j *Jersey) any
	always bool
}

var jerseyFields = []jerseyField{
	{key: "id", value: func(j *Jersey) any { return j.ID }, always: true},
	{key: "name", value: func(j *Jersey) any { return j.Name }},
	{key: "title", value: func(j *Jersey) any { return j.Title }},
	{key: "description", value: func(j *Jersey) any { return j.Description }},
	{key: "category", value: categoryValue},
	{key: "categories", value: func(j *Jersey) any { return j.Categories }},
	{key: "year", value: func(j *Jersey) any { return j.Year }},
	{key: "images", value: func(j *Jersey) any { return j.Images }, always: true},
	{key: "thumbnail", value: func(j *Jersey) any { return j.Thumbnail }},
	{key: "tags", value: func(j *Jersey) any { return j.Tags }},
	{key: "views", value: func(j *Jersey) any { return j.Views }},
	{key: "date", value: func(j *Jersey) any { return j.Date }},
	{key: "created_at", value: func(j *Jersey) any { return j.CreatedAt }},
	{key: "updated_at", value: func(j *Jersey) any { return j.UpdatedAt }},
	{key: "active", value: func(j *Jersey) any { return j.Active }},
}

func categoryValue(j *Jersey) any {
	if j.categoryList {
		return j.AllCategories()
	}
	return j.Category
}

type jerseyJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    json.RawMessage `json:"category"`
	Categories  []string        `json:"categories"`
	Year        Year            `json:"year"`
	Images      []string        `json:"images"`
	Thumbnail   string          `json:"thumbnail"`
	Tags        []string        `json:"tags"`
	Views       json.Number     `json:"views"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Active      *bool           `json:"active"`
}

func (j *Jersey) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var aux jerseyJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*j = Jersey{
		ID:          aux.ID,
		Name:        aux.Name,
		Title:       aux.Title,
		Description: aux.Description,
		Categories:  aux.Categories,
		Year:        aux.Year,
		Images:      aux.Images,
		Thumbnail:   aux.Thumbnail,
		Tags:        aux.Tags,
		Date:        aux.Date,
		CreatedAt:   aux.CreatedAt,
		UpdatedAt:   aux.UpdatedAt,
		Active:      aux.Active,
	}
	if aux.Views != "" {
		if f, err := aux.Views.Float64(); err == nil {
			j.Views = int(f)
		}
	}
	if len(aux.Category) > 0 {
		if err := j.decodeCategory(aux.Category); err != nil {
			return err
		}
	}
	base := j.Clone()
	j.raw = raw
	j.base = &base
	return nil
}

func (j *Jersey) decodeCategory(b json.RawMessage) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		j.categoryList = true
		if len(list) > 0 {
			j.Category = list[0]
		}
		for _, c := range list {
			if !contains(j.Categories, c) {
				j.Categories = append(j.Categories, c)
			}
		}
		return nil
	}
	return json.Unmarshal(b, &j.Category)
}

func (j Jersey) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(j.raw)+len(jerseyFields))
	for k, v := range j.raw {
		out[k] = v
	}
	for _, f := range jerseyFields {
		cur := f.value(&j)
		_, had := j.raw[f.key]
		if j.base != nil && sameValue(cur, f.value(j.base)) {
			continue
		}
		if !had && !f.always && isZeroValue(cur) {
			delete(out, f.key)
			continue
		}
		enc, err := encodeValue(cur)
		if err != nil {
			return nil, err
		}
		out[f.key] = enc
	}
	return marshalUnescaped(out)
}

func encodeValue(v any) (json.RawMessage, error) {
	if s, ok := v.([]string); ok && s == nil {
		return json.RawMessage("[]"), nil
	}
	return marshalUnescaped(v)
}

// SkippedJersey is an element of a jerseys document that could not be
// decoded. Raw is kept so a rewrite of the document can put it back.
type SkippedJersey struct {
	Index int
	Raw   json.RawMessage
	Err   error
}

// DecodeJerseys decodes a jerseys document one element at a time. Elements
// that are not valid jerseys are returned as skipped rather than failing
// the whole document; only data that is not a JSON array is an error.
func DecodeJerseys(data []byte) ([]Jersey, []SkippedJersey, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, fmt.Errorf("%w: jerseys document is not an array: %v", ErrInvalid, err)
	}
	items := make([]Jersey, 0, len(raws))
	var skipped []SkippedJersey
	for i, raw := range raws {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			skipped = append(skipped, SkippedJersey{Index: i, Raw: raw, Err: errors.New("null element")})
			continue
		}
		var j Jersey
		if err := json.Unmarshal(raw, &j); err != nil {
			skipped = append(skipped, SkippedJersey{Index: i, Raw: raw, Err: err})
			continue
		}
		items = append(items, j)
	}
	return items, skipped, nil
}

// marshalUnescaped encodes v without HTML escaping; names like
// "Home & Away" stay readable in the stored documents.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sameValue(a, b any) bool {
	if as, ok := a.([]string); ok {
		bs, _ := b.([]string)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isZeroValue(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case int:
		return x == 0
	case Year:
		return x.IsZero()
	case *bool:
		return x == nil
	}
	return v == nil
}

// Extra returns the raw value of a field the catalog does not model.
func (j Jersey) Extra(key string) (json.RawMessage, bool) {
	if isKnownField(key) {
		return nil, false
	}
	v, ok := j.raw[key]
	return v, ok
}

// SetExtra stores a raw value for a field the catalog does not model.
func (j *Jersey) SetExtra(key string, v json.RawMessage) {
	if isKnownField(key) {
		return
	}
	raw := make(map[string]json.RawMessage, len(j.raw)+1)
	for k, val := range j.raw {
		raw[k] = val
	}
	raw[key] = v
	j.raw = raw
}

func isKnownField(key string) bool {
	for _, f := range jerseyFields {
		if f.key == key {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with j.
func (j Jersey) Clone() Jersey {
	c := j
	c.Categories = cloneStrings(j.Categories)
	c.Images = cloneStrings(j.Images)
	c.Tags = cloneStrings(j.Tags)
	if j.Active != nil {
		v := *j.Active
		c.Active = &v
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// DisplayTitle returns the title, falling back to the name.
func (j Jersey) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// SetTitle updates the logical title. Documents carry it as name, title or
// both; every present spelling is kept in sync.
func (j *Jersey) SetTitle(s string) {
	switch {
	case j.Name != "" && j.Title != "":
		j.Name, j.Title = s, s
	case j.Name != "":
		j.Name = s
	default:
		j.Title = s
	}
}

// Cover returns the image used for cards: the thumbnail, else the first image.
func (j Jersey) Cover() string {
	if j.Thumbnail != "" {
		return j.Thumbnail
	}
	if len(j.Images) > 0 {
		return j.Images[0]
	}
	return ""
}

// Displayable reports whether the jersey has an image to render.
func (j Jersey) Displayable() bool {
	return j.Cover() != ""
}

// IsActive reports whether the jersey is publicly listed. Absent means active.
func (j Jersey) IsActive() bool {
	return j.Active == nil || *j.Active
}

// InCategory reports whether id is the primary category or one of the
// additional ones.
func (j Jersey) InCategory(id string) bool {
	return j.Category == id || contains(j.Categories, id)
}

// AllCategories returns the primary category followed by the others,
// without duplicates.
func (j Jersey) AllCategories() []string {
	var out []string
	if j.Category != "" {
		out = append(out, j.Category)
	}
	for _, c := range j.Categories {
		if c != "" && !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// HasTag reports whether the jersey carries tag id.
func (j Jersey) HasTag(id string) bool {
	return contains(j.Tags, id)
}

// RemoveTag drops every occurrence of tag id and reports whether any was removed.
func (j *Jersey) RemoveTag(id string) bool {
	if !contains(j.Tags, id) {
		return false
	}
	kept := j.Tags[:0:0]
	for _, t := range j.Tags {
		if t != id {
			kept = append(kept, t)
		}
	}
	j.Tags = kept
	return true
}

// Find returns the index of the jersey with id, or -1.
func Find(items []Jersey, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
