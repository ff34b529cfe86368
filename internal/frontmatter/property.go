package frontmatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/notionhugo/internal/models"
)

// Name is a recognized document property.
type Name string

const (
	Title       Name = "Title"
	Topic       Name = "Topic"
	Category    Name = "Category"
	Subcategory Name = "Subcategory"
	Index       Name = "Index"
	Slug        Name = "Slug"
	Language    Name = "Language"
	PublishDate Name = "PublishDate"
	Tags        Name = "Tags"
	Description Name = "Description"
)

// Shape is the parsed form a property is expected to take.
type Shape int

const (
	ShapeText Shape = iota
	ShapeDateTime
	ShapeStringSet
	ShapeBoolean
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeDateTime:
		return "date-time"
	case ShapeStringSet:
		return "string set"
	case ShapeBoolean:
		return "boolean"
	}
	return "unknown"
}

type field struct {
	name  Name
	shape Shape
}

// schema lists the recognized properties in emission order.
var schema = []field{
	{Title, ShapeText},
	{Topic, ShapeText},
	{Category, ShapeText},
	{Subcategory, ShapeText},
	{Index, ShapeText},
	{Slug, ShapeText},
	{Language, ShapeText},
	{PublishDate, ShapeDateTime},
	{Tags, ShapeStringSet},
	{Description, ShapeText},
}

// Value is a parsed property. Only the field matching Shape is meaningful.
type Value struct {
	Shape Shape
	Text  string
	Time  time.Time
	Set   []string
	Bool  bool
}

// PlainText reads title, rich text, select/status, number and string formula
// properties as text.
func PlainText(p models.Property) (string, bool) {
	switch p.Type {
	case "title", "rich_text":
		return models.PlainText(p.RichText), true
	case "select", "status":
		if p.Select == nil {
			return "", false
		}
		return *p.Select, true
	case "number":
		if p.Number == nil {
			return "", false
		}
		return strconv.FormatFloat(*p.Number, 'f', -1, 64), true
	case "formula":
		if p.Formula == nil {
			return "", false
		}
		return *p.Formula, true
	}
	return "", false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateTime reads date, created/last-edited time properties, or any plain
// text property holding a parseable timestamp.
func DateTime(p models.Property) (time.Time, bool) {
	switch p.Type {
	case "date":
		if p.Date == nil {
			return time.Time{}, false
		}
		return parseTime(*p.Date)
	case "created_time":
		return parseTime(p.CreatedTime)
	case "last_edited_time":
		return parseTime(p.LastEditedTime)
	}
	text, ok := PlainText(p)
	if !ok {
		return time.Time{}, false
	}
	return parseTime(text)
}

// StringSet reads multi-select properties.
func StringSet(p models.Property) ([]string, bool) {
	if p.Type != "multi_select" {
		return nil, false
	}
	return append([]string{}, p.MultiSelect...), true
}

// Boolean reads checkbox properties.
func Boolean(p models.Property) (bool, bool) {
	if p.Type != "checkbox" || p.Checkbox == nil {
		return false, false
	}
	return *p.Checkbox, true
}

func parse(p models.Property, shape Shape) (Value, bool) {
	v := Value{Shape: shape}
	var ok bool
	switch shape {
	case ShapeText:
		v.Text, ok = PlainText(p)
	case ShapeDateTime:
		v.Time, ok = DateTime(p)
	case ShapeStringSet:
		v.Set, ok = StringSet(p)
	case ShapeBoolean:
		v.Bool, ok = Boolean(p)
	}
	return v, ok
}

// unset reports whether p is a known shape carrying no value, such as an
// empty select or date. Those are treated as absent.
func unset(p models.Property) bool {
	switch p.Type {
	case "select", "status":
		return p.Select == nil
	case "number":
		return p.Number == nil
	case "date":
		return p.Date == nil
	case "formula":
		return p.Formula == nil
	case "checkbox":
		return p.Checkbox == nil
	}
	return false
}

// Metadata holds the recognized properties of one document.
type Metadata struct {
	DocumentID string
	values     map[Name]Value
}

// Parse resolves every recognized property of doc. Properties that are
// present but of an unexpected shape are dropped with a warning.
func Parse(doc models.Document) (Metadata, []models.Warning) {
	m := Metadata{DocumentID: doc.ID, values: make(map[Name]Value, len(schema))}
	var warnings []models.Warning
	for _, f := range schema {
		p, ok := doc.Properties[string(f.name)]
		if !ok || unset(p) {
			continue
		}
		v, ok := parse(p, f.shape)
		if !ok {
			warnings = append(warnings, models.Warning{
				Type:       models.WarningPropertyUnparsed,
				DocumentID: doc.ID,
				Message:    fmt.Sprintf("property %s of type %q is not a %s", f.name, p.Type, f.shape),
			})
			continue
		}
		m.values[f.name] = v
	}
	return m, warnings
}

// Value returns the parsed property n.
func (m Metadata) Value(n Name) (Value, bool) {
	v, ok := m.values[n]
	return v, ok
}

// Text returns the text of property n, or "" when absent.
func (m Metadata) Text(n Name) string {
	return strings.TrimSpace(m.values[n].Text)
}

// IndexSeconds returns the index as a number of seconds when it is numeric.
func (m Metadata) IndexSeconds() (int, bool) {
	i, err := strconv.Atoi(m.Text(Index))
	if err != nil {
		return 0, false
	}
	return i, true
}

// Series returns the series a document belongs to: its subcategory, when
// both index and subcategory are set.
func (m Metadata) Series() string {
	if m.Text(Index) == "" {
		return ""
	}
	return m.Text(Subcategory)
}

// PublishDate returns the publish timestamp in UTC, advanced by the index
// in seconds so siblings published the same day keep their order.
func (m Metadata) PublishDate() (time.Time, bool) {
	v, ok := m.values[PublishDate]
	if !ok {
		return time.Time{}, false
	}
	t := v.Time.UTC()
	if secs, ok := m.IndexSeconds(); ok {
		t = t.Add(time.Duration(secs) * time.Second)
	}
	return t, true
}

// ShowSummary reports whether the description should serve as the summary.
func (m Metadata) ShowSummary() bool {
	return m.Text(Description) != ""
}

// LanguageCode returns the short language code derived from the Language
// property, or "".
func (m Metadata) LanguageCode() string {
	return languageCode(m.Text(Language))
}
