package notion

import (
	"encoding/json"
	"time"

	"github.com/starford/notionhugo/internal/models"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type queryRequest struct {
	Filter      *statusFilter `json:"filter,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
	PageSize    int           `json:"page_size,omitempty"`
}

type statusFilter struct {
	Property string        `json:"property"`
	Status   *equalsFilter `json:"status,omitempty"`
}

type equalsFilter struct {
	Equals string `json:"equals"`
}

type blockList struct {
	Results    []block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type pageList struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type richText struct {
	PlainText   string      `json:"plain_text"`
	Href        *string     `json:"href"`
	Annotations annotations `json:"annotations"`
}

type annotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Strikethrough bool `json:"strikethrough"`
	Underline     bool `json:"underline"`
	Code          bool `json:"code"`
}

type file struct {
	Type     string `json:"type"`
	File     *link  `json:"file"`
	External *link  `json:"external"`
}

type link struct {
	URL string `json:"url"`
}

func (f *file) ref() *models.FileRef {
	if f == nil {
		return nil
	}
	switch {
	case f.File != nil && f.File.URL != "":
		return &models.FileRef{URL: f.File.URL}
	case f.External != nil && f.External.URL != "":
		return &models.FileRef{URL: f.External.URL}
	}
	return nil
}

type icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// payload is the union of the kind-specific objects the exporter reads.
type payload struct {
	RichText []richText `json:"rich_text"`
	Caption  []richText `json:"caption"`
	Language string     `json:"language"`
	Checked  bool       `json:"checked"`
	Icon     *icon      `json:"icon"`

	// image and file
	Type     string `json:"type"`
	File     *link  `json:"file"`
	External *link  `json:"external"`

	// table and table_row
	TableWidth      int          `json:"table_width"`
	HasColumnHeader bool         `json:"has_column_header"`
	Cells           [][]richText `json:"cells"`
}

// block keeps the kind payload raw until its type is known.
type block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`
	payload     payload
}

func (b *block) UnmarshalJSON(data []byte) error {
	type plain block
	var head plain
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*b = block(head)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields[b.Type]; ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &b.payload); err != nil {
			return err
		}
	}
	return nil
}

func (b block) model(parentID string) models.Block {
	p := b.payload
	out := models.Block{
		ID:          b.ID,
		Kind:        models.ParseKind(b.Type),
		Type:        b.Type,
		ParentID:    parentID,
		HasChildren: b.HasChildren,
		RichText:    spans(p.RichText),
		Caption:     spans(p.Caption),
		Language:    p.Language,
		Checked:     p.Checked,
	}
	if p.Icon != nil && p.Icon.Type == "emoji" {
		out.Icon = p.Icon.Emoji
	}
	switch out.Kind {
	case models.KindImage, models.KindFile:
		out.File = (&file{Type: p.Type, File: p.File, External: p.External}).ref()
	case models.KindTable:
		out.Table = &models.TableInfo{Width: p.TableWidth, HasColumnHeader: p.HasColumnHeader}
	case models.KindTableRow:
		for _, cell := range p.Cells {
			out.Cells = append(out.Cells, spans(cell))
		}
	}
	return out
}

func spans(in []richText) []models.RichText {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.RichText, 0, len(in))
	for _, rt := range in {
		s := models.RichText{
			PlainText: rt.PlainText,
			Annotations: models.Annotations{
				Bold:          rt.Annotations.Bold,
				Italic:        rt.Annotations.Italic,
				Strikethrough: rt.Annotations.Strikethrough,
				Underline:     rt.Annotations.Underline,
				Code:          rt.Annotations.Code,
			},
		}
		if rt.Href != nil {
			s.Href = *rt.Href
		}
		out = append(out, s)
	}
	return out
}

type page struct {
	ID             string              `json:"id"`
	Cover          *file               `json:"cover"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]property `json:"properties"`
}

func (p page) model() models.Document {
	doc := models.Document{
		ID:         p.ID,
		Cover:      p.Cover.ref(),
		Properties: make(map[string]models.Property, len(p.Properties)),
	}
	if t, err := time.Parse(time.RFC3339, p.LastEditedTime); err == nil {
		doc.LastEditedTime = t
	}
	for name, prop := range p.Properties {
		doc.Properties[name] = prop.model()
	}
	return doc
}

type named struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start string `json:"start"`
}

type formulaValue struct {
	Type   string  `json:"type"`
	String *string `json:"string"`
}

type property struct {
	Type           string        `json:"type"`
	Title          []richText    `json:"title"`
	RichText       []richText    `json:"rich_text"`
	Select         *named        `json:"select"`
	Status         *named        `json:"status"`
	Number         *float64      `json:"number"`
	Date           *dateValue    `json:"date"`
	CreatedTime    string        `json:"created_time"`
	LastEditedTime string        `json:"last_edited_time"`
	MultiSelect    []named       `json:"multi_select"`
	Checkbox       *bool         `json:"checkbox"`
	Formula        *formulaValue `json:"formula"`
}

func (p property) model() models.Property {
	out := models.Property{
		Type:           p.Type,
		Number:         p.Number,
		CreatedTime:    p.CreatedTime,
		LastEditedTime: p.LastEditedTime,
		Checkbox:       p.Checkbox,
	}
	switch p.Type {
	case "title":
		out.RichText = spans(p.Title)
	case "rich_text":
		out.RichText = spans(p.RichText)
	case "select":
		if p.Select != nil {
			out.Select = &p.Select.Name
		}
	case "status":
		if p.Status != nil {
			out.Select = &p.Status.Name
		}
	case "date":
		if p.Date != nil && p.Date.Start != "" {
			out.Date = &p.Date.Start
		}
	case "multi_select":
		for _, v := range p.MultiSelect {
			out.MultiSelect = append(out.MultiSelect, v.Name)
		}
	case "formula":
		if p.Formula != nil && p.Formula.Type == "string" {
			out.Formula = p.Formula.String
		}
	}
	return out
}
