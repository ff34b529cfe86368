package render

import (
	"strings"

	"github.com/starford/notionhugo/internal/models"
)

// CalloutType is an admonition category of the Hugo theme.
type CalloutType string

const (
	CalloutNote    CalloutType = "note"
	CalloutInfo    CalloutType = "info"
	CalloutTip     CalloutType = "tip"
	CalloutComment CalloutType = "comment"
)

var calloutIcons = map[string]CalloutType{
	"ℹ️": CalloutInfo,
	"ℹ":  CalloutInfo,
	"💡":  CalloutTip,
	"🐒":  CalloutComment,
}

// CalloutCategory maps an icon glyph to its admonition type. Unknown icons
// fall back to note.
func CalloutCategory(icon string) CalloutType {
	if t, ok := calloutIcons[icon]; ok {
		return t
	}
	return CalloutNote
}

// Left-to-right marks keep the theme from printing its default title.
const (
	emptyTitle  = "‎ "
	emojiSpacer = "‎ ‎ "
)

func callout(b models.Block, indent string) string {
	typ := CalloutCategory(b.Icon)

	text := RichText(b.RichText)
	if typ == CalloutComment {
		text = b.Icon + emojiSpacer + text
	}

	var sb strings.Builder
	sb.WriteString(indent + `{{< admonition type=` + string(typ) + ` title="` + emptyTitle + `" open=true >}}` + "\n")
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(indent + line + "\n")
	}
	sb.WriteString(indent + "{{< /admonition >}}")
	return sb.String()
}
