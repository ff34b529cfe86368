package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/starford/notionhugo/internal/models"
)

// fenceAliases maps remote language labels to the fence tags Hugo's
// highlighter understands.
var fenceAliases = map[string]string{
	"c#":            "csharp",
	"c++":           "cpp",
	"f#":            "fsharp",
	"objective-c":   "objectivec",
	"plain text":    "text",
	"visual basic":  "vbnet",
	"vb.net":        "vbnet",
	"java/c/c++/c#": "java",
	"webassembly":   "wasm",
	"docker":        "dockerfile",
	"shell":         "shell",
	"markup":        "html",
}

// FenceLanguage translates a source language label to a code fence tag.
func FenceLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if l == "" {
		return ""
	}
	if alias, ok := fenceAliases[l]; ok {
		return alias
	}
	if lexer := lexers.Get(l); lexer != nil {
		if aliases := lexer.Config().Aliases; len(aliases) > 0 {
			return aliases[0]
		}
	}
	return strings.ReplaceAll(l, " ", "")
}

func (r *Renderer) code(b models.Block, indent string) string {
	var sb strings.Builder

	// Caption doubles as the file name label above the block.
	if caption := models.PlainText(b.Caption); strings.TrimSpace(caption) != "" {
		label := "Filename"
		if r.opts.Language == "fr" {
			label = "Nom du fichier"
		}
		fmt.Fprintf(&sb, `<p align="center" style="margin-bottom:-10px"><strong>%s:</strong><code>%s</code></p>`,
			label, html.EscapeString(caption))
		sb.WriteString("\n\n")
	}

	sb.WriteString(indent + "```" + FenceLanguage(b.Language) + "\n")
	source := strings.TrimSuffix(models.PlainText(b.RichText), "\n")
	for _, line := range strings.Split(source, "\n") {
		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(indent + "```")
	return sb.String()
}
