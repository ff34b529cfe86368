package frontmatter

import (
	"strings"

	"golang.org/x/text/language"
)

// languageNames covers the spelled-out names used in the Language select.
var languageNames = map[string]string{
	"french":     "fr",
	"français":   "fr",
	"english":    "en",
	"german":     "de",
	"deutsch":    "de",
	"spanish":    "es",
	"español":    "es",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
}

// languageCode maps a language name or BCP 47 tag to its base code.
func languageCode(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	if code, ok := languageNames[v]; ok {
		return code
	}
	tag, err := language.Parse(v)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
