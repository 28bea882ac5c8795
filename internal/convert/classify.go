package convert

import (
	"strings"

	"github.com/sells-group/migrate-cli/internal/richtext"
)

// Classify tags a raw value. Rules apply in order: a document-rooted object,
// or any object shaped like a structured-text tree, is rich_document, a string with HTML tags is html, a string with a newline is
// multi_line, any other string is single_line, and everything else is unknown.
func Classify(v any) FieldTypeTag {
	switch t := v.(type) {
	case *richtext.Node:
		if richtext.IsCanonicalDoc(t) {
			return TagRichDocument
		}
	case map[string]any:
		if richtext.IsForeignDoc(t) || richtext.IsCanonicalDoc(t) || richtext.IsTreeShaped(t) {
			return TagRichDocument
		}
	case string:
		switch {
		case richtext.ContainsHTML(t):
			return TagHTML
		case strings.Contains(t, "\n"):
			return TagMultiLine
		default:
			return TagSingleLine
		}
	}
	return TagUnknown
}
