// Package convert classifies raw source values and converts them into the
// destination field types under a static conversion policy.
package convert

// FieldTypeTag is the semantic type of a raw source value.
type FieldTypeTag string

// Source value tags.
const (
	TagRichDocument FieldTypeTag = "rich_document"
	TagHTML         FieldTypeTag = "html"
	TagMultiLine    FieldTypeTag = "multi_line"
	TagSingleLine   FieldTypeTag = "single_line"
	TagUnknown      FieldTypeTag = "unknown"
)

// TargetType is a destination field type.
type TargetType string

// Destination field types.
const (
	TargetSingleLine   TargetType = "single_line"
	TargetMultiLine    TargetType = "multi_line"
	TargetHTML         TargetType = "html"
	TargetRichDocument TargetType = "rich_document"
	TargetMarkdown     TargetType = "markdown"
	TargetFile         TargetType = "file"
	TargetReference    TargetType = "reference"
	TargetNumber       TargetType = "number"
	TargetBoolean      TargetType = "boolean"
	TargetDate         TargetType = "date"
)

// AllTargets lists every destination type in a stable order.
var AllTargets = []TargetType{
	TargetSingleLine, TargetMultiLine, TargetHTML, TargetRichDocument, TargetMarkdown,
	TargetFile, TargetReference, TargetNumber, TargetBoolean, TargetDate,
}

// AllTags lists every source tag in a stable order.
var AllTags = []FieldTypeTag{TagSingleLine, TagMultiLine, TagHTML, TagRichDocument, TagUnknown}

// NaturalTarget is the destination type a tagged value already is, or ""
// for values with no text form.
func NaturalTarget(tag FieldTypeTag) TargetType {
	switch tag {
	case TagSingleLine:
		return TargetSingleLine
	case TagMultiLine:
		return TargetMultiLine
	case TagHTML:
		return TargetHTML
	case TagRichDocument:
		return TargetRichDocument
	}
	return ""
}

// TargetSpec describes the destination field a value is converted into.
type TargetSpec struct {
	Type     TargetType
	Multiple bool
	Default  any
}
