package convert

// allowed is the conversion policy: for each source tag, the destination types
// a value may be converted into. Text only moves up the ladder
// single_line < multi_line < html/rich_document/markdown.
var allowed = map[FieldTypeTag]map[TargetType]bool{
	TagSingleLine: {
		TargetSingleLine:   true,
		TargetMultiLine:    true,
		TargetHTML:         true,
		TargetRichDocument: true,
		TargetMarkdown:     true,
		TargetNumber:       true,
		TargetBoolean:      true,
		TargetDate:         true,
		TargetFile:         true,
		TargetReference:    true,
	},
	TagMultiLine: {
		TargetMultiLine:    true,
		TargetHTML:         true,
		TargetRichDocument: true,
		TargetMarkdown:     true,
	},
	TagHTML: {
		TargetHTML:         true,
		TargetRichDocument: true,
		TargetMarkdown:     true,
	},
	TagRichDocument: {
		TargetRichDocument: true,
		TargetHTML:         true,
		TargetMarkdown:     true,
	},
	TagUnknown: {
		TargetNumber:    true,
		TargetBoolean:   true,
		TargetDate:      true,
		TargetFile:      true,
		TargetReference: true,
	},
}

// Allowed reports whether a value tagged tag may be converted into target.
func Allowed(tag FieldTypeTag, target TargetType) bool {
	return allowed[tag][target]
}
