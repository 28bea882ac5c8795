package convert

import "github.com/sells-group/migrate-cli/internal/schema"

// TargetFor maps a destination schema field to a conversion target. The
// second result is false for field types the converter does not handle.
func TargetFor(f *schema.Field) (TargetType, bool) {
	if f == nil {
		return "", false
	}
	switch f.DataType {
	case "text":
		switch {
		case f.MetaBool("allow_rich_text"):
			return TargetHTML, true
		case f.MetaBool("markdown"):
			return TargetMarkdown, true
		case f.MetaBool("multiline"):
			return TargetMultiLine, true
		}
		return TargetSingleLine, true
	case "json":
		if f.MetaBool("allow_json_rte") {
			return TargetRichDocument, true
		}
	case "file":
		return TargetFile, true
	case "reference":
		return TargetReference, true
	case "number":
		return TargetNumber, true
	case "boolean":
		return TargetBoolean, true
	case "isodate":
		return TargetDate, true
	}
	return "", false
}

// SpecFor builds the TargetSpec of a destination field.
func SpecFor(f *schema.Field) (TargetSpec, bool) {
	typ, ok := TargetFor(f)
	if !ok {
		return TargetSpec{}, false
	}
	return TargetSpec{Type: typ, Multiple: f.Multiple, Default: f.Meta("default_value")}, true
}
