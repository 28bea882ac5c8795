package model

import (
	"encoding/json"

	"github.com/sells-group/migrate-cli/internal/refindex"
)

// System field keys written on every destination entry.
const (
	KeyUID            = "uid"
	KeyLocale         = "locale"
	KeyTitle          = "title"
	KeyTags           = "tags"
	KeyPublishDetails = "publish_details"
	KeyTaxonomies     = "taxonomies"
)

// DestinationEntry is an assembled destination CMS entry.
type DestinationEntry struct {
	UID         string
	Locale      string
	Title       string
	ContentType string
	LegacyID    string
	Fields      map[string]any
	Taxonomies  []refindex.TermMapping
}

// MarshalJSON flattens the entry into the destination's wire shape: the
// converted fields plus the system fields.
func (e DestinationEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+6)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[KeyUID] = e.UID
	out[KeyLocale] = e.Locale
	out[KeyTitle] = e.Title
	if _, ok := out[KeyTags]; !ok {
		out[KeyTags] = []string{}
	}
	out[KeyPublishDetails] = []any{}
	if len(e.Taxonomies) > 0 {
		out[KeyTaxonomies] = e.Taxonomies
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the wire shape back, separating the system fields.
func (e *DestinationEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = DestinationEntry{Fields: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case KeyUID:
			e.UID, _ = v.(string)
		case KeyLocale:
			e.Locale, _ = v.(string)
		case KeyTitle:
			e.Title, _ = v.(string)
		case KeyPublishDetails:
		case KeyTaxonomies:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &e.Taxonomies); err != nil {
				return err
			}
		default:
			e.Fields[k] = v
		}
	}
	return nil
}
