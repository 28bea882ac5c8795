package richtext

import (
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/refindex"
)

// ErrMalformedRoot is returned when the foreign tree has no node type at its root.
var ErrMalformedRoot = eris.New("richtext: foreign tree root has no node type")

// Foreign node types understood by the Builder.
const (
	ForeignDocument        = "document"
	ForeignParagraph       = "paragraph"
	ForeignText            = "text"
	ForeignUnorderedList   = "unordered-list"
	ForeignOrderedList     = "ordered-list"
	ForeignListItem        = "list-item"
	ForeignBlockquote      = "blockquote"
	ForeignHR              = "hr"
	ForeignTable           = "table"
	ForeignTableRow        = "table-row"
	ForeignTableHeaderCell = "table-header-cell"
	ForeignTableCell       = "table-cell"
	ForeignHyperlink       = "hyperlink"
	ForeignEntryHyperlink  = "entry-hyperlink"
	ForeignAssetHyperlink  = "asset-hyperlink"
	ForeignEmbeddedBlock   = "embedded-entry-block"
	ForeignEmbeddedInline  = "embedded-entry-inline"
	ForeignEmbeddedAsset   = "embedded-asset-block"
	foreignHeadingPrefix   = "heading-"
)

// Resolution is the context embedded nodes are resolved against.
type Resolution struct {
	Locale string
	Index  *refindex.Index
	// Log carries the record's correlation fields; nil means zap.L().
	Log *zap.Logger
}

func (r Resolution) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.L()
}

type builderFunc func(r Resolution, n map[string]any) *Node

var builders map[string]builderFunc

func init() {
	builders = map[string]builderFunc{
		ForeignDocument:        buildDocument,
		ForeignParagraph:       wrap(TypeParagraph),
		ForeignText:            buildText,
		ForeignUnorderedList:   wrap(TypeUnordered),
		ForeignOrderedList:     wrap(TypeOrdered),
		ForeignListItem:        wrap(TypeListItem),
		ForeignBlockquote:      wrap(TypeBlockquote),
		ForeignHR:              buildHR,
		ForeignTable:           buildTable,
		ForeignTableRow:        wrap(TypeTableRow),
		ForeignTableHeaderCell: wrap(TypeHeaderCell),
		ForeignTableCell:       wrap(TypeBodyCell),
		ForeignHyperlink:       buildHyperlink,
		ForeignEntryHyperlink:  buildEntryHyperlink,
		ForeignAssetHyperlink:  buildAssetHyperlink,
		ForeignEmbeddedBlock:   buildEmbeddedEntry(DisplayBlock),
		ForeignEmbeddedInline:  buildEmbeddedEntry(DisplayInline),
		ForeignEmbeddedAsset:   buildEmbeddedAsset,
	}
	for level := 1; level <= maxHeadingLevel; level++ {
		builders[foreignHeadingPrefix+strconv.Itoa(level)] = wrap(HeadingType(level))
	}
}

// IsForeignDoc reports whether v looks like a foreign structured-text tree.
func IsForeignDoc(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return nodeType(m) == ForeignDocument
}

// IsTreeShaped reports whether v carries structured-text markers (a nodeType
// key or a content array) at its root, whether or not the root is valid.
func IsTreeShaped(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["nodeType"]; ok {
		return true
	}
	_, ok = m["content"].([]any)
	return ok
}

// Build converts a foreign structured-text tree into a destination document.
// Unrecognized nodes are dropped and unresolved references become
// placeholders; only a root without a node type is an error.
func Build(foreign map[string]any, r Resolution) (*Node, error) {
	typ := nodeType(foreign)
	if typ == "" {
		return nil, ErrMalformedRoot
	}
	if typ == ForeignDocument {
		return buildDocument(r, foreign), nil
	}
	doc := NewDoc(EmptyParagraph())
	doc.Append(buildNode(r, foreign))
	return doc, nil
}

func buildNode(r Resolution, n map[string]any) *Node {
	fn, ok := builders[nodeType(n)]
	if !ok {
		r.logger().Debug("richtext: dropping unknown node", zap.String("node_type", nodeType(n)))
		return nil
	}
	return fn(r, n)
}

func buildChildren(r Resolution, n map[string]any) []*Node {
	var out []*Node
	for _, c := range content(n) {
		if built := buildNode(r, c); built != nil {
			out = append(out, built)
		}
	}
	return out
}

func wrap(typ string) builderFunc {
	return func(r Resolution, n map[string]any) *Node {
		return NewElement(typ, nil, buildChildren(r, n)...)
	}
}

// buildDocument prefixes the content with an empty paragraph, which the
// destination editor expects as the first child.
func buildDocument(r Resolution, n map[string]any) *Node {
	doc := NewDoc(EmptyParagraph())
	doc.Append(buildChildren(r, n)...)
	return doc
}

func buildText(_ Resolution, n map[string]any) *Node {
	value, _ := n["value"].(string)
	var marks Marks
	list, _ := n["marks"].([]any)
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch m["type"] {
		case "bold":
			marks.Bold = true
		case "italic":
			marks.Italic = true
		case "underline":
			marks.Underline = true
		case "code":
			marks.InlineCode = true
		case "superscript":
			marks.Superscript = true
		case "subscript":
			marks.Subscript = true
		case "strikethrough":
			marks.Strikethrough = true
		}
	}
	return NewText(value, marks)
}

func buildHR(Resolution, map[string]any) *Node {
	return NewElement(TypeHR, nil, NewText("", Marks{}))
}

func buildHyperlink(r Resolution, n map[string]any) *Node {
	uri, _ := data(n)["uri"].(string)
	return NewElement(TypeLink, map[string]any{"url": uri}, buildChildren(r, n)...)
}

func buildEntryHyperlink(r Resolution, n map[string]any) *Node {
	id := targetID(n)
	ref, ok := r.Index.Entry(r.Locale, id)
	if !ok {
		r.logger().Warn("richtext: unresolved entry hyperlink",
			zap.String("kind", "unresolved_reference"),
			zap.String("target_id", id),
			zap.String("locale", r.Locale),
		)
		return NewElement(TypeLink, nil, buildChildren(r, n)...)
	}
	attrs := map[string]any{
		"url":              "/" + ref.ContentTypeUID + "/" + ref.UID,
		"entry-uid":        ref.UID,
		"content-type-uid": ref.ContentTypeUID,
		"locale":           r.Locale,
	}
	return NewElement(TypeLink, attrs, buildChildren(r, n)...)
}

func buildAssetHyperlink(r Resolution, n map[string]any) *Node {
	id := targetID(n)
	asset, ok := r.Index.Asset(id)
	if !ok {
		r.logger().Warn("richtext: unresolved asset hyperlink",
			zap.String("kind", "unresolved_asset"),
			zap.String("target_id", id),
		)
		return NewElement(TypeLink, nil, buildChildren(r, n)...)
	}
	attrs := map[string]any{"url": assetHref(asset), "asset-uid": asset.UID}
	return NewElement(TypeLink, attrs, buildChildren(r, n)...)
}

func buildEmbeddedEntry(display string) builderFunc {
	return func(r Resolution, n map[string]any) *Node {
		id := targetID(n)
		ref, ok := r.Index.Entry(r.Locale, id)
		if !ok {
			r.logger().Warn("richtext: unresolved embedded entry",
				zap.String("kind", "unresolved_reference"),
				zap.String("target_id", id),
				zap.String("locale", r.Locale),
			)
			return referencePlaceholder()
		}
		return EntryReference(ref.UID, ref.ContentTypeUID, r.Locale, display)
	}
}

func buildEmbeddedAsset(r Resolution, n map[string]any) *Node {
	id := targetID(n)
	asset, ok := r.Index.Asset(id)
	if !ok {
		r.logger().Warn("richtext: unresolved embedded asset",
			zap.String("kind", "unresolved_asset"),
			zap.String("target_id", id),
		)
		return referencePlaceholder()
	}
	return AssetReference(asset)
}

// EntryReference builds a populated entry embed.
func EntryReference(uid, contentTypeUID, locale, display string) *Node {
	class := "embedded-entry redactor-component block-entry"
	if display == DisplayInline {
		class = "embedded-entry redactor-component inline-entry"
	}
	return NewElement(TypeReference, map[string]any{
		"display-type":     display,
		"type":             RefTypeEntry,
		"class-name":       class,
		"entry-uid":        uid,
		"locale":           locale,
		"content-type-uid": contentTypeUID,
	}, NewText("", Marks{}))
}

// AssetReference builds a populated asset embed.
func AssetReference(a refindex.AssetDescriptor) *Node {
	attrs := map[string]any{
		"display-type":     DisplayAsset,
		"type":             RefTypeAsset,
		"class-name":       "embedded-asset",
		"asset-uid":        a.UID,
		"asset-name":       a.FileName,
		"asset-link":       a.URL,
		"content-type-uid": AssetsTypeUID,
	}
	if a.Title != "" {
		attrs["asset-alt"] = a.Title
	}
	if a.ContentType != "" {
		attrs["asset-type"] = a.ContentType
	}
	return NewElement(TypeReference, attrs, NewText("", Marks{}))
}

func referencePlaceholder() *Node {
	return NewElement(TypeReference, nil, NewText("", Marks{}))
}

func assetHref(a refindex.AssetDescriptor) string {
	if a.URL != "" {
		return a.URL
	}
	return "/assets/" + a.UID
}

func nodeType(n map[string]any) string {
	typ, _ := n["nodeType"].(string)
	return typ
}

func content(n map[string]any) []map[string]any {
	raw, _ := n["content"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func data(n map[string]any) map[string]any {
	d, _ := n["data"].(map[string]any)
	return d
}

// targetID extracts data.target.sys.id.
func targetID(n map[string]any) string {
	target, _ := data(n)["target"].(map[string]any)
	sys, _ := target["sys"].(map[string]any)
	id, _ := sys["id"].(string)
	return id
}
