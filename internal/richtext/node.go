// Package richtext implements the destination editor's document tree and the
// conversions between it, HTML, plain text and markdown.
package richtext

import (
	"encoding/json"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rotisserie/eris"
)

// Node types understood by the destination editor.
const (
	TypeDoc         = "doc"
	TypeParagraph   = "p"
	TypeUnordered   = "ul"
	TypeOrdered     = "ol"
	TypeListItem    = "li"
	TypeBlockquote  = "blockquote"
	TypeHR          = "hr"
	TypeTable       = "table"
	TypeTableHead   = "thead"
	TypeTableBody   = "tbody"
	TypeTableRow    = "tr"
	TypeHeaderCell  = "th"
	TypeBodyCell    = "td"
	TypeLink        = "a"
	TypeReference   = "reference"
	TypeText        = "text"
	headingPrefix   = "h"
	maxHeadingLevel = 6
)

// Reference display types.
const (
	DisplayBlock   = "block"
	DisplayInline  = "inline"
	DisplayLink    = "link"
	DisplayAsset   = "display"
	RefTypeEntry   = "entry"
	RefTypeAsset   = "asset"
	AssetsTypeUID  = "sys_assets"
	defaultColSize = 250
)

const uidAlphabet = "0123456789abcdef"

// NewUID returns a fresh 32 character node identifier.
func NewUID() string {
	return gonanoid.MustGenerate(uidAlphabet, 32)
}

// Marks are the inline formatting flags carried by text nodes.
type Marks struct {
	Bold          bool `json:"bold,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Underline     bool `json:"underline,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
	InlineCode    bool `json:"inlineCode,omitempty"`
	Superscript   bool `json:"superscript,omitempty"`
	Subscript     bool `json:"subscript,omitempty"`
}

// Node is one node of the document tree. Text nodes carry Text and Marks;
// every other node carries a UID, Attrs and ordered Children.
type Node struct {
	Type     string
	UID      string
	Attrs    map[string]any
	Children []*Node
	Text     string
	Marks    Marks
}

// NewElement creates a structural node with a fresh uid. Nil children are dropped.
func NewElement(typ string, attrs map[string]any, children ...*Node) *Node {
	if attrs == nil {
		attrs = map[string]any{}
	}
	n := &Node{Type: typ, UID: NewUID(), Attrs: attrs}
	n.Append(children...)
	return n
}

// NewText creates a text leaf.
func NewText(text string, marks Marks) *Node {
	return &Node{Type: TypeText, Text: text, Marks: marks}
}

// NewDoc creates an empty document root.
func NewDoc(children ...*Node) *Node {
	return NewElement(TypeDoc, nil, children...)
}

// EmptyParagraph returns a paragraph holding a single empty text node.
func EmptyParagraph() *Node {
	return NewElement(TypeParagraph, nil, NewText("", Marks{}))
}

// Append adds non-nil children in order.
func (n *Node) Append(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// IsText reports whether n is a text leaf.
func (n *Node) IsText() bool {
	return n.Type == TypeText
}

// HeadingType returns the node type for a heading level, clamped to 1..6.
func HeadingType(level int) string {
	if level < 1 {
		level = 1
	}
	if level > maxHeadingLevel {
		level = maxHeadingLevel
	}
	return fmt.Sprintf("%s%d", headingPrefix, level)
}

// HeadingLevel returns the level of a heading type.
func HeadingLevel(typ string) (int, bool) {
	if len(typ) != 2 || typ[0] != 'h' || typ[1] < '1' || typ[1] > '6' {
		return 0, false
	}
	return int(typ[1] - '0'), true
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

type textJSON struct {
	Text string `json:"text"`
	Marks
}

type elementJSON struct {
	Type     string         `json:"type"`
	UID      string         `json:"uid"`
	Attrs    map[string]any `json:"attrs"`
	Children []*Node        `json:"children"`
}

// MarshalJSON renders the editor's wire shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsText() {
		return json.Marshal(textJSON{Text: n.Text, Marks: n.Marks})
	}
	attrs := n.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	return json.Marshal(elementJSON{Type: n.Type, UID: n.UID, Attrs: attrs, Children: children})
}

// UnmarshalJSON accepts the wire shape produced by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return eris.Wrap(err, "richtext: decode node")
	}
	if _, ok := keys["type"]; !ok {
		var t textJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return eris.Wrap(err, "richtext: decode text node")
		}
		*n = Node{Type: TypeText, Text: t.Text, Marks: t.Marks}
		return nil
	}
	var e elementJSON
	if err := json.Unmarshal(data, &e); err != nil {
		return eris.Wrap(err, "richtext: decode element")
	}
	*n = Node{Type: e.Type, UID: e.UID, Attrs: e.Attrs, Children: e.Children}
	return nil
}

// IsCanonicalDoc reports whether v is already a destination document, either
// as a *Node or as its decoded JSON map form.
func IsCanonicalDoc(v any) bool {
	switch t := v.(type) {
	case *Node:
		return t != nil && t.Type == TypeDoc
	case map[string]any:
		typ, _ := t["type"].(string)
		return typ == TypeDoc
	}
	return false
}

// FromMap converts a decoded JSON document back into a Node tree.
func FromMap(m map[string]any) (*Node, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "richtext: encode map")
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, eris.Wrap(err, "richtext: decode map")
	}
	return &n, nil
}

// PlainText flattens the tree into text with one line per block.
func PlainText(n *Node) string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		}
	}
	var walk func(*Node)
	walk = func(n *Node) {
		if n.IsText() {
			cur.WriteString(n.Text)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
		if isBlock(n.Type) {
			flush()
		}
	}
	walk(n)
	flush()
	return strings.Join(lines, "\n")
}

// FromPlainText builds a document with one paragraph per non-empty line.
func FromPlainText(s string) *Node {
	doc := NewDoc()
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Append(NewElement(TypeParagraph, nil, NewText(line, Marks{})))
	}
	if len(doc.Children) == 0 {
		doc.Append(EmptyParagraph())
	}
	return doc
}

func isBlock(typ string) bool {
	switch typ {
	case TypeParagraph, TypeListItem, TypeBlockquote, TypeHR, TypeTableRow, TypeDoc:
		return true
	}
	_, heading := HeadingLevel(typ)
	return heading
}
