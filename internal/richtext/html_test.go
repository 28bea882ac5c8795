package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsHTML(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"<p>hi</p>", true},
		{"line<br/>break", true},
		{"<STRONG>loud</STRONG>", true},
		{"a < b and c > d", false},
		{"plain text", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContainsHTML(tt.in), "input: %q", tt.in)
	}
}

func TestFromHTML_Blocks(t *testing.T) {
	doc, err := FromHTML(`<h2>Title</h2>
<p>Some <strong>bold</strong> and <em>italic</em> <a href="https://x.io">link</a></p>
<ul>
  <li>one</li>
  <li>two</li>
</ul>
<hr>`)
	require.NoError(t, err)
	require.Len(t, doc.Children, 4)
	assert.Equal(t, "h2", doc.Children[0].Type)

	p := doc.Children[1]
	assert.Equal(t, TypeParagraph, p.Type)
	var bold, link *Node
	for _, c := range p.Children {
		if c.Marks.Bold {
			bold = c
		}
		if c.Type == TypeLink {
			link = c
		}
	}
	require.NotNil(t, bold)
	assert.Equal(t, "bold", bold.Text)
	require.NotNil(t, link)
	assert.Equal(t, "https://x.io", link.Attrs["url"])

	list := doc.Children[2]
	assert.Equal(t, TypeUnordered, list.Type)
	assert.Len(t, list.Children, 2)
	assert.Equal(t, TypeHR, doc.Children[3].Type)
}

func TestFromHTML_BareTextWrapped(t *testing.T) {
	doc, err := FromHTML("just text <b>here</b>")
	require.NoError(t, err)
	require.Len(t, doc.Children, 1)
	assert.Equal(t, TypeParagraph, doc.Children[0].Type)
	assert.Len(t, doc.Children[0].Children, 2)
}

func TestFromHTML_Table(t *testing.T) {
	doc, err := FromHTML(`<table><thead><tr><th>A</th><th>B</th></tr></thead><tbody><tr><td>1</td><td>2</td></tr></tbody></table>`)
	require.NoError(t, err)
	table := doc.Children[0]
	assert.Equal(t, TypeTable, table.Type)
	assert.Equal(t, 2, table.Attrs["cols"])
	require.Len(t, table.Children, 2)
	assert.Equal(t, TypeTableHead, table.Children[0].Type)
	assert.Equal(t, TypeTableBody, table.Children[1].Type)
}

// shape reduces a tree to its node types so structure can be compared
// independently of uids.
func shape(n *Node) any {
	if n.IsText() {
		return "text"
	}
	children := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, shape(c))
	}
	return map[string]any{n.Type: children}
}

func TestHTMLRoundTripPreservesStructure(t *testing.T) {
	r, _ := observed(t)
	foreign := decodeForeign(t, `{
		"nodeType": "document",
		"content": [
			{"nodeType": "heading-1", "content": [{"nodeType": "text", "value": "Intro"}]},
			{"nodeType": "paragraph", "content": [
				{"nodeType": "text", "value": "x < y", "marks": [{"type": "italic"}]},
				{"nodeType": "hyperlink", "data": {"uri": "https://a.b"}, "content": [{"nodeType": "text", "value": "go"}]}
			]},
			{"nodeType": "ordered-list", "content": [{"nodeType": "list-item", "content": [{"nodeType": "paragraph", "content": [{"nodeType": "text", "value": "i"}]}]}]},
			{"nodeType": "embedded-entry-block", "data": {"target": {"sys": {"id": "entry-1"}}}},
			{"nodeType": "embedded-asset-block", "data": {"target": {"sys": {"id": "asset-9"}}}},
			{"nodeType": "table", "content": [
				{"nodeType": "table-row", "content": [{"nodeType": "table-header-cell", "content": [{"nodeType": "paragraph", "content": [{"nodeType": "text", "value": "h"}]}]}]},
				{"nodeType": "table-row", "content": [{"nodeType": "table-cell", "content": [{"nodeType": "paragraph", "content": [{"nodeType": "text", "value": "c"}]}]}]}
			]}
		]
	}`)
	doc, err := Build(foreign, r)
	require.NoError(t, err)

	back, err := FromHTML(ToHTML(doc))
	require.NoError(t, err)
	assert.Equal(t, shape(doc), shape(back))

	ref := back.Children[4]
	assert.Equal(t, "article_1", ref.Attrs["entry-uid"])
	asset := back.Children[5]
	assert.Equal(t, "blt9", asset.Attrs["asset-uid"])
	assert.Equal(t, "https://cdn/hero.jpg", asset.Attrs["asset-link"])
}

func TestToHTML_EscapesAndMarks(t *testing.T) {
	doc := NewDoc(NewElement(TypeParagraph, nil,
		NewText("a<b", Marks{Bold: true, Italic: true}),
		NewText("line\nbreak", Marks{}),
	))
	assert.Equal(t, "<p><strong><em>a&lt;b</em></strong>line<br>break</p>", ToHTML(doc))
}

func TestHTMLRoundTripKeepsPlaceholders(t *testing.T) {
	doc := NewDoc(
		NewElement(TypeParagraph, nil, NewText("before", Marks{})),
		referencePlaceholder(),
	)
	out := ToHTML(doc)
	assert.Equal(t, `<p>before</p><div class="embedded-entry"></div>`, out)

	back, err := FromHTML(out)
	require.NoError(t, err)
	assert.Equal(t, shape(doc), shape(back))
	ref := back.Children[1]
	assert.Equal(t, TypeReference, ref.Type)
	assert.Empty(t, ref.Attrs)
}

func TestHTMLToMarkdown(t *testing.T) {
	md, err := HTMLToMarkdown("<h1>Title</h1><p><strong>bold</strong> text</p>")
	require.NoError(t, err)
	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**bold** text")
}
