package richtext

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/migrate-cli/internal/refindex"
)

// placeholderClass marks an unresolved reference in rendered HTML.
const placeholderClass = "embedded-entry"

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|u|strong|em|a|ul|ol|li|h[1-6]|blockquote|table|tr|td|th|img|hr|pre|code)[\s>/]`)

// ContainsHTML reports whether s appears to contain HTML markup.
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// HTMLToMarkdown converts HTML to markdown.
func HTMLToMarkdown(s string) (string, error) {
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return "", eris.Wrap(err, "richtext: html to markdown")
	}
	return strings.TrimSpace(md), nil
}

// FromHTML parses an HTML fragment into a destination document.
func FromHTML(s string) (*Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil, eris.Wrap(err, "richtext: parse html")
	}
	var children []*Node
	for _, n := range nodes {
		children = append(children, convertHTML(n, Marks{})...)
	}
	doc := NewDoc(blockify(children)...)
	if len(doc.Children) == 0 {
		doc.Append(EmptyParagraph())
	}
	return doc, nil
}

var htmlBlocks = map[string]string{
	"p":          TypeParagraph,
	"h1":         HeadingType(1),
	"h2":         HeadingType(2),
	"h3":         HeadingType(3),
	"h4":         HeadingType(4),
	"h5":         HeadingType(5),
	"h6":         HeadingType(6),
	"li":         TypeListItem,
	"blockquote": TypeBlockquote,
	"th":         TypeHeaderCell,
	"td":         TypeBodyCell,
	"tr":         TypeTableRow,
}

// Containers whose whitespace-only text children are formatting noise.
var htmlStructural = map[string]string{
	"ul": TypeUnordered,
	"ol": TypeOrdered,
}

func convertHTML(n *html.Node, marks Marks) []*Node {
	switch n.Type {
	case html.TextNode:
		return []*Node{NewText(n.Data, marks)}
	case html.ElementNode:
	default:
		return nil
	}

	if typ, ok := htmlBlocks[n.Data]; ok {
		el := NewElement(typ, nil, convertHTMLChildren(n, marks)...)
		if len(el.Children) == 0 {
			el.Append(NewText("", marks))
		}
		return []*Node{el}
	}
	if typ, ok := htmlStructural[n.Data]; ok {
		return []*Node{NewElement(typ, nil, elementsOnly(convertHTMLChildren(n, marks))...)}
	}

	switch n.Data {
	case "table":
		return []*Node{convertHTMLTable(n, marks)}
	case "hr":
		return []*Node{NewElement(TypeHR, nil, NewText("", Marks{}))}
	case "br":
		return []*Node{NewText("\n", marks)}
	case "a":
		return []*Node{NewElement(TypeLink, linkAttrs(n), convertHTMLChildren(n, marks)...)}
	case "img":
		return []*Node{AssetReference(assetFromImg(n))}
	case "pre":
		m := marks
		m.InlineCode = true
		return []*Node{NewElement(TypeParagraph, nil, convertHTMLChildren(n, m)...)}
	case "script", "style", "head", "template":
		return nil
	}

	if n.Data == "div" && attr(n, "class") == placeholderClass && attr(n, "data-entry-uid") == "" {
		return []*Node{referencePlaceholder()}
	}
	if uid := attr(n, "data-entry-uid"); uid != "" {
		display := DisplayBlock
		if n.Data == "span" {
			display = DisplayInline
		}
		return []*Node{EntryReference(uid, attr(n, "data-content-type-uid"), attr(n, "data-locale"), display)}
	}

	m := marks
	switch n.Data {
	case "strong", "b":
		m.Bold = true
	case "em", "i":
		m.Italic = true
	case "u":
		m.Underline = true
	case "code":
		m.InlineCode = true
	case "s", "strike", "del":
		m.Strikethrough = true
	case "sup":
		m.Superscript = true
	case "sub":
		m.Subscript = true
	}
	return convertHTMLChildren(n, m)
}

func convertHTMLChildren(n *html.Node, marks Marks) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, convertHTML(c, marks)...)
	}
	return out
}

func convertHTMLTable(n *html.Node, marks Marks) *Node {
	var head, body []*Node
	var collect func(*html.Node, bool)
	collect = func(parent *html.Node, inHead bool) {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead":
				collect(c, true)
			case "tbody", "tfoot":
				collect(c, false)
			case "tr":
				row := NewElement(TypeTableRow, nil, elementsOnly(convertHTMLChildren(c, marks))...)
				if inHead || rowHasHeaderCell(row) {
					head = append(head, row)
				} else {
					body = append(body, row)
				}
			}
		}
	}
	collect(n, false)
	return assembleTable(head, body)
}

func rowHasHeaderCell(row *Node) bool {
	for _, c := range row.Children {
		if c.Type == TypeHeaderCell {
			return true
		}
	}
	return false
}

func linkAttrs(n *html.Node) map[string]any {
	attrs := map[string]any{}
	if href := attr(n, "href"); href != "" {
		attrs["url"] = href
	}
	if uid := attr(n, "data-entry-uid"); uid != "" {
		attrs["entry-uid"] = uid
		attrs["content-type-uid"] = attr(n, "data-content-type-uid")
		attrs["locale"] = attr(n, "data-locale")
	}
	if uid := attr(n, "data-asset-uid"); uid != "" {
		attrs["asset-uid"] = uid
	}
	return attrs
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func elementsOnly(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.IsText() && strings.TrimSpace(n.Text) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func isInline(n *Node) bool {
	if n.IsText() || n.Type == TypeLink {
		return true
	}
	return n.Type == TypeReference && n.Attrs["display-type"] == DisplayInline
}

// blockify wraps runs of inline nodes at document level into paragraphs and
// drops runs that hold only whitespace.
func blockify(nodes []*Node) []*Node {
	var out, run []*Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		blank := true
		for _, n := range run {
			if !n.IsText() || strings.TrimSpace(n.Text) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, NewElement(TypeParagraph, nil, run...))
		}
		run = nil
	}
	for _, n := range nodes {
		if isInline(n) {
			run = append(run, n)
			continue
		}
		flush()
		out = append(out, n)
	}
	flush()
	return out
}

// ToHTML renders a document as HTML.
func ToHTML(n *Node) string {
	var sb strings.Builder
	renderHTML(&sb, n)
	return sb.String()
}

func renderHTML(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.IsText() {
		renderText(sb, n)
		return
	}
	switch n.Type {
	case TypeDoc:
		renderHTMLChildren(sb, n)
	case TypeHR:
		sb.WriteString("<hr>")
	case TypeLink:
		sb.WriteString("<a")
		writeAttr(sb, "href", stringAttr(n, "url"))
		writeAttr(sb, "data-entry-uid", stringAttr(n, "entry-uid"))
		writeAttr(sb, "data-content-type-uid", stringAttr(n, "content-type-uid"))
		writeAttr(sb, "data-locale", stringAttr(n, "locale"))
		writeAttr(sb, "data-asset-uid", stringAttr(n, "asset-uid"))
		sb.WriteString(">")
		renderHTMLChildren(sb, n)
		sb.WriteString("</a>")
	case TypeReference:
		renderReference(sb, n)
	default:
		tag := n.Type
		fmt.Fprintf(sb, "<%s>", tag)
		renderHTMLChildren(sb, n)
		fmt.Fprintf(sb, "</%s>", tag)
	}
}

func renderHTMLChildren(sb *strings.Builder, n *Node) {
	for _, c := range n.Children {
		renderHTML(sb, c)
	}
}

func renderReference(sb *strings.Builder, n *Node) {
	switch stringAttr(n, "type") {
	case RefTypeEntry:
		tag := "div"
		if stringAttr(n, "display-type") == DisplayInline {
			tag = "span"
		}
		sb.WriteString("<" + tag + ` class="` + placeholderClass + `"`)
		writeAttr(sb, "data-entry-uid", stringAttr(n, "entry-uid"))
		writeAttr(sb, "data-content-type-uid", stringAttr(n, "content-type-uid"))
		writeAttr(sb, "data-locale", stringAttr(n, "locale"))
		sb.WriteString("></" + tag + ">")
	case RefTypeAsset:
		sb.WriteString("<img")
		writeAttr(sb, "src", stringAttr(n, "asset-link"))
		writeAttr(sb, "alt", stringAttr(n, "asset-alt"))
		writeAttr(sb, "data-asset-uid", stringAttr(n, "asset-uid"))
		writeAttr(sb, "data-asset-name", stringAttr(n, "asset-name"))
		writeAttr(sb, "data-asset-type", stringAttr(n, "asset-type"))
		sb.WriteString(">")
	default:
		sb.WriteString(`<div class="` + placeholderClass + `"></div>`)
	}
}

func renderText(sb *strings.Builder, n *Node) {
	if n.Text == "" {
		return
	}
	type wrapper struct {
		on  bool
		tag string
	}
	wrappers := []wrapper{
		{n.Marks.Bold, "strong"},
		{n.Marks.Italic, "em"},
		{n.Marks.Underline, "u"},
		{n.Marks.Strikethrough, "s"},
		{n.Marks.InlineCode, "code"},
		{n.Marks.Superscript, "sup"},
		{n.Marks.Subscript, "sub"},
	}
	for _, w := range wrappers {
		if w.on {
			sb.WriteString("<" + w.tag + ">")
		}
	}
	sb.WriteString(strings.ReplaceAll(html.EscapeString(n.Text), "\n", "<br>"))
	for i := len(wrappers) - 1; i >= 0; i-- {
		if wrappers[i].on {
			sb.WriteString("</" + wrappers[i].tag + ">")
		}
	}
}

func writeAttr(sb *strings.Builder, key, val string) {
	if val == "" {
		return
	}
	fmt.Fprintf(sb, ` %s="%s"`, key, html.EscapeString(val))
}

func stringAttr(n *Node, key string) string {
	v, _ := n.Attrs[key].(string)
	return v
}

func assetFromImg(n *html.Node) refindex.AssetDescriptor {
	return refindex.AssetDescriptor{
		UID:         attr(n, "data-asset-uid"),
		Title:       attr(n, "alt"),
		FileName:    attr(n, "data-asset-name"),
		URL:         attr(n, "src"),
		ContentType: attr(n, "data-asset-type"),
	}
}
