package article

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextSeparator joins the abstract and body texts
const TextSeparator = ". "

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tagRe        = regexp.MustCompile(`<(?:/?([a-zA-Z][a-zA-Z0-9]*)|!--)`)
)

// Line breaks emitted around block elements
const (
	noBreak        = 0
	lineBreak      = 1
	paragraphBreak = 2
)

var blockBreaks = map[atom.Atom]int{
	atom.P:          paragraphBreak,
	atom.H1:         paragraphBreak,
	atom.H2:         paragraphBreak,
	atom.H3:         paragraphBreak,
	atom.H4:         paragraphBreak,
	atom.H5:         paragraphBreak,
	atom.H6:         paragraphBreak,
	atom.Blockquote: paragraphBreak,
	atom.Pre:        paragraphBreak,
	atom.Ul:         paragraphBreak,
	atom.Ol:         paragraphBreak,
	atom.Dl:         paragraphBreak,
	atom.Table:      paragraphBreak,
	atom.Figure:     paragraphBreak,
	atom.Hr:         paragraphBreak,
	atom.Address:    paragraphBreak,

	atom.Div:        lineBreak,
	atom.Section:    lineBreak,
	atom.Article:    lineBreak,
	atom.Header:     lineBreak,
	atom.Footer:     lineBreak,
	atom.Aside:      lineBreak,
	atom.Nav:        lineBreak,
	atom.Main:       lineBreak,
	atom.Li:         lineBreak,
	atom.Dt:         lineBreak,
	atom.Dd:         lineBreak,
	atom.Tr:         lineBreak,
	atom.Caption:    lineBreak,
	atom.Figcaption: lineBreak,
	atom.Details:    lineBreak,
	atom.Summary:    lineBreak,
	atom.Form:       lineBreak,
	atom.Fieldset:   lineBreak,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
}

// ToText converts an HTML fragment to plain text. Markup is dropped, block
// elements are kept on their own lines in reading order, and whitespace inside
// a line collapses to a single space. A fragment with no known HTML tag, like
// "x<y et z", is already plain text: it is only unescaped and trimmed, so
// ToText(ToText(x)) == ToText(x) unless the text spells out a tag itself.
func ToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !hasMarkup(fragment) {
		return strings.TrimSpace(html.UnescapeString(fragment))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	body := doc.Find("body")
	if body.Children().Length() == 0 {
		return strings.TrimSpace(body.Text())
	}

	b := &textBuilder{}
	for _, n := range body.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
	}
	return b.String()
}

// hasMarkup reports whether fragment opens a comment or a tag the HTML
// parser knows. A bare "<" followed by a word is left to plain text.
func hasMarkup(fragment string) bool {
	for _, m := range tagRe.FindAllStringSubmatch(fragment, -1) {
		if m[1] == "" {
			return true
		}
		if atom.Lookup([]byte(strings.ToLower(m[1]))) != 0 {
			return true
		}
	}
	return false
}

// JoinText joins the non-empty parts with TextSeparator
func JoinText(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, TextSeparator)
}

type textBuilder struct {
	sb      strings.Builder
	pending int
	space   bool
	pre     int
}

func (b *textBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.text(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	if skippedElements[n.DataAtom] {
		return
	}

	switch n.DataAtom {
	case atom.Br:
		b.pending++
		return
	case atom.Td, atom.Th:
		b.space = true
	case atom.Pre:
		b.pre++
		defer func() { b.pre-- }()
	}

	brk := blockBreaks[n.DataAtom]
	b.breakAt(brk)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
	b.breakAt(brk)

	if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
		b.space = true
	}
}

func (b *textBuilder) breakAt(brk int) {
	if brk > b.pending {
		b.pending = brk
	}
}

func (b *textBuilder) text(data string) {
	if b.pre > 0 {
		if data == "" {
			return
		}
		b.flush(false)
		b.sb.WriteString(data)
		return
	}

	collapsed := whitespaceRe.ReplaceAllString(data, " ")
	trimmed := strings.TrimSpace(collapsed)
	if trimmed == "" {
		if collapsed != "" {
			b.space = true
		}
		return
	}

	b.flush(strings.HasPrefix(collapsed, " "))
	b.sb.WriteString(trimmed)
	b.space = strings.HasSuffix(collapsed, " ")
}

// flush writes the separator owed before the next run of text
func (b *textBuilder) flush(leadingSpace bool) {
	if b.sb.Len() > 0 {
		switch {
		case b.pending > 0:
			n := b.pending
			if n > paragraphBreak {
				n = paragraphBreak
			}
			b.sb.WriteString(strings.Repeat("\n", n))
		case b.space || leadingSpace:
			b.sb.WriteByte(' ')
		}
	}
	b.pending = noBreak
	b.space = false
}

func (b *textBuilder) String() string {
	return strings.TrimSpace(b.sb.String())
}
