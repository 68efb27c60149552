package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// noteTypes are the epub:type and role values that mark footnote content.
var noteTypes = []string{
	"footnote", "footnotes", "endnote", "endnotes", "rearnote", "rearnotes", "noteref",
	"doc-footnote", "doc-endnote", "doc-endnotes", "doc-noteref",
}

// chapterBody parses an XHTML spine document and renders the children of
// its body with footnotes and scripts removed.
func chapterBody(raw []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	body := findBody(root)
	if body == nil {
		return "", nil
	}
	prune(body)

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// prune removes note elements below n, and superscripts left empty once
// their note reference is gone.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch {
			case c.DataAtom == atom.Script, isNote(c):
				n.RemoveChild(c)
			default:
				hadChildren := c.FirstChild != nil
				prune(c)
				if c.DataAtom == atom.Sup && hadChildren && isBlank(c) {
					n.RemoveChild(c)
				}
			}
		}
		c = next
	}
}

func isNote(n *html.Node) bool {
	for _, a := range n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		if key != "epub:type" && key != "role" {
			continue
		}
		for _, v := range strings.Fields(a.Val) {
			for _, t := range noteTypes {
				if v == t {
					return true
				}
			}
		}
	}
	return false
}

// isBlank reports whether n has only whitespace text and no elements.
func isBlank(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		}
	}
	return true
}
