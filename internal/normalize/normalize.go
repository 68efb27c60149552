// Package normalize turns converter HTML into a canonical document whose
// elements carry deterministic sequential identifiers.
//
// Every step is a regular-expression rewrite over the raw string. The input
// is not expected to be well-formed, and a structural parser would reorder or
// repair markup that identifier assignment depends on.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// TagPrefix prefixes every assigned identifier ("tag-1", "tag-2", ...).
const TagPrefix = "tag-"

var (
	imageSrcRe   = regexp.MustCompile(`(?i)src="[^"]*[/\\]([^"/\\]+\.(?:png|jpe?g|gif|svg|webp))"`)
	imgTagRe     = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	emptySpanRe  = regexp.MustCompile(`(?i)<span\b[^>]*>\s*</span>`)
	hrefIDRe     = regexp.MustCompile(`(?i)\s+(?:href|id)\s*=\s*(?:"[^"]*"|'[^']*')`)
	openTagRe    = regexp.MustCompile(`(<\w+)([\s>])`)
)

// Normalize applies every step in order. Byte-identical input always yields
// byte-identical output.
func Normalize(raw string) string {
	s := ImagePaths(raw)
	s = ImageWhitespace(s)
	s = EmptySpans(s)
	s = StripLinksAndIDs(s)
	return AssignIDs(s)
}

// ImagePaths rewrites image src attributes to their bare file name.
func ImagePaths(s string) string {
	return imageSrcRe.ReplaceAllString(s, `src="$1"`)
}

// ImageWhitespace collapses whitespace runs inside <img> tags.
func ImageWhitespace(s string) string {
	return imgTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		return whitespaceRe.ReplaceAllString(tag, " ")
	})
}

// EmptySpans removes span elements with no visible content, including spans
// left empty once their inner spans are gone.
func EmptySpans(s string) string {
	for {
		out := emptySpanRe.ReplaceAllString(s, "")
		if out == s {
			return out
		}
		s = out
	}
}

// StripLinksAndIDs drops every href and id attribute.
func StripLinksAndIDs(s string) string {
	return hrefIDRe.ReplaceAllString(s, "")
}

// AssignIDs stamps id="tag-N" on every opening tag, N counting from 1 in
// document order.
func AssignIDs(s string) string {
	n := 0
	return openTagRe.ReplaceAllStringFunc(s, func(m string) string {
		n++
		// m is "<name" followed by exactly one whitespace or '>' byte.
		name, end := m[:len(m)-1], m[len(m)-1:]
		var b strings.Builder
		b.Grow(len(m) + 16)
		b.WriteString(name)
		b.WriteString(` id="`)
		b.WriteString(TagPrefix)
		b.WriteString(strconv.Itoa(n))
		b.WriteByte('"')
		b.WriteString(end)
		return b.String()
	})
}

// AnchorAttr returns the literal attribute text for a tag reference,
// e.g. `id="tag-5"`.
func AnchorAttr(ref string) string {
	return `id="` + ref + `"`
}
