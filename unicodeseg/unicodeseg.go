// Package unicodeseg is the Unicode segmenter collaborator: grapheme-
// cluster boundary detection over a string, and a small tagged-string type
// that tracks a rendering-type tag per character range through concat and
// substring operations, so the final print composition can apply the
// correct escape policy per range instead of just at the string's edges.
//
// It wraps github.com/rivo/uniseg for the actual segmentation, since naive
// rune counting splits combining marks and wide scripts incorrectly.
package unicodeseg

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Graphemes splits s into user-perceived characters (grapheme clusters)
// rather than raw runes or bytes.
func Graphemes(s string) []string {
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// Count returns the number of grapheme clusters in s, the grapheme-correct
// analogue of len([]rune(s)).
func Count(s string) int {
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		n++
	}
	return n
}

// Width returns s's monospace terminal display width, accounting for wide
// runes (e.g. CJK) and zero-width combining sequences.
func Width(s string) int {
	return uniseg.StringWidth(s)
}

// RenderType is the escape policy applied to one range of a TaggedString
// at final render time, matching the string attribute names already
// exposed on Tang string values (trusted/html/html-attribute/javascript/percent).
type RenderType uint8

const (
	// Trusted ranges render verbatim.
	Trusted RenderType = iota
	HTML
	HTMLAttribute
	JavaScript
	Percent
)

// Range is one contiguous, same-tagged span of a TaggedString's Text,
// expressed as grapheme-cluster offsets (not byte or rune offsets), so
// Substring can cut cleanly between user-perceived characters.
type Range struct {
	Start, End int // grapheme-cluster offsets, End exclusive
	Type       RenderType
}

// TaggedString is a string paired with a rendering-type tag per grapheme
// range, the representation `print` composes into context.output so each
// contributed value's escape policy survives concatenation.
type TaggedString struct {
	Text   string
	Ranges []Range
}

// Plain wraps s as a single Trusted-tagged range, the default for any
// value that hasn't gone through an explicit `.html`/`.javascript`/etc.
// attribute access.
func Plain(s string) TaggedString {
	return TaggedString{Text: s, Ranges: []Range{{Start: 0, End: Count(s), Type: Trusted}}}
}

// Tagged wraps s as a single range under the given render type, the shape
// produced by a string value's `.html`/`.html-attribute`/`.javascript`/
// `.percent`/`.trusted` attribute access.
func Tagged(s string, t RenderType) TaggedString {
	return TaggedString{Text: s, Ranges: []Range{{Start: 0, End: Count(s), Type: t}}}
}

// Concat appends b after a, offsetting b's ranges by a's grapheme length
// so both strings' tag boundaries are preserved in the result.
func Concat(a, b TaggedString) TaggedString {
	offset := Count(a.Text)
	ranges := make([]Range, 0, len(a.Ranges)+len(b.Ranges))
	ranges = append(ranges, a.Ranges...)
	for _, r := range b.Ranges {
		ranges = append(ranges, Range{Start: r.Start + offset, End: r.End + offset, Type: r.Type})
	}
	return TaggedString{Text: a.Text + b.Text, Ranges: ranges}
}

// Substring extracts the grapheme-cluster half-open range [start, end) from
// s, clipping each tag range to the extracted window and re-basing its
// offsets to start at 0.
func Substring(s TaggedString, start, end int) TaggedString {
	graphemes := Graphemes(s.Text)
	if start < 0 {
		start = 0
	}
	if end > len(graphemes) {
		end = len(graphemes)
	}
	if start >= end {
		return TaggedString{}
	}

	var text string
	for _, g := range graphemes[start:end] {
		text += g
	}

	var ranges []Range
	for _, r := range s.Ranges {
		lo, hi := r.Start, r.End
		if hi <= start || lo >= end {
			continue
		}
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		ranges = append(ranges, Range{Start: lo - start, End: hi - start, Type: r.Type})
	}

	return TaggedString{Text: text, Ranges: ranges}
}

// Render applies each range's escape policy and concatenates the result,
// the final step before a TaggedString is written to context.output.
func Render(s TaggedString) string {
	graphemes := Graphemes(s.Text)
	var out string
	for _, r := range s.Ranges {
		lo, hi := r.Start, r.End
		if lo < 0 {
			lo = 0
		}
		if hi > len(graphemes) {
			hi = len(graphemes)
		}
		if lo >= hi {
			continue
		}
		var chunk string
		for _, g := range graphemes[lo:hi] {
			chunk += g
		}
		out += escape(chunk, r.Type)
	}
	return out
}

func escape(s string, t RenderType) string {
	switch t {
	case HTML:
		return HTMLEscape(s)
	case HTMLAttribute:
		return HTMLAttributeEscape(s)
	case JavaScript:
		return JavaScriptEscape(s)
	case Percent:
		return PercentEscape(s)
	default:
		return s
	}
}

// HTMLEscape escapes s for safe inclusion in HTML text content.
func HTMLEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")
	return r.Replace(s)
}

// HTMLAttributeEscape escapes s for safe inclusion inside an HTML
// attribute value, hex-encoding every non-alphanumeric rune rather than
// relying on a fixed entity table.
func HTMLAttributeEscape(s string) string {
	var out strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out.WriteRune(r)
			continue
		}
		fmt.Fprintf(&out, "&#x%x;", r)
	}
	return out.String()
}

// JavaScriptEscape escapes s for safe inclusion inside a single- or
// double-quoted JavaScript string literal.
func JavaScriptEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "'", `\'`, "\n", `\n`, "\r", `\r`, "<", `\x3C`, ">", `\x3E`)
	return r.Replace(s)
}

// PercentEscape percent-encodes s for safe inclusion in a URL component.
func PercentEscape(s string) string {
	var out strings.Builder
	for _, b := range []byte(s) {
		if (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' || b == '.' || b == '~' {
			out.WriteByte(b)
			continue
		}
		fmt.Fprintf(&out, "%%%02X", b)
	}
	return out.String()
}
