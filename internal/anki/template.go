package anki

import (
	"fmt"
	"regexp"
	"strings"
)

// The renderer evaluates the commonly used subset of the foreign template
// dialect: field substitution, cloze deletion, simple and inverted
// conditional sections, and the {{FrontSide}} back-reference. Unknown helper
// tags are stripped. Rendering is a pure function of its inputs.

var (
	clozeHelperRe = regexp.MustCompile(`\{\{cloze:([^{}]+)\}\}`)
	clozeSpanRe   = regexp.MustCompile(`(?s)\{\{c(\d+)::(.+?)\}\}`)
	frontSideRe   = regexp.MustCompile(`\{\{FrontSide\}\}`)
	answerHRRe    = regexp.MustCompile(`(?i)<hr\s+id="?answer"?\s*/?>`)
	tagRe         = regexp.MustCompile(`\{\{[^{}]*\}\}`)
)

// Conditional resolution reapplies section rules until the string stops
// changing. The pass count is capped so cyclic or pathologically nested
// markers cannot loop forever; past the cap the card fails closed.
const maxConditionalPasses = 50

// RenderTemplate renders one side of a card. ord is the card's template
// ordinal (cloze index - 1 for cloze cards), fields maps field names to raw
// values, and front carries the already-rendered front HTML when back is
// true.
func RenderTemplate(format string, fields map[string]string, ord int, back bool, front string) (string, error) {
	out := expandClozeHelpers(format, fields)
	out = resolveCloze(out, ord, back)

	if back {
		out = answerHRRe.ReplaceAllString(out, "")
		out = frontSideRe.ReplaceAllString(out, front)
	}

	out, err := resolveConditionals(out, fields)
	if err != nil {
		return "", err
	}

	out = substituteFields(out, fields)

	// Field substitution can introduce cloze spans of its own; resolve them
	// before stripping leftover tags so visible text is never destroyed.
	out = resolveCloze(out, ord, back)
	out = tagRe.ReplaceAllString(out, "")

	return out, nil
}

// expandClozeHelpers inlines {{cloze:Field}} with the raw field value so the
// cloze pass sees the spans it has to mask or reveal.
func expandClozeHelpers(s string, fields map[string]string) string {
	return clozeHelperRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(clozeHelperRe.FindStringSubmatch(m)[1])
		if v, ok := fields[name]; ok {
			return v
		}
		return ""
	})
}

// resolveCloze replaces every {{cN::text}} / {{cN::text::hint}} occurrence
// in one pass. Spans whose index matches ord+1 are masked on the front and
// revealed emphasized on the back; all other spans stay visible as plain
// text on both sides.
func resolveCloze(s string, ord int, back bool) string {
	active := fmt.Sprintf("%d", ord+1)
	return clozeSpanRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := clozeSpanRe.FindStringSubmatch(m)
		index, inner := sub[1], sub[2]

		text := inner
		hint := ""
		if i := strings.Index(inner, "::"); i >= 0 {
			text, hint = inner[:i], inner[i+2:]
		}

		if index != active {
			return text
		}
		if back {
			return `<span class="cloze"><b>` + text + `</b></span>`
		}
		if hint == "" {
			hint = "..."
		}
		return `<span class="cloze">[` + hint + `]</span>`
	})
}

// resolveConditionals evaluates {{#Field}}...{{/Field}} (keep when the field
// is non-blank) and {{^Field}}...{{/Field}} (keep when blank or absent),
// iterating to a fixed point because sections may nest or repeat.
func resolveConditionals(s string, fields map[string]string) (string, error) {
	for pass := 0; pass < maxConditionalPasses; pass++ {
		next, changed := resolveConditionalPass(s, fields)
		if !changed {
			return next, nil
		}
		s = next
	}
	return "", fmt.Errorf("conditional sections did not settle after %d passes", maxConditionalPasses)
}

// resolveConditionalPass rewrites each section whose closing tag can be
// found, left to right. Openers with no closer are left in place for the
// cleanup pass to strip.
func resolveConditionalPass(s string, fields map[string]string) (string, bool) {
	var sb strings.Builder
	changed := false
	pos := 0

	for pos < len(s) {
		open, negate, name, bodyStart := nextSectionOpen(s, pos)
		if open < 0 {
			sb.WriteString(s[pos:])
			break
		}

		closeTag := "{{/" + name + "}}"
		closeAt := strings.Index(s[bodyStart:], closeTag)
		if closeAt < 0 {
			// Unterminated section, keep scanning past the opener.
			sb.WriteString(s[pos:bodyStart])
			pos = bodyStart
			continue
		}

		sb.WriteString(s[pos:open])
		body := s[bodyStart : bodyStart+closeAt]

		blank := strings.TrimSpace(fields[name]) == ""
		if blank == negate {
			sb.WriteString(body)
		}
		changed = true
		pos = bodyStart + closeAt + len(closeTag)
	}

	return sb.String(), changed
}

// nextSectionOpen finds the first {{#Name}} or {{^Name}} at or after pos,
// returning the tag's start offset, whether it is the inverted form, the
// field name, and the offset just past the tag. open is -1 when none exists.
func nextSectionOpen(s string, pos int) (open int, negate bool, name string, bodyStart int) {
	for i := pos; ; {
		j := strings.Index(s[i:], "{{")
		if j < 0 {
			return -1, false, "", 0
		}
		start := i + j
		rest := s[start+2:]
		if len(rest) == 0 {
			return -1, false, "", 0
		}
		if rest[0] != '#' && rest[0] != '^' {
			i = start + 2
			continue
		}
		end := strings.Index(rest, "}}")
		if end < 0 {
			return -1, false, "", 0
		}
		return start, rest[0] == '^', rest[1:end], start + 2 + end + 2
	}
}

// substituteFields replaces every {{FieldName}} whose name is a known field
// with the field's raw value. No HTML escaping: foreign field content is
// already HTML.
func substituteFields(s string, fields map[string]string) string {
	return tagRe.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := fields[name]; ok {
			return v
		}
		return m
	})
}
