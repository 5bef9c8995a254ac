// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// PERFORMANCE: Pre-compiled regex (compiled once at startup)
// =============================================================================

var (
	// A run of exactly four single word characters joined by three single
	// spaces ("W h e n"). Token-level streaming occasionally letter-spaces a
	// word; this merges the observed shape and nothing else.
	reFragmentRun = regexp.MustCompile(`\b\w(?: \w){3}\b`)

	// Comma duplicated in front of a conjunction ("x, then" / "x , so").
	reCommaConjunction = regexp.MustCompile(`[ \t]*,[ \t]*(then|so)\b`)

	// Math span delimiters, non-greedy. Display before inline so "$$" pairs
	// are never claimed as two empty inline spans.
	reDisplayMath = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	reInlineMath  = regexp.MustCompile(`\$[^$\n]+?\$`)

	// Unbalanced closing pair: "= <content>$$" with no opening delimiter
	// left after the balanced spans are gone.
	reUnbalancedMath = regexp.MustCompile(`= [^$\n]+?\$\$`)

	// Single-letter variable directly in front of a fraction command.
	reFractionPrefix = regexp.MustCompile(`\b[A-Za-z] \\?frac\{[^{}]*\}\{[^{}]*\}`)

	// Math commands the source emits without delimiters, with up to two
	// brace groups. Longer names come first: Go alternation is
	// leftmost-first, not longest-match.
	reBareCommand = regexp.MustCompile(`\\?\b(?:frac|sqrt|sum|infty|int|lim|partial|nabla|cdot|times|theta|approx|neq|alpha|beta|lambda|omega|phi|psi|pi|pm|le|ge)\b(?:\{[^{}]*\}){0,2}`)

	// Stray spaces between a bold label and its closing markers.
	reBoldLabel = regexp.MustCompile(`\*\*([^*\n]+?)[ \t]*([:?])[ \t]*\*\*`)

	// A protected math token directly after a colon.
	reColonMath = regexp.MustCompile(`:[ \t\n]*(` + placeholderMark + `\d+` + "\x00" + `)`)

	// Whitespace the source sprinkles inside URLs.
	reURLScheme    = regexp.MustCompile(`(https?)[ \t]*:[ \t]*//`)
	reURLDotAfter  = regexp.MustCompile(`(https?://\S*\.)[ \t]+([a-z0-9][a-z0-9./~_-]*)`)
	reURLDotBefore = regexp.MustCompile(`(https?://\S*)[ \t]+\.([a-z0-9/])`)
	reURLPort      = regexp.MustCompile(`(https?://\S*)[ \t]+:(\d)`)

	// Three or more consecutive line breaks (blank-ish lines included).
	reBlankRun = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)

	// List markers: bulleted or numbered.
	reListMarker = regexp.MustCompile(`^(?:[-*+]|\d+\.)[ \t]`)
)

// =============================================================================
// TEXT REPAIR STEPS
// =============================================================================

// stepDefragment merges letter-spaced words. The pattern is intentionally
// narrow (a fixed-length run, see reFragmentRun); shorter or longer runs are
// a known limitation, not a target, since broader merging would start
// gluing genuine single-letter tokens like variable names.
func stepDefragment(s *session) {
	s.text = reFragmentRun.ReplaceAllStringFunc(s.text, func(m string) string {
		return strings.ReplaceAll(m, " ", "")
	})
}

// stepConjunctionComma collapses ", then" / ", so" to the bare conjunction.
func stepConjunctionComma(s *session) {
	s.text = reCommaConjunction.ReplaceAllString(s.text, " $1")
}

// stepLineEndings canonicalizes every line terminator to "\n".
func stepLineEndings(s *session) {
	s.text = strings.ReplaceAll(s.text, "\r\n", "\n")
	s.text = strings.ReplaceAll(s.text, "\r", "\n")
}

// =============================================================================
// MATH PROTECTION STEPS
// =============================================================================

// stepProtectDelimitedMath extracts every $$...$$ and $...$ span into the
// placeholder table. This must run before any rule that touches whitespace
// or punctuation, so math interiors survive the rest of the pipeline
// byte-for-byte.
func stepProtectDelimitedMath(s *session) {
	s.text = reDisplayMath.ReplaceAllStringFunc(s.text, s.protect)
	s.text = reInlineMath.ReplaceAllStringFunc(s.text, s.protect)
}

// stepProtectUnbalancedMath repairs the "= <content>$$" shape the source
// sometimes emits with a missing opening delimiter: the content is
// re-wrapped as a single-delimited span and protected like any other.
func stepProtectUnbalancedMath(s *session) {
	s.text = reUnbalancedMath.ReplaceAllStringFunc(s.text, func(m string) string {
		content := strings.TrimSuffix(strings.TrimPrefix(m, "= "), "$$")
		content = strings.TrimRight(content, " \t")
		return "= " + s.protect("$"+content+"$")
	})
}

// stepProtectFractionPrefix wraps a variable-plus-fraction sequence
// ("u \frac{a}{b}") as one span. Runs before stepProtectBareCommands; see
// the pipeline ordering note.
func stepProtectFractionPrefix(s *session) {
	s.text = reFractionPrefix.ReplaceAllStringFunc(s.text, func(m string) string {
		variable, frac, _ := strings.Cut(m, " ")
		if !strings.HasPrefix(frac, `\`) {
			frac = `\` + frac
		}
		return s.protect("$" + variable + " " + frac + "$")
	})
}

// stepProtectBareCommands wraps known math commands the source emitted
// without delimiters. Balanced spans are already in the table, so whatever
// the pattern still matches is genuinely bare.
func stepProtectBareCommands(s *session) {
	s.text = reBareCommand.ReplaceAllStringFunc(s.text, func(m string) string {
		if !strings.HasPrefix(m, `\`) {
			m = `\` + m
		}
		return s.protect("$" + m + "$")
	})
}

// =============================================================================
// LAYOUT STEPS
// =============================================================================

// stepBoldLabelSpacing removes stray spaces between a label ending in ":"
// or "?" and its closing bold markers.
func stepBoldLabelSpacing(s *session) {
	s.text = reBoldLabel.ReplaceAllString(s.text, "**$1$2**")
}

// stepJoinSoftBreaks merges streaming-induced hard wraps into flowing
// prose: a line that does not end a sentence and is not followed by a
// structural line is joined to the next line with a single space.
func stepJoinSoftBreaks(s *session) {
	s.text = joinSoftLineBreaks(s.text, joinOptions{
		keepTrailing: ".!?:;",
	})
}

// stepJoinSoftBreaksWide is the second, broader joining pass. It runs after
// the colon/blank-line rules and additionally preserves breaks before
// protected math tokens, before sentence-leading connective words, and
// after lines ending in ".", ",", ":" or ";".
func stepJoinSoftBreaksWide(s *session) {
	s.text = joinSoftLineBreaks(s.text, joinOptions{
		keepTrailing:     ".,:;!?",
		keepConnectives:  true,
		keepPlaceholders: true,
	})
}

// stepBreakMathAfterColon puts a protected math span that directly follows
// a colon onto its own line for readability.
func stepBreakMathAfterColon(s *session) {
	s.text = reColonMath.ReplaceAllString(s.text, ":\n$1")
}

// stepCompactURLs removes incidental whitespace around "." and ":" inside
// URLs. The dot rules are looped to a fixed point so multi-segment hosts
// ("example. co. uk") compact fully.
func stepCompactURLs(s *session) {
	s.text = reURLScheme.ReplaceAllString(s.text, "$1://")
	s.text = reURLPort.ReplaceAllString(s.text, "$1:$2")
	for {
		next := reURLDotAfter.ReplaceAllString(s.text, "$1$2")
		next = reURLDotBefore.ReplaceAllString(next, "$1.$2")
		if next == s.text {
			return
		}
		s.text = next
	}
}

// stepCollapseBlankLines collapses runs of three or more line breaks to
// exactly two. Used twice: once mid-pipeline and once as the final step,
// since the joining and isolation steps can reintroduce runs.
func stepCollapseBlankLines(s *session) {
	s.text = reBlankRun.ReplaceAllString(s.text, "\n\n")
}

// stepTrim trims leading and trailing whitespace of the whole buffer.
func stepTrim(s *session) {
	s.text = strings.TrimSpace(s.text)
}

// stepStructuralSpacing gives headings and list blocks a blank line of
// separation from surrounding prose.
func stepStructuralSpacing(s *session) {
	lines := strings.Split(s.text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case isHeading(trimmed):
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) != "" {
				out = append(out, "")
			}
			out = append(out, line)
			if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				out = append(out, "")
			}
		case isListItem(trimmed):
			if n := len(out); n > 0 {
				prev := strings.TrimSpace(out[n-1])
				if prev != "" && !isListItem(prev) {
					out = append(out, "")
				}
			}
			out = append(out, line)
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if next != "" && !isListItem(next) {
					out = append(out, "")
				}
			}
		default:
			out = append(out, line)
		}
	}
	s.text = strings.Join(out, "\n")
}

// =============================================================================
// PHRASE FIXUPS
// =============================================================================

// phraseFixups are hardcoded corrections for two phrases the upstream
// generator keeps emitting with broken bold markers. A fixed lookup, not a
// general rule.
var phraseFixups = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*{0,2}Time-dependent Schr(?:ö|o)dinger equation:?\*{0,2}`), "**Time-dependent Schrödinger equation:**"},
	{regexp.MustCompile(`\*{0,2}Time-independent Schr(?:ö|o)dinger equation:?\*{0,2}`), "**Time-independent Schrödinger equation:**"},
}

func stepPhraseFixups(s *session) {
	for _, f := range phraseFixups {
		s.text = f.re.ReplaceAllString(s.text, f.repl)
	}
}

// =============================================================================
// MATH SPACING AND ISOLATION
// =============================================================================

var (
	// A protected token adjacent to non-space content. The neighbor class
	// excludes NUL so two touching spans never get a space pushed between
	// them (the pair may be a repaired display span).
	reTokenTight     = regexp.MustCompile(`([^\s` + "\x00" + `])(` + placeholderMark + `\d+` + "\x00" + `)`)
	reTokenTightTail = regexp.MustCompile(`(` + placeholderMark + `\d+` + "\x00" + `)([^\s` + "\x00" + `])`)
)

// stepInlineMathSpacing ensures exactly one space on each side of an inline
// math span that touches other content. It runs while spans are still
// placeholder tokens: token boundaries are exact, whereas a rescan of
// restored text can pair one span's closing "$" with the next span's opening
// "$" and inject a space inside a protected interior. Display spans keep
// their layout; stepIsolateDisplayMath owns those.
func stepInlineMathSpacing(s *session) {
	s.text = reTokenTight.ReplaceAllStringFunc(s.text, func(m string) string {
		// The leading rune cannot contain NUL, so the token starts at the
		// first NUL byte.
		i := strings.Index(m, "\x00")
		if lead, token := m[:i], m[i:]; s.tokenIsInline(token) {
			return lead + " " + token
		}
		return m
	})
	s.text = reTokenTightTail.ReplaceAllStringFunc(s.text, func(m string) string {
		i := strings.Index(m[len(placeholderMark):], "\x00") + len(placeholderMark) + 1
		if token, tail := m[:i], m[i:]; s.tokenIsInline(token) {
			return token + " " + tail
		}
		return m
	})
}

// tokenIsInline reports whether a placeholder token holds a single-delimited
// span.
func (s *session) tokenIsInline(token string) bool {
	idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(token, placeholderMark), "\x00"))
	if err != nil || idx < 0 || idx >= len(s.saved) {
		return false
	}
	return !strings.HasPrefix(s.saved[idx], "$$")
}

// stepIsolateDisplayMath puts a blank line before and after any line that
// consists solely of a display math span.
func stepIsolateDisplayMath(s *session) {
	lines := strings.Split(s.text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isDisplayMathLine(trimmed) {
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) != "" {
				out = append(out, "")
			}
			out = append(out, line)
			if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				out = append(out, "")
			}
			continue
		}
		out = append(out, line)
	}
	s.text = strings.Join(out, "\n")
}

// =============================================================================
// LINE HELPERS
// =============================================================================

// joinOptions controls which line breaks a joining pass treats as soft.
type joinOptions struct {
	keepTrailing     string // line-final runes that keep the break
	keepConnectives  bool   // keep breaks before sentence-leading connectives
	keepPlaceholders bool   // keep breaks before protected math tokens
}

// connectives are words that usually open a deliberate new line in the
// source ("Let", "When", ...); the wide joining pass leaves those breaks
// alone.
var connectives = []string{"Let", "When", "Therefore", "If", "Then"}

// joinSoftLineBreaks merges each soft line break with a single space,
// trimming the whitespace the break itself carried.
func joinSoftLineBreaks(text string, opts joinOptions) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		for i+1 < len(lines) && joinable(cur, lines[i+1], opts) {
			cur = strings.TrimRight(cur, " \t") + " " + strings.TrimLeft(lines[i+1], " \t")
			i++
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

// joinable reports whether the break between cur and next is soft.
func joinable(cur, next string, opts joinOptions) bool {
	curTrim := strings.TrimSpace(cur)
	if curTrim == "" || isHeading(curTrim) {
		return false
	}
	if strings.ContainsAny(curTrim[len(curTrim)-1:], opts.keepTrailing) {
		return false
	}

	nextTrim := strings.TrimSpace(next)
	if nextTrim == "" || isHeading(nextTrim) || isListItem(nextTrim) {
		return false
	}
	if opts.keepPlaceholders && strings.HasPrefix(nextTrim, placeholderMark) {
		return false
	}
	if opts.keepConnectives && startsWithConnective(nextTrim) {
		return false
	}
	return true
}

func startsWithConnective(line string) bool {
	for _, w := range connectives {
		rest, found := strings.CutPrefix(line, w)
		if !found {
			continue
		}
		if rest == "" || rest[0] == ' ' || rest[0] == ',' {
			return true
		}
	}
	return false
}

// isHeading reports whether a trimmed line is a markdown heading.
func isHeading(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && n < len(line) && line[n] == ' '
}

// isListItem reports whether a trimmed line opens a bulleted or numbered
// list item.
func isListItem(line string) bool {
	return reListMarker.MatchString(line)
}

// isDisplayMathLine reports whether a trimmed line is nothing but one
// display math span.
func isDisplayMathLine(line string) bool {
	if len(line) < 5 || !strings.HasPrefix(line, "$$") || !strings.HasSuffix(line, "$$") {
		return false
	}
	// No additional "$$" between the delimiters: the whole line is one span.
	return !strings.Contains(line[2:len(line)-2], "$$")
}
