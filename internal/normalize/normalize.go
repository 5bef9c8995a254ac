// Copyright (c) 2025 Mathchat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package normalize rewrites streamed markdown into display-ready text.
//
// The backend streams token fragments with artifacts that break progressive
// rendering: letter-spaced words, duplicated conjunctions, hard-wrapped
// prose, and LaTeX math that later rewrites would corrupt. Normalize applies
// a fixed, ordered sequence of named rewrite steps; math spans are extracted
// into a per-call placeholder table before any whitespace or punctuation
// rule runs and restored afterwards, so their interior stays byte-identical.
//
// Normalize is pure and idempotent. The caller re-runs it over the entire
// accumulated buffer after every frame, so normalize(normalize(x)) must
// equal normalize(x) for every input; each step below is written and tested
// against that contract. There is no error path: a step that does not match
// leaves the text unchanged.
package normalize

import (
	"strconv"
	"strings"
)

// =============================================================================
// PIPELINE
// =============================================================================

// step is one named rewrite in the pipeline. The order of the pipeline slice
// is the ordering contract: each step operates on the output of the previous
// one, and several steps are only correct because of their position (the
// protection steps must precede every whitespace rule, restoration must
// follow them all).
type step struct {
	name  string
	apply func(*session)
}

// pipeline is the full rewrite sequence.
//
// protect-fraction-prefix runs before protect-bare-commands: a variable
// followed by a fraction ("u \frac{a}{b}") must become one span before the
// generic command rule can claim the fraction alone and strand the prefix.
//
// inline-math-spacing runs before restore-placeholders: while spans are
// still tokens their boundaries are unambiguous, but once adjacent spans are
// restored their "$" delimiters can be mis-paired by a textual rescan, and a
// space would land inside a protected interior.
var pipeline = []step{
	{"defragment", stepDefragment},
	{"conjunction-comma", stepConjunctionComma},
	{"line-endings", stepLineEndings},
	{"protect-delimited-math", stepProtectDelimitedMath},
	{"protect-unbalanced-math", stepProtectUnbalancedMath},
	{"protect-fraction-prefix", stepProtectFractionPrefix},
	{"protect-bare-commands", stepProtectBareCommands},
	{"bold-label-spacing", stepBoldLabelSpacing},
	{"join-soft-breaks", stepJoinSoftBreaks},
	{"break-math-after-colon", stepBreakMathAfterColon},
	{"compact-urls", stepCompactURLs},
	{"collapse-blank-lines", stepCollapseBlankLines},
	{"join-soft-breaks-wide", stepJoinSoftBreaksWide},
	{"trim", stepTrim},
	{"structural-spacing", stepStructuralSpacing},
	{"phrase-fixups", stepPhraseFixups},
	{"inline-math-spacing", stepInlineMathSpacing},
	{"restore-placeholders", stepRestorePlaceholders},
	{"isolate-display-math", stepIsolateDisplayMath},
	{"collapse-blank-lines-final", stepCollapseBlankLines},
}

// session is the state threaded through one Normalize call: the text being
// rewritten and the placeholder table of protected math spans. It is local
// to the call, never shared, which keeps Normalize pure.
type session struct {
	text  string
	saved []string // placeholder table, indexed by insertion order
}

// Normalize rewrites raw accumulated text into display-ready markdown.
// It is total over all string inputs; empty input yields the empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := &session{text: text}
	for _, st := range pipeline {
		st.apply(s)
	}
	return s.text
}

// Steps exposes the ordered step names for documentation and tests.
func Steps() []string {
	names := make([]string, len(pipeline))
	for i, st := range pipeline {
		names[i] = st.name
	}
	return names
}

// =============================================================================
// PLACEHOLDER TABLE
// =============================================================================

// Placeholder tokens are NUL-delimited. NUL cannot survive JSON decoding of
// a backend payload, so the token can never collide with source text.
const placeholderMark = "\x00M"

// protect stashes span in the table and returns its indexed token.
func (s *session) protect(span string) string {
	s.saved = append(s.saved, span)
	return placeholderToken(len(s.saved) - 1)
}

func placeholderToken(i int) string {
	return placeholderMark + strconv.Itoa(i) + "\x00"
}

// stepRestorePlaceholders substitutes every token with its original span,
// each exactly once, as a literal replacement (never re-interpreted as a
// pattern). Restoration walks the table in descending index order: a later
// span may embed an earlier token (the unbalanced-math rule can wrap an
// already-protected span), and descending order re-exposes such tokens
// before their own turn comes.
func stepRestorePlaceholders(s *session) {
	for i := len(s.saved) - 1; i >= 0; i-- {
		s.text = strings.Replace(s.text, placeholderToken(i), s.saved[i], 1)
	}
	s.saved = nil
}
