package proofread

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// RuleSpelling identifies diagnostics from the local spell checker.
const RuleSpelling = "SPELLING"

// ErrNoGrammarChecker is the grammar failure reported by a Corrector built
// without a GrammarChecker.
var ErrNoGrammarChecker = errors.New("no grammar checker configured")

const (
	maxSuggestions = 3
	contextWidth   = 10
)

// cosmeticRules are grammar rules too picky for job notes.
var cosmeticRules = set("WHITESPACE_RULE", "UPPERCASE_SENTENCE_START")

var consonantRun = regexp.MustCompile(`^[bcdfghjklmnpqrstvwxz]{3,}`)

// Diagnostic is one reported issue. Offset and Length are byte positions
// in the text the issue was found in.
type Diagnostic struct {
	Message     string   `json:"message"`
	Context     string   `json:"context"`
	Suggestions []string `json:"suggestions"`
	RuleID      string   `json:"rule_id"`
	Offset      int      `json:"offset"`
	Length      int      `json:"length"`
}

// Corrector runs the correction pipeline: curated corrections, remote
// grammar check, filtering, then application of the surviving fixes.
type Corrector struct {
	Vocabulary *Vocabulary
	Grammar    GrammarChecker
	// Spell is used when the grammar service fails. Nil disables the
	// fallback.
	Spell  *SpellChecker
	Logger zerolog.Logger
}

// Check returns the corrected text and the diagnostics in reading order.
func (c *Corrector) Check(ctx context.Context, text string) (string, []Diagnostic, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil, nil
	}
	vocab := c.Vocabulary
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	pre := vocab.Correct(text)

	var matches []Match
	err := ErrNoGrammarChecker
	if c.Grammar != nil {
		matches, err = c.Grammar.Check(ctx, pre)
	}
	if err != nil {
		if c.Spell == nil {
			return text, nil, fmt.Errorf("grammar check: %w", err)
		}
		c.Logger.Warn().Err(err).Msg("grammar service unavailable, falling back to spell check")
		corrected, diags := c.Spell.Check(pre)
		return corrected, diags, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })

	corrected := pre
	limit := len(pre)
	var diags []Diagnostic
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if m.Offset < 0 || m.Offset+m.Length > limit {
			continue
		}
		suggestions, ok := filterMatch(vocab, pre, m)
		if !ok {
			continue
		}
		diags = append(diags, Diagnostic{
			Message:     m.Message,
			Context:     snippet(pre, m.Offset, m.Offset+m.Length),
			Suggestions: suggestions,
			RuleID:      m.RuleID,
			Offset:      m.Offset,
			Length:      m.Length,
		})
		corrected = corrected[:m.Offset] + suggestions[0] + corrected[m.Offset+m.Length:]
		limit = m.Offset
	}
	reverse(diags)
	return corrected, diags, nil
}

// filterMatch returns the suggestions to offer for m, or false when the
// match should be dropped.
func filterMatch(vocab *Vocabulary, text string, m Match) ([]string, bool) {
	if cosmeticRules[m.RuleID] {
		return nil, false
	}
	flagged := strings.ToLower(strings.TrimSpace(text[m.Offset : m.Offset+m.Length]))
	if vocab.IsTradeTerm(flagged) || vocab.IsProtected(flagged) {
		return nil, false
	}

	suggestions := m.Replacements
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	suggestions = append([]string(nil), suggestions...)

	if vocab.HasRejections(flagged) {
		suggestions = keep(suggestions, func(s string) bool { return !vocab.Rejects(flagged, s) })
		if len(suggestions) == 0 {
			return nil, false
		}
	}
	if !strings.HasSuffix(flagged, "'s") {
		suggestions = keep(suggestions, func(s string) bool { return !strings.Contains(s, "'s") })
		if len(suggestions) == 0 {
			return nil, false
		}
	}
	if commonWords[flagged] {
		return nil, false
	}
	suggestions = keep(suggestions, func(s string) bool { return !badReplacements[strings.ToLower(s)] })
	if len(suggestions) == 0 {
		return nil, false
	}
	suggestions = keep(suggestions, func(s string) bool { return !consonantRun.MatchString(strings.ToLower(s)) })
	if len(suggestions) == 0 {
		return nil, false
	}

	if custom, ok := vocab.CorrectionFor(flagged); ok {
		rest := keep(suggestions, func(s string) bool { return !strings.EqualFold(s, custom) })
		suggestions = append([]string{custom}, rest...)
	}
	return suggestions, true
}

func keep(in []string, pred func(string) bool) []string {
	out := in[:0]
	for _, s := range in {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

// snippet returns up to contextWidth bytes either side of [start, end),
// widened to rune boundaries.
func snippet(text string, start, end int) string {
	from := start - contextWidth
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + contextWidth
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
