package proofread

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grammarFunc func(ctx context.Context, text string) ([]Match, error)

func (f grammarFunc) Check(ctx context.Context, text string) ([]Match, error) { return f(ctx, text) }

// fixes reports every occurrence of each key with the mapped suggestions.
func fixes(m map[string][]string, rule string) grammarFunc {
	return func(_ context.Context, text string) ([]Match, error) {
		var out []Match
		for word, suggestions := range m {
			from := 0
			for {
				i := strings.Index(text[from:], word)
				if i < 0 {
					break
				}
				out = append(out, Match{
					Message:      "Possible spelling mistake found.",
					Offset:       from + i,
					Length:       len(word),
					Replacements: suggestions,
					RuleID:       rule,
				})
				from += i + len(word)
			}
		}
		return out, nil
	}
}

func newCorrector(g GrammarChecker) *Corrector {
	return &Corrector{Vocabulary: DefaultVocabulary(), Grammar: g, Logger: zerolog.Nop()}
}

func TestCorrectPreservesCase(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, "The job", v.Correct("Teh job"))
	assert.Equal(t, "the job", v.Correct("teh job"))
	assert.Equal(t, "for the job", v.Correct("for teh job"), "whole words only")
	assert.Equal(t, "Checked Archerfield site", v.Correct("Checked archefield site"))
	assert.Equal(t, "And I tested it", v.Correct("Andi tested it"))
	assert.Equal(t, "It didn't trip", v.Correct("It did'nt trip"))
}

func TestCheckTradeTermProducesNoDiagnostics(t *testing.T) {
	g := grammarFunc(func(_ context.Context, text string) ([]Match, error) {
		return []Match{{Message: "Unknown word", Offset: 0, Length: len(text), Replacements: []string{"GP", "GOP"}, RuleID: "MORFOLOGIK_RULE_EN_AU"}}, nil
	})
	c := newCorrector(g)
	for _, text := range []string{"GPO", "gpo", "Gpo"} {
		corrected, diags, err := c.Check(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, diags, text)
		assert.Equal(t, text, corrected)
	}
}

func TestCheckAppliesInReverseReportsInReadingOrder(t *testing.T) {
	c := newCorrector(fixes(map[string][]string{
		"Instaled": {"Installed"},
		"lite":     {"light", "lit"},
		"replased": {"replaced"},
	}, "MORFOLOGIK_RULE_EN_AU"))

	corrected, diags, err := c.Check(context.Background(), "Instaled new lite and replased fuse")
	require.NoError(t, err)
	assert.Equal(t, "Installed new light and replaced fuse", corrected)
	require.Len(t, diags, 3)
	assert.Equal(t, 0, diags[0].Offset)
	assert.Equal(t, []string{"light", "lit"}, diags[1].Suggestions)
	assert.Less(t, diags[1].Offset, diags[2].Offset)
	assert.Equal(t, "Instaled new lite ", diags[0].Context)
}

func TestCheckFilters(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		flagged     string
		rule        string
		suggestions []string
		want        []string
	}{
		{name: "cosmetic rule", text: "Job  done", flagged: "  ", rule: "WHITESPACE_RULE", suggestions: []string{" "}},
		{name: "protected word", text: "Went into roof", flagged: "into", suggestions: []string{"in to"}},
		{name: "possessive added", text: "Reset breakers", flagged: "breakers", suggestions: []string{"breaker's"}},
		{name: "no suggestions", text: "Fitted zorbs", flagged: "zorbs"},
		{name: "common word", text: "They are fine", flagged: "are", suggestions: []string{"our"}},
		{name: "bad replacement", text: "Test fot leaks", flagged: "fot", suggestions: []string{"for", "of"}},
		{name: "consonant run", text: "Did smth", flagged: "smth", suggestions: []string{"smth", "sth"}},
		{name: "capped at three", text: "Colr match", flagged: "Colr", suggestions: []string{"Color", "Colour", "Coir", "Cola"}, want: []string{"Color", "Colour", "Coir"}},
		{name: "possessive kept elsewhere", text: "Reset breakers", flagged: "breakers", suggestions: []string{"breaker's", "brakers"}, want: []string{"brakers"}},
		{name: "curated correction first", text: "New lenses", flagged: "lenses", suggestions: []string{"lens", "Lenses"}, want: []string{"lenses", "lens"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.rule
			if rule == "" {
				rule = "MORFOLOGIK_RULE_EN_AU"
			}
			c := newCorrector(fixes(map[string][]string{tc.flagged: tc.suggestions}, rule))
			_, diags, err := c.Check(context.Background(), tc.text)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Empty(t, diags)
				return
			}
			require.Len(t, diags, 1)
			assert.Equal(t, tc.want, diags[0].Suggestions)
		})
	}
}

func TestCheckRejectionsFromOverlay(t *testing.T) {
	v := buildVocabulary(Overlay{RejectSuggestions: map[string][]string{"colour": {"color"}}})
	c := &Corrector{Vocabulary: v, Grammar: fixes(map[string][]string{"colour": {"color"}}, "MORFOLOGIK_RULE_EN_AU"), Logger: zerolog.Nop()}
	corrected, diags, err := c.Check(context.Background(), "Matched colour")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "Matched colour", corrected)
}

func TestCheckSkipsOverlappingMatches(t *testing.T) {
	g := grammarFunc(func(_ context.Context, text string) ([]Match, error) {
		return []Match{
			{Offset: 0, Length: 6, Replacements: []string{"alpha"}, RuleID: "R1"},
			{Offset: 3, Length: 5, Replacements: []string{"ok"}, RuleID: "R2"},
		}, nil
	})
	corrected, diags, err := newCorrector(g).Check(context.Background(), "abcdef ghij")
	require.NoError(t, err)
	assert.Equal(t, "abcokhij", corrected)
	require.Len(t, diags, 1)
	assert.Equal(t, "R2", diags[0].RuleID)
}

func TestCheckIsIdempotent(t *testing.T) {
	c := newCorrector(fixes(map[string][]string{"lite": {"light"}, "teh": {"tea"}}, "MORFOLOGIK_RULE_EN_AU"))
	once, diags, err := c.Check(context.Background(), "Teh new lite works")
	require.NoError(t, err)
	assert.Equal(t, "The new light works", once)
	assert.Len(t, diags, 1)

	twice, diags, err := c.Check(context.Background(), once)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, once, twice)
}

func TestCheckEmptyTextSkipsGrammar(t *testing.T) {
	called := false
	c := newCorrector(grammarFunc(func(context.Context, string) ([]Match, error) {
		called = true
		return nil, nil
	}))
	corrected, diags, err := c.Check(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", corrected)
	assert.Empty(t, diags)
	assert.False(t, called)
}

func TestCheckFallsBackToSpellCheck(t *testing.T) {
	down := grammarFunc(func(context.Context, string) ([]Match, error) {
		return nil, errors.New("languagetool: http status 503")
	})
	c := newCorrector(down)
	c.Spell = NewSpellChecker([]string{"replaced", "the", "tap"})

	corrected, diags, err := c.Check(context.Background(), "Replaced teh tapp")
	require.NoError(t, err)
	assert.Equal(t, "Replaced the tap", corrected)
	require.Len(t, diags, 1)
	assert.Equal(t, RuleSpelling, diags[0].RuleID)
	assert.Equal(t, []string{"tap"}, diags[0].Suggestions)
}

func TestCheckWithoutGrammarCheckerUsesSpellCheck(t *testing.T) {
	c := newCorrector(nil)
	c.Spell = NewSpellChecker([]string{"replaced", "the", "tap"})

	corrected, diags, err := c.Check(context.Background(), "Replaced teh tapp")
	require.NoError(t, err)
	assert.Equal(t, "Replaced the tap", corrected)
	require.Len(t, diags, 1)

	c.Spell = nil
	corrected, _, err = c.Check(context.Background(), "Teh job")
	require.ErrorIs(t, err, ErrNoGrammarChecker)
	assert.Equal(t, "Teh job", corrected)
}

func TestCheckSurfacesGrammarErrorWithoutFallback(t *testing.T) {
	boom := errors.New("connection refused")
	c := newCorrector(grammarFunc(func(context.Context, string) ([]Match, error) { return nil, boom }))
	corrected, _, err := c.Check(context.Background(), "Teh job")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "Teh job", corrected)
}
