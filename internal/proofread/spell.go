package proofread

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sajari/fuzzy"
)

var wordPattern = regexp.MustCompile(`\b[a-zA-Z]+\b`)

// maxEdits bounds how far a candidate may be from the misspelled word.
const maxEdits = 2

// SpellChecker flags words missing from a word list and proposes the
// closest known words. It has no grammar awareness.
type SpellChecker struct {
	model *fuzzy.Model
	rank  map[string]int
}

// NewSpellChecker builds a checker from words in preference order. Earlier
// words rank higher among equally distant candidates.
func NewSpellChecker(words ...[]string) *SpellChecker {
	s := &SpellChecker{model: fuzzy.NewModel(), rank: make(map[string]int)}
	s.model.SetThreshold(1)
	s.model.SetDepth(maxEdits)

	var terms []string
	for _, list := range words {
		for _, w := range list {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			if _, ok := s.rank[w]; !ok {
				s.rank[w] = len(s.rank)
				terms = append(terms, w)
			}
		}
	}
	s.model.Train(terms)
	return s
}

// LoadSpellChecker reads a one-word-per-line dictionary and adds the
// vocabulary's accepted words.
func LoadSpellChecker(path string, vocab *Vocabulary) (*SpellChecker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	return NewSpellChecker(words, vocab.SpellWords()), nil
}

// Known reports whether word is in the list, case-insensitively.
func (s *SpellChecker) Known(word string) bool {
	_, ok := s.rank[strings.ToLower(word)]
	return ok
}

// Candidates returns the known words at the smallest edit distance from
// word, up to two edits, best ranked first.
func (s *SpellChecker) Candidates(word string) []string {
	word = strings.ToLower(word)
	best := maxEdits + 1
	var out []string
	for _, c := range s.model.Suggestions(word, true) {
		if c == word {
			continue
		}
		if _, ok := s.rank[c]; !ok {
			continue
		}
		d := fuzzy.Levenshtein(&word, &c)
		switch {
		case d < best:
			best = d
			out = []string{c}
		case d == best:
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.rank[out[i]] < s.rank[out[j]] })
	return out
}

// Check reports each distinct unknown word once and replaces its first
// occurrence with the best candidate. Words of two letters or fewer and
// all-caps words are treated as abbreviations.
func (s *SpellChecker) Check(text string) (string, []Diagnostic) {
	corrected := text
	seen := make(map[string]bool)
	var diags []Diagnostic
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if seen[word] {
			continue
		}
		seen[word] = true
		if len(word) <= 2 || isAllUpper(word) || s.Known(word) {
			continue
		}
		candidates := s.Candidates(word)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		if len(candidates) > 3 {
			candidates = candidates[:3]
		}
		diags = append(diags, Diagnostic{
			Message:     fmt.Sprintf("Possible spelling error: '%s'", word),
			Context:     word,
			Suggestions: candidates,
			RuleID:      RuleSpelling,
			Offset:      loc[0],
			Length:      loc[1] - loc[0],
		})
		if unicode.IsUpper(rune(word[0])) {
			best = strings.ToUpper(best[:1]) + best[1:]
		}
		corrected = replaceFirstWord(corrected, word, best)
	}
	return corrected, diags
}

func replaceFirstWord(text, word, replacement string) string {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + replacement + text[loc[1]:]
}

func isAllUpper(word string) bool {
	for _, r := range word {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
