package proofread

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Correction maps a known misspelling to its replacement.
type Correction struct {
	From string
	To   string
}

var defaultTradeTerms = []string{
	// electrical
	"gpo", "gpos", "rcbo", "rcd", "mcb", "db", "dbs", "led", "leds",
	"estop", "e-stop", "thermalscan", "submain", "submains",
	"busbar", "busbars", "switchgear", "powerpoint", "powerpoints",
	"reterminate", "reterminated", "highbay", "breezeway",
	"wifi", "3ph", "1ph", "fitoff", "fit-off", "lunchroom",
	// brands
	"makita", "dewalt", "metabo", "bosch", "hilti", "milwaukee",
	"ryobi", "festool", "hikoki", "hitachi", "telstra",
	"haas", "hass",
	// locations
	"wacol", "archerfield", "richlands", "rochedale", "stapylton",
	"karalee", "bremer", "redbank", "buranda",
	// trade
	"fluoro", "fluoros", "fluro", "callout", "callouts",
	"donga", "dongas", "spartan", "reece", "angus",
	"power point",
}

var defaultCorrections = []Correction{
	{"lense", "lens"},
	{"lenses", "lenses"},
	{"archefield", "Archerfield"},
	{"hass", "Haas"},
	{"imput", "input"},
	{"prosessor", "processor"},
	{"conection", "connection"},
	{"dissasemble", "disassemble"},
	{"recieving", "receiving"},
	{"outler", "outlet"},
	{"wasnt", "wasn't"},
	{"didnt", "didn't"},
	{"did'nt", "didn't"},
	{"couldnt", "couldn't"},
	{"wouldnt", "wouldn't"},
	{"shouldnt", "shouldn't"},
	{"isnt", "isn't"},
	{"arent", "aren't"},
	{"werent", "weren't"},
	{"hasnt", "hasn't"},
	{"havent", "haven't"},
	{"hadnt", "hadn't"},
	{"dont", "don't"},
	{"wont", "won't"},
	{"cant", "can't"},
	// usually "it is" in job notes
	{"its", "it's"},
	{"andi", "and I"},
	{"thier", "their"},
	{"teh", "the"},
	{"taht", "that"},
	{"wiht", "with"},
	{"adn", "and"},
	{"hte", "the"},
	{"fo", "of"},
	{"nad", "and"},
	{"tiem", "time"},
	{"jsut", "just"},
	{"nto", "not"},
	{"ahve", "have"},
	{"waht", "what"},
	{"shoudl", "should"},
	{"woudl", "would"},
	{"coudl", "could"},
}

var defaultRejections = map[string][]string{
	"powerpoint":  {"PowerPoint"},
	"power point": {"PowerPoint"},
	"haas":        {"has", "mass", "pass"},
	"hass":        {"has", "mass", "pass"},
	"lense":       {"sense", "dense", "lease"},
	"archefield":  {"Wakefield", "archfiend"},
}

var defaultProtected = []string{
	"into", "onto", "for", "of", "the", "and", "or", "to", "in", "on",
	"at", "by", "with", "from", "as", "is", "it", "be", "was", "were",
	"been", "being", "have", "has", "had", "do", "does", "did", "will",
	"would", "could", "should", "may", "might", "must", "shall", "can",
	"go", "went", "gone", "follow", "followed", "following",
	"circuits", "circuit", "found", "find",
	"before", "after", "tightened", "tight",
}

var commonWords = set(
	"for", "of", "or", "to", "the", "and", "a", "an", "in", "on", "at",
	"by", "with", "from", "as", "is", "it", "be", "was", "were", "are",
	"into", "onto", "follow", "followed", "following", "go", "went",
)

var badReplacements = set(
	"of", "or", "for", "to", "not", "knot", "on", "an", "in", "at",
	"goo", "allow", "fellow", "flow",
	"ofr", "ofllow", "fro", "fo", "ot", "ont", "nto",
	"go not", "goo not",
)

// spellExtras are accepted by the local spell checker on top of the
// dictionary and the trade terms. Contraction stems cover the fragments
// left when words are split on apostrophes.
var spellExtras = []string{
	"switchboard", "switchboards", "powerpoint", "powerpoints", "rcbo", "rcd", "mcb",
	"gpo", "gpos", "led", "leds", "downlight", "downlights", "db", "dbs",
	"batten", "battens", "fluoro", "fluoros", "fluorescent", "conduit", "conduits",
	"trunking", "cabling", "rewire", "rewiring", "submain", "submains",
	"isolator", "isolators", "contactor", "contactors", "breaker", "breakers",
	"switchgear", "busbar", "busbars", "earthing", "bonding", "spitfire",
	"weatherproof", "recessed", "ducting", "circuiting", "rewired",
	"estop", "e-stop", "thermalscan", "reterminate",
	"highbay", "high-bay", "fluro", "wifi", "wi-fi",
	"makita", "dewalt", "metabo", "bosch", "hilti", "milwaukee", "ryobi",
	"festool", "hikoki", "hitachi", "telstra",
	"wacol", "archerfield", "richlands", "rochedale", "stapylton",
	"karalee", "donga", "dongas", "bremer", "redbank", "buranda",
	"grinder", "grinders", "sandblast", "sandblasting",
	"callout", "callouts", "aroflo", "spartan",
	"lunchroom", "fitoff", "fit-off", "reece",
	"couldn", "wouldn", "shouldn", "didn", "doesn", "isn", "aren", "weren",
	"hasn", "haven", "hadn", "won", "don", "can", "ll", "ve", "re",
}

// Vocabulary is the set of curated word tables the corrector consults.
// It is not modified after construction and is safe for concurrent use.
type Vocabulary struct {
	trade       map[string]bool
	protected   map[string]bool
	rejections  map[string]map[string]bool
	corrections []compiledCorrection
	byWord      map[string]string
	spellExtras []string
}

type compiledCorrection struct {
	Correction
	re *regexp.Regexp
}

// Overlay is the YAML vocabulary file. Entries extend or replace the
// built-in tables.
type Overlay struct {
	TradeTerms        []string            `yaml:"trade_terms"`
	Corrections       map[string]string   `yaml:"corrections"`
	RejectSuggestions map[string][]string `yaml:"reject_suggestions"`
	ProtectedWords    []string            `yaml:"protected_words"`
}

// DefaultVocabulary returns the built-in tables.
func DefaultVocabulary() *Vocabulary {
	return buildVocabulary(Overlay{})
}

// LoadVocabulary returns the built-in tables merged with the overlay file
// at path. An empty path yields the defaults.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return buildVocabulary(o), nil
}

func buildVocabulary(o Overlay) *Vocabulary {
	v := &Vocabulary{
		trade:      set(append(append([]string{}, defaultTradeTerms...), lowerAll(o.TradeTerms)...)...),
		protected:  set(append(append([]string{}, defaultProtected...), lowerAll(o.ProtectedWords)...)...),
		rejections: make(map[string]map[string]bool),
		byWord:     make(map[string]string),
	}
	for word, list := range defaultRejections {
		v.rejections[word] = set(list...)
	}
	for word, list := range o.RejectSuggestions {
		word = strings.ToLower(word)
		if v.rejections[word] == nil {
			v.rejections[word] = make(map[string]bool)
		}
		for _, s := range list {
			v.rejections[word][s] = true
		}
	}

	corrections := append([]Correction{}, defaultCorrections...)
	extra := make([]string, 0, len(o.Corrections))
	for from := range o.Corrections {
		extra = append(extra, from)
	}
	sort.Strings(extra)
	for _, from := range extra {
		to := o.Corrections[from]
		from = strings.ToLower(strings.TrimSpace(from))
		if from == "" || to == "" {
			continue
		}
		replaced := false
		for i := range corrections {
			if corrections[i].From == from {
				corrections[i].To = to
				replaced = true
			}
		}
		if !replaced {
			corrections = append(corrections, Correction{From: from, To: to})
		}
	}
	for _, c := range corrections {
		v.corrections = append(v.corrections, compiledCorrection{
			Correction: c,
			re:         regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(c.From) + `\b`),
		})
		v.byWord[c.From] = c.To
	}

	v.spellExtras = append(append([]string{}, spellExtras...), lowerAll(o.TradeTerms)...)
	return v
}

// IsTradeTerm reports whether the lowercased token is trade vocabulary.
func (v *Vocabulary) IsTradeTerm(word string) bool { return v.trade[word] }

// IsProtected reports whether the lowercased token must never be changed.
func (v *Vocabulary) IsProtected(word string) bool { return v.protected[word] }

// Rejects reports whether suggestion is known to be wrong for word.
func (v *Vocabulary) Rejects(word, suggestion string) bool {
	return v.rejections[word][suggestion]
}

// HasRejections reports whether word has a rejection list.
func (v *Vocabulary) HasRejections(word string) bool {
	_, ok := v.rejections[word]
	return ok
}

// CorrectionFor returns the curated replacement for a lowercased token.
func (v *Vocabulary) CorrectionFor(word string) (string, bool) {
	to, ok := v.byWord[word]
	return to, ok
}

// Corrections lists the curated corrections in application order.
func (v *Vocabulary) Corrections() []Correction {
	out := make([]Correction, len(v.corrections))
	for i, c := range v.corrections {
		out[i] = c.Correction
	}
	return out
}

// SpellWords returns the extra words the local spell checker accepts.
func (v *Vocabulary) SpellWords() []string {
	out := make([]string, 0, len(v.spellExtras)+len(v.trade))
	out = append(out, v.spellExtras...)
	for w := range v.trade {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Correct applies every curated correction as a whole-word,
// case-insensitive replacement. A correction starting lowercase is
// capitalised when the matched token started uppercase.
func (v *Vocabulary) Correct(text string) string {
	for _, c := range v.corrections {
		text = c.re.ReplaceAllStringFunc(text, func(match string) string {
			return matchCase(match, c.To)
		})
	}
	return text
}

func matchCase(original, correction string) string {
	first, _ := utf8.DecodeRuneInString(original)
	cFirst, size := utf8.DecodeRuneInString(correction)
	if unicode.IsUpper(first) && unicode.IsLower(cFirst) {
		return string(unicode.ToUpper(cFirst)) + correction[size:]
	}
	return correction
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}
