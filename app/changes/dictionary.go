package changes

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed dictionary.yml
var defaultDictionaryYAML []byte

type rawDictionary struct {
	Hunters []struct {
		Name string `yaml:"name"`
		Role string `yaml:"role"`
	} `yaml:"hunters"`
	Abilities  []string `yaml:"abilities"`
	Categories map[Category]struct {
		Terms    []string `yaml:"terms"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
	Stats    map[Category][]string `yaml:"stats"`
	Fallback []struct {
		Category Category `yaml:"category"`
		Terms    []string `yaml:"terms"`
	} `yaml:"fallback"`
	Types         map[ChangeType][]string `yaml:"types"`
	StrongVerbs   []string                `yaml:"strong_verbs"`
	PatchKeywords []string                `yaml:"patch_keywords"`
}

// Term is a dictionary word compiled for case-insensitive whole-word matching.
type Term struct {
	Text string
	re   *regexp.Regexp
}

func (t Term) In(s string) bool {
	return t.re.MatchString(s)
}

type Hunter struct {
	Term
	Role string
}

type CategoryTerms struct {
	Category Category
	Terms    []Term // dictionary terms, count for confidence
	Keywords []Term // hint-only keywords
}

// CategoryRule maps a predicate to a category, evaluated in list order.
type CategoryRule struct {
	Category Category
	Terms    []Term
}

func (r CategoryRule) Match(s string) bool {
	return anyTerm(r.Terms, s)
}

// TypeRule maps a predicate to a change type, evaluated in list order.
type TypeRule struct {
	Type ChangeType
	re   *regexp.Regexp
}

func (r TypeRule) Match(s string) bool {
	return r.re.MatchString(s)
}

// Dictionary is the immutable reference data the extractor and classifier
// read. Build it once with LoadDictionary or use DefaultDictionary.
type Dictionary struct {
	Hunters       []Hunter
	Abilities     []string
	Categories    []CategoryTerms // in Categories order
	Stats         map[Category][]Term
	Fallback      []CategoryRule
	Types         []TypeRule // fix, buff, nerf, new, rework
	StrongVerbs   []Term
	PatchKeywords []Term
}

// typeOrder is the fixed evaluation order of type inference.
var typeOrder = []ChangeType{TypeFix, TypeBuff, TypeNerf, TypeNew, TypeRework}

var (
	defaultDictionary     *Dictionary
	defaultDictionaryErr  error
	defaultDictionaryOnce sync.Once
)

// DefaultDictionary returns the embedded game dictionary. It panics if the
// embedded document is invalid, which only a broken build can cause.
func DefaultDictionary() *Dictionary {
	defaultDictionaryOnce.Do(func() {
		defaultDictionary, defaultDictionaryErr = LoadDictionary(defaultDictionaryYAML)
	})
	if defaultDictionaryErr != nil {
		panic(fmt.Sprintf("embedded dictionary is invalid: %v", defaultDictionaryErr))
	}
	return defaultDictionary
}

func LoadDictionary(data []byte) (*Dictionary, error) {
	var raw rawDictionary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary YAML: %w", err)
	}

	d := &Dictionary{
		Abilities: raw.Abilities,
		Stats:     make(map[Category][]Term),
	}

	var err error
	for _, h := range raw.Hunters {
		if h.Name == "" {
			return nil, fmt.Errorf("hunter entry without name")
		}
		term, err := newTerm(h.Name)
		if err != nil {
			return nil, err
		}
		d.Hunters = append(d.Hunters, Hunter{Term: term, Role: h.Role})
	}

	for category := range raw.Categories {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category %q", category)
		}
	}

	for _, category := range Categories {
		entry := raw.Categories[category]
		ct := CategoryTerms{Category: category}
		if category == CategoryHunters {
			for _, h := range d.Hunters {
				ct.Terms = append(ct.Terms, h.Term)
			}
		}
		extra, err := newTerms(entry.Terms)
		if err != nil {
			return nil, err
		}
		ct.Terms = append(ct.Terms, extra...)
		if ct.Keywords, err = newTerms(entry.Keywords); err != nil {
			return nil, err
		}
		d.Categories = append(d.Categories, ct)
	}

	for category, words := range raw.Stats {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown stats category %q", category)
		}
		if d.Stats[category], err = newTerms(words); err != nil {
			return nil, err
		}
	}

	for _, rule := range raw.Fallback {
		if !rule.Category.Valid() {
			return nil, fmt.Errorf("unknown fallback category %q", rule.Category)
		}
		terms, err := newTerms(rule.Terms)
		if err != nil {
			return nil, err
		}
		d.Fallback = append(d.Fallback, CategoryRule{Category: rule.Category, Terms: terms})
	}

	for _, changeType := range typeOrder {
		patterns := raw.Types[changeType]
		if len(patterns) == 0 {
			return nil, fmt.Errorf("no keywords for change type %q", changeType)
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(patterns, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid %s keywords: %w", changeType, err)
		}
		d.Types = append(d.Types, TypeRule{Type: changeType, re: re})
	}

	if d.StrongVerbs, err = newTerms(raw.StrongVerbs); err != nil {
		return nil, err
	}
	if d.PatchKeywords, err = newTerms(raw.PatchKeywords); err != nil {
		return nil, err
	}

	return d, nil
}

// Terms returns the dictionary terms and keywords of one category.
func (d *Dictionary) Terms(category Category) CategoryTerms {
	for _, ct := range d.Categories {
		if ct.Category == category {
			return ct
		}
	}
	return CategoryTerms{Category: category}
}

// HasTerm reports whether s contains a dictionary term of the category.
func (d *Dictionary) HasTerm(category Category, s string) bool {
	return anyTerm(d.Terms(category).Terms, s)
}

// Role returns the role tag of a hunter, or "" for unknown names.
func (d *Dictionary) Role(name string) string {
	for _, h := range d.Hunters {
		if strings.EqualFold(h.Text, name) {
			return h.Role
		}
	}
	return ""
}

// IsPatchNote reports whether text mentions any patch keyword.
func (d *Dictionary) IsPatchNote(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range d.PatchKeywords {
		if strings.Contains(lower, strings.ToLower(kw.Text)) {
			return true
		}
	}
	return false
}

func newTerm(word string) (Term, error) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return Term{}, fmt.Errorf("invalid term %q: %w", word, err)
	}
	return Term{Text: word, re: re}, nil
}

func newTerms(words []string) ([]Term, error) {
	terms := make([]Term, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			continue
		}
		term, err := newTerm(w)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func anyTerm(terms []Term, s string) bool {
	for _, t := range terms {
		if t.In(s) {
			return true
		}
	}
	return false
}
