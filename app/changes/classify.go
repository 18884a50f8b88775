package changes

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	BaseConfidence        = 0.5
	DigitBonus            = 0.2
	TermBonus             = 0.3
	MinConfidence         = 0.3
	MinSignificantLength  = 15
	DefaultMaxPerCategory = 10
	MaxDescriptionLength  = 100
)

var (
	digitRe         = regexp.MustCompile(`\d`)
	leadingBulletRe = regexp.MustCompile(`^\s*[-•*]\s*`)
	leadingPunctRe  = regexp.MustCompile(`^[:\-\s]*`)
)

// Candidate is a scored entry waiting for per-category ranking.
type Candidate struct {
	Category Category
	Entry    ChangeEntry
	Original string
}

type Classifier struct {
	dict *Dictionary
}

func NewClassifier(dict *Dictionary) *Classifier {
	return &Classifier{dict: dict}
}

// Run turns one extraction into at most one candidate. Units that fail the
// significance filter yield ok == false.
func (c *Classifier) Run(x Extraction) (Candidate, bool) {
	if !c.IsSignificant(x.Sentence) {
		return Candidate{}, false
	}

	category := c.ResolveCategory(x)
	description := CleanDescription(x.Sentence)
	if description == "" {
		return Candidate{}, false
	}

	return Candidate{
		Category: category,
		Original: x.Sentence,
		Entry: ChangeEntry{
			Description: description,
			Type:        c.InferType(x.Sentence),
			Confidence:  c.Confidence(x.Sentence, category),
			Source:      SourceHeuristic,
		},
	}, true
}

// ResolveCategory picks the category with the most hints. Ties go to the
// earlier entry of Categories. Without hints the fallback rules decide and
// systems is the default.
func (c *Classifier) ResolveCategory(x Extraction) Category {
	counts := x.Counts()
	best, bestCount := CategorySystems, 0
	for _, category := range Categories {
		if counts[category] > bestCount {
			best, bestCount = category, counts[category]
		}
	}
	if bestCount > 0 {
		return best
	}

	for _, rule := range c.dict.Fallback {
		if rule.Match(x.Sentence) {
			return rule.Category
		}
	}
	return CategorySystems
}

// InferType evaluates the type rules in order; the first match wins. Fix
// markers come first so a labelled bug fix is never read as a buff or nerf.
func (c *Classifier) InferType(sentence string) ChangeType {
	for _, rule := range c.dict.Types {
		if rule.Match(sentence) {
			return rule.Type
		}
	}
	return TypeChange
}

// IsSignificant drops narrative filler: the unit must be long enough and
// carry a number or a change verb.
func (c *Classifier) IsSignificant(sentence string) bool {
	if utf8.RuneCountInString(sentence) <= MinSignificantLength {
		return false
	}
	if digitRe.MatchString(sentence) {
		return true
	}
	if anyTerm(c.dict.StrongVerbs, sentence) {
		return true
	}
	// fix markers are always change verbs
	return len(c.dict.Types) > 0 && c.dict.Types[0].Match(sentence)
}

// Confidence is 0.5, plus 0.2 for any digit, plus 0.3 for a dictionary term
// of the category, capped at 1.0.
func (c *Classifier) Confidence(sentence string, category Category) float64 {
	confidence := BaseConfidence
	if digitRe.MatchString(sentence) {
		confidence += DigitBonus
	}
	if c.dict.HasTerm(category, sentence) {
		confidence += TermBonus
	}
	return min(confidence, 1.0)
}

// Rank orders one category's candidates by confidence, drops weak and
// near-duplicate entries and truncates to limit.
func Rank(candidates []Candidate, limit int, threshold float64) []ChangeEntry {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		return cmp.Compare(b.Entry.Confidence, a.Entry.Confidence)
	})

	out := make([]ChangeEntry, 0, min(len(sorted), limit))
	for _, candidate := range sorted {
		if len(out) >= limit {
			break
		}
		if candidate.Entry.Confidence <= MinConfidence {
			continue
		}
		if Contains(out, candidate.Entry.Description, threshold) {
			continue
		}
		out = append(out, candidate.Entry)
	}
	return out
}

// CleanDescription strips list markers and leading punctuation, capitalizes
// the first letter and truncates long text at a word boundary.
func CleanDescription(sentence string) string {
	s := leadingBulletRe.ReplaceAllString(sentence, "")
	s = leadingPunctRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]

	return truncate(s, MaxDescriptionLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit-3])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "..."
}
