package changes

import (
	"regexp"
	"strconv"
	"strings"
)

type Detector string

const (
	DetectorDelta   Detector = "delta"
	DetectorEntity  Detector = "entity"
	DetectorAbility Detector = "ability"
	DetectorKeyword Detector = "keyword"
	DetectorVault   Detector = "vault"
	DetectorMode    Detector = "mode"
)

// Hint is one detector's vote for a category.
type Hint struct {
	Category Category
	Detector Detector
	Term     string
}

// Delta is an explicit before/after numeric transition.
type Delta struct {
	From    float64
	To      float64
	Percent bool
}

// Extraction holds every detector result for one sentence-like unit. A unit
// may hint several categories; choosing one is the classifier's job.
type Extraction struct {
	Sentence      string
	Hints         []Hint
	Entities      []string
	Abilities     []string
	Deltas        []Delta
	HasTransition bool
}

// Counts returns the number of hints per category.
func (x Extraction) Counts() map[Category]int {
	counts := make(map[Category]int)
	for _, h := range x.Hints {
		counts[h.Category]++
	}
	return counts
}

func (x Extraction) HasHints() bool {
	return len(x.Hints) > 0
}

func (x Extraction) hasTerm(category Category, term string) bool {
	for _, h := range x.Hints {
		if h.Category == category && strings.EqualFold(h.Term, term) {
			return true
		}
	}
	return false
}

// A unit such as s, sec or ° may trail the first number of a transition.
const (
	number     = `(\d+(?:\.\d+)?)`
	transition = `\s*(?:→|->|>>>|=>|\bto\b)\s*`
)

var (
	percentDeltaRe = regexp.MustCompile(number + `\s*%` + transition + number + `\s*%`)
	deltaRe        = regexp.MustCompile(`(?i)` + number + `\s*(?:[a-z°/]+\s*)?` + transition + number)
	vaultRe        = regexp.MustCompile(`(?i)\bvaults?\b.*?\b(?:guarantee|drop|contain|spawn)`)
	modeRe         = regexp.MustCompile(`(?i)\b(?:arena|breach|ranked|casual|warmup|practice|tutorial)\b`)
	abilityRefRe   = regexp.MustCompile(`\(([A-Za-z]+)\)`)
)

type Extractor struct {
	dict *Dictionary
}

func NewExtractor(dict *Dictionary) *Extractor {
	return &Extractor{dict: dict}
}

// Run applies every detector to the unit. It never fails; a unit with no
// signal yields an Extraction without hints.
func (e *Extractor) Run(unit string) Extraction {
	x := Extraction{Sentence: unit}
	if strings.TrimSpace(unit) == "" {
		return x
	}

	e.detectDeltas(unit, &x)
	e.detectEntities(unit, &x)
	e.detectAbilities(unit, &x)
	e.detectKeywords(unit, &x)

	// a word already counted as a dictionary keyword only votes once
	if vaultRe.MatchString(unit) && !x.hasTerm(CategoryEquipment, "vault") {
		x.Hints = append(x.Hints, Hint{Category: CategoryEquipment, Detector: DetectorVault, Term: "vault"})
	}
	if m := strings.ToLower(modeRe.FindString(unit)); m != "" && !x.hasTerm(CategoryModes, m) {
		x.Hints = append(x.Hints, Hint{Category: CategoryModes, Detector: DetectorMode, Term: m})
	}

	return x
}

func (e *Extractor) detectDeltas(unit string, x *Extraction) {
	for _, m := range percentDeltaRe.FindAllStringSubmatch(unit, -1) {
		x.Deltas = append(x.Deltas, Delta{From: parseNumber(m[1]), To: parseNumber(m[2]), Percent: true})
	}
	if len(x.Deltas) == 0 {
		for _, m := range deltaRe.FindAllStringSubmatch(unit, -1) {
			x.Deltas = append(x.Deltas, Delta{From: parseNumber(m[1]), To: parseNumber(m[2])})
		}
	}
	if len(x.Deltas) == 0 {
		return
	}
	x.HasTransition = true

	// a transition only hints a category when the stat it moves is named
	for _, category := range Categories {
		for _, stat := range e.dict.Stats[category] {
			if stat.In(unit) {
				x.Hints = append(x.Hints, Hint{Category: category, Detector: DetectorDelta, Term: stat.Text})
				break
			}
		}
	}
}

func (e *Extractor) detectEntities(unit string, x *Extraction) {
	for _, h := range e.dict.Hunters {
		if h.In(unit) {
			x.Entities = append(x.Entities, h.Text)
			x.Hints = append(x.Hints, Hint{Category: CategoryHunters, Detector: DetectorEntity, Term: h.Text})
		}
	}
}

func (e *Extractor) detectAbilities(unit string, x *Extraction) {
	for _, m := range abilityRefRe.FindAllStringSubmatch(unit, -1) {
		for _, key := range e.dict.Abilities {
			if m[1] == key || (len(key) > 1 && strings.EqualFold(m[1], key)) {
				x.Abilities = append(x.Abilities, key)
				x.Hints = append(x.Hints, Hint{Category: CategoryHunters, Detector: DetectorAbility, Term: key})
				break
			}
		}
	}
}

func (e *Extractor) detectKeywords(unit string, x *Extraction) {
	for _, ct := range e.dict.Categories {
		terms := ct.Terms
		if ct.Category == CategoryHunters {
			// names are already counted by the entity detector
			terms = terms[len(e.dict.Hunters):]
		}
		for _, group := range [][]Term{terms, ct.Keywords} {
			for _, t := range group {
				if t.In(unit) {
					x.Hints = append(x.Hints, Hint{Category: ct.Category, Detector: DetectorKeyword, Term: t.Text})
				}
			}
		}
	}
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
