package changes

// Parser runs the heuristic pipeline: normalize, extract, classify, rank.
type Parser struct {
	dict           *Dictionary
	extractor      *Extractor
	classifier     *Classifier
	minUnitLength  int
	maxPerCategory int
	threshold      float64
}

type Option func(*Parser)

func WithMinUnitLength(n int) Option {
	return func(p *Parser) { p.minUnitLength = n }
}

func WithMaxPerCategory(n int) Option {
	return func(p *Parser) { p.maxPerCategory = n }
}

func WithThreshold(t float64) Option {
	return func(p *Parser) { p.threshold = t }
}

// NewParser builds a parser over dict, or over the embedded dictionary when
// dict is nil.
func NewParser(dict *Dictionary, opts ...Option) *Parser {
	if dict == nil {
		dict = DefaultDictionary()
	}
	p := &Parser{
		dict:           dict,
		extractor:      NewExtractor(dict),
		classifier:     NewClassifier(dict),
		minUnitLength:  DefaultMinUnitLength,
		maxPerCategory: DefaultMaxPerCategory,
		threshold:      DefaultThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Dictionary() *Dictionary {
	return p.dict
}

// Parse extracts categorized changes from raw markup or plain text. Empty or
// signal-free input yields every category present and empty.
func (p *Parser) Parse(raw string) CategorizedChanges {
	result := NewCategorizedChanges()

	pending := make(map[Category][]Candidate)
	for unit := range Units(StripMarkup(raw), p.minUnitLength) {
		candidate, ok := p.classifier.Run(p.extractor.Run(unit))
		if !ok {
			continue
		}
		pending[candidate.Category] = append(pending[candidate.Category], candidate)
	}

	for _, category := range Categories {
		result[category] = Rank(pending[category], p.maxPerCategory, p.threshold)
	}
	return result
}
