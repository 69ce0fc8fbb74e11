package document

import (
	"fmt"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// Classification is the keyword evidence found in one text.
type Classification struct {
	Detected           Type
	HasMinimumText     bool
	HasDocumentKeyword bool
	// MatchedKeywords lists type and generic hits, folded. Diagnostic only.
	MatchedKeywords []string
	// Language is an ISO 639-3 guess, empty when unreliable. Diagnostic only.
	Language string
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	minTextLength int
	primary       map[string]struct{}
	secondary     map[string]struct{}
	typeMatcher   *keywordMatcher
	generic       *keywordMatcher
}

// NewClassifier builds the two keyword automata from cfg.
func NewClassifier(cfg Config) (*Classifier, error) {
	typeKeywords := append(append([]string{}, cfg.PrimaryKeywords...), cfg.SecondaryKeywords...)
	typeMatcher, err := newKeywordMatcher(typeKeywords)
	if err != nil {
		return nil, fmt.Errorf("build type keyword automaton: %w", err)
	}
	generic, err := newKeywordMatcher(cfg.GenericKeywords)
	if err != nil {
		return nil, fmt.Errorf("build generic keyword automaton: %w", err)
	}
	return &Classifier{
		minTextLength: cfg.MinTextLength,
		primary:       keywordSet(cfg.PrimaryKeywords),
		secondary:     keywordSet(cfg.SecondaryKeywords),
		typeMatcher:   typeMatcher,
		generic:       generic,
	}, nil
}

func keywordSet(keywords []string) map[string]struct{} {
	return lo.SliceToMap(keywords, func(k string) (string, struct{}) {
		return foldString(k), struct{}{}
	})
}

// Classify inspects text for document evidence relative to requested.
func (c *Classifier) Classify(text string, requested Type) Classification {
	folded := fold(text)

	typeHits := c.typeMatcher.Find(folded)
	genericHits := c.generic.Find(folded)

	var primaryHits, secondaryHits int
	for _, hit := range typeHits {
		if _, ok := c.primary[hit]; ok {
			primaryHits++
		} else if _, ok := c.secondary[hit]; ok {
			secondaryHits++
		}
	}

	return Classification{
		Detected:           pickType(primaryHits, secondaryHits, requested),
		HasMinimumText:     textLength(text) > c.minTextLength,
		HasDocumentKeyword: len(genericHits) > 0,
		MatchedKeywords:    lo.Uniq(append(typeHits, genericHits...)),
		Language:           detectLanguage(text),
	}
}

// pickType resolves the detected category. When both sides match, more distinct hits
// win; a tie goes to requested if it is concrete, else to primary.
func pickType(primaryHits, secondaryHits int, requested Type) Type {
	switch {
	case primaryHits == 0 && secondaryHits == 0:
		return TypeUnknown
	case secondaryHits == 0:
		return TypePrimary
	case primaryHits == 0:
		return TypeSecondary
	case primaryHits > secondaryHits:
		return TypePrimary
	case secondaryHits > primaryHits:
		return TypeSecondary
	case requested.IsConcrete():
		return requested
	default:
		return TypePrimary
	}
}

func detectLanguage(text string) string {
	if textLength(text) == 0 {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
