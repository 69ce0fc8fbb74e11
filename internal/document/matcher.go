package document

import (
	"slices"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// keywordMatcher finds whole-word keyword occurrences with one Aho-Corasick automaton.
type keywordMatcher struct {
	machine *goahocorasick.Machine
}

func newKeywordMatcher(keywords []string) (*keywordMatcher, error) {
	patterns := lo.Uniq(lo.Compact(lo.Map(keywords, func(k string, _ int) string {
		return foldString(k)
	})))
	if len(patterns) == 0 {
		return &keywordMatcher{}, nil
	}
	slices.Sort(patterns)

	dict := lo.Map(patterns, func(p string, _ int) []rune { return []rune(p) })
	m := new(goahocorasick.Machine)
	if err := m.Build(dict); err != nil {
		return nil, err
	}
	return &keywordMatcher{machine: m}, nil
}

// Find returns the distinct folded keywords present in text as whole words, in order of
// first occurrence.
func (k *keywordMatcher) Find(text []rune) []string {
	if k.machine == nil || len(text) == 0 {
		return nil
	}
	var found []string
	for _, term := range k.machine.MultiPatternSearch(text, false) {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(text) {
			continue
		}
		if start > 0 && text[start-1] != ' ' {
			continue
		}
		if end < len(text) && text[end] != ' ' {
			continue
		}
		found = append(found, string(term.Word))
	}
	return lo.Uniq(found)
}
