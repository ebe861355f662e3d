package highlight

import (
	"github.com/samber/lo"

	"linguistlm/internal/domain"
)

// IgnoredSet holds the keys of annotations the user dismissed or accepted.
// The zero value is an empty set; a nil set ignores nothing and drops adds.
type IgnoredSet struct {
	keys map[string]struct{}
}

func NewIgnoredSet(keys ...string) *IgnoredSet {
	s := &IgnoredSet{keys: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		s.keys[key] = struct{}{}
	}
	return s
}

func (s *IgnoredSet) Add(annotation domain.GrammarAnnotation) {
	if s == nil {
		return
	}
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	s.keys[annotation.Key()] = struct{}{}
}

func (s *IgnoredSet) Has(annotation domain.GrammarAnnotation) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[annotation.Key()]
	return ok
}

func (s *IgnoredSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Visible drops annotations whose key is in the ignored set.
func Visible(annotations []domain.GrammarAnnotation, ignored *IgnoredSet) []domain.GrammarAnnotation {
	return lo.Reject(annotations, func(a domain.GrammarAnnotation, _ int) bool {
		return ignored.Has(a)
	})
}
