package practice

import (
	"math"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
)

// Query is the input to SelectNext.
type Query struct {
	Subject   models.Subject
	StartID   int
	Attempted map[int]bool
	Standards []string
	// Levels filters by difficulty; empty disables the filter.
	Levels []string
}

// SelectNext returns the smallest unattempted question ID >= StartID that is
// in at least one selected standard and, when levels are given, in at least
// one selected level. found is false when no such ID exists up to the
// catalog's largest ID for the subject (the Exhausted outcome).
//
// With no standards nothing can match. SelectNext has no side effects.
func SelectNext(idx *catalog.Index, q Query) (id int, found bool) {
	if len(q.Standards) == 0 {
		return 0, false
	}
	si, err := idx.Subject(q.Subject)
	if err != nil {
		return 0, false
	}

	standardSets := make([]catalog.IDSet, 0, len(q.Standards))
	for _, std := range q.Standards {
		if set := si.Standards[std]; len(set) > 0 {
			standardSets = append(standardSets, set)
		}
	}
	levelSets := make([]catalog.IDSet, 0, len(q.Levels))
	for _, lvl := range q.Levels {
		levelSets = append(levelSets, si.Levels[lvl])
	}

	start := q.StartID
	if start < 1 {
		start = 1
	}
	ceiling := idx.MaxID(q.Subject)

	for candidate := start; candidate <= ceiling; candidate++ {
		if q.Attempted[candidate] {
			continue
		}
		if !anyHas(standardSets, candidate) {
			continue
		}
		if len(q.Levels) > 0 && !anyHas(levelSets, candidate) {
			continue
		}
		return candidate, true
	}
	return 0, false
}

func anyHas(sets []catalog.IDSet, id int) bool {
	for _, set := range sets {
		if set.Has(id) {
			return true
		}
	}
	return false
}

// Accuracy is the rounded percentage of correct answers. Before any answer it
// reads 100.
func Accuracy(correct, answered int) int {
	if answered <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(correct) / float64(answered)))
}
