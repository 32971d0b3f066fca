// Package catalog holds the question catalog index: for each subject, which
// question IDs belong to each standard and each difficulty level.
package catalog

import (
	"errors"
	"sort"

	"github.com/act-prep/backend/internal/models"
)

var ErrUnknownSubject = errors.New("unknown subject")

// IDSet is a set of question IDs.
type IDSet map[int]struct{}

func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in increasing order.
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SubjectIndex is the index for one subject.
type SubjectIndex struct {
	Standards map[string]IDSet
	Levels    map[string]IDSet
	maxID     int
}

// Index is an immutable snapshot of the whole catalog. Never modify an Index
// obtained from a Store; use Store.Append instead.
type Index struct {
	subjects map[models.Subject]*SubjectIndex
}

// Mapping is the on-disk shape: subject -> tag -> IDs.
type Mapping map[string]map[string][]int

// New builds an index from a standards mapping and a levels mapping. Every
// known subject gets all of its standards and levels, even when empty.
func New(standards, levels Mapping) *Index {
	idx := &Index{subjects: make(map[models.Subject]*SubjectIndex, len(models.Subjects))}

	for _, subject := range models.Subjects {
		si := &SubjectIndex{
			Standards: make(map[string]IDSet),
			Levels:    make(map[string]IDSet),
		}
		for _, std := range models.Standards[subject] {
			si.Standards[std] = IDSet{}
		}
		for _, lvl := range models.DifficultyLevels {
			si.Levels[string(lvl)] = IDSet{}
		}
		idx.subjects[subject] = si
	}

	fill := func(m Mapping, pick func(*SubjectIndex) map[string]IDSet) {
		for subject, tags := range m {
			si, ok := idx.subjects[models.Subject(subject)]
			if !ok {
				continue
			}
			dst := pick(si)
			for tag, ids := range tags {
				set, ok := dst[tag]
				if !ok {
					set = IDSet{}
					dst[tag] = set
				}
				for _, id := range ids {
					if id < 1 {
						continue
					}
					set[id] = struct{}{}
					if id > si.maxID {
						si.maxID = id
					}
				}
			}
		}
	}
	fill(standards, func(si *SubjectIndex) map[string]IDSet { return si.Standards })
	fill(levels, func(si *SubjectIndex) map[string]IDSet { return si.Levels })

	return idx
}

// Subject returns the index for a subject.
func (x *Index) Subject(subject models.Subject) (*SubjectIndex, error) {
	si, ok := x.subjects[subject]
	if !ok {
		return nil, ErrUnknownSubject
	}
	return si, nil
}

// MaxID is the largest question ID known for the subject, 0 when none.
func (x *Index) MaxID(subject models.Subject) int {
	si, ok := x.subjects[subject]
	if !ok {
		return 0
	}
	return si.maxID
}

func (x *Index) InStandard(subject models.Subject, standard string, id int) bool {
	si, ok := x.subjects[subject]
	if !ok {
		return false
	}
	return si.Standards[standard].Has(id)
}

func (x *Index) InLevel(subject models.Subject, level string, id int) bool {
	si, ok := x.subjects[subject]
	if !ok {
		return false
	}
	return si.Levels[level].Has(id)
}

// StandardIDs returns the union of the given standards' sets for a subject.
// With no standards, it returns every ID under any standard.
func (x *Index) StandardIDs(subject models.Subject, standards ...string) IDSet {
	out := IDSet{}
	si, ok := x.subjects[subject]
	if !ok {
		return out
	}
	if len(standards) == 0 {
		for _, set := range si.Standards {
			for id := range set {
				out[id] = struct{}{}
			}
		}
		return out
	}
	for _, std := range standards {
		for id := range si.Standards[std] {
			out[id] = struct{}{}
		}
	}
	return out
}

// StandardOf returns the first standard (in curriculum order) containing id.
func (x *Index) StandardOf(subject models.Subject, id int) (string, bool) {
	si, ok := x.subjects[subject]
	if !ok {
		return "", false
	}
	for _, std := range models.Standards[subject] {
		if si.Standards[std].Has(id) {
			return std, true
		}
	}
	return "", false
}

// LevelOf returns the difficulty level containing id.
func (x *Index) LevelOf(subject models.Subject, id int) (models.Difficulty, bool) {
	si, ok := x.subjects[subject]
	if !ok {
		return "", false
	}
	for _, lvl := range models.DifficultyLevels {
		if si.Levels[string(lvl)].Has(id) {
			return lvl, true
		}
	}
	return "", false
}

// Mappings renders the index back into its on-disk shape with sorted IDs.
func (x *Index) Mappings() (standards, levels Mapping) {
	standards, levels = Mapping{}, Mapping{}
	for subject, si := range x.subjects {
		standards[string(subject)] = toLists(si.Standards)
		levels[string(subject)] = toLists(si.Levels)
	}
	return standards, levels
}

func toLists(m map[string]IDSet) map[string][]int {
	out := make(map[string][]int, len(m))
	for tag, set := range m {
		out[tag] = set.Sorted()
	}
	return out
}

// with returns a copy of x where id is added under standard and level.
// Sets that are not touched are shared with x.
func (x *Index) with(subject models.Subject, standard, level string, id int) *Index {
	next := &Index{subjects: make(map[models.Subject]*SubjectIndex, len(x.subjects))}
	for s, si := range x.subjects {
		next.subjects[s] = si
	}

	old := x.subjects[subject]
	si := &SubjectIndex{
		Standards: make(map[string]IDSet, len(old.Standards)),
		Levels:    make(map[string]IDSet, len(old.Levels)),
		maxID:     old.maxID,
	}
	for k, v := range old.Standards {
		si.Standards[k] = v
	}
	for k, v := range old.Levels {
		si.Levels[k] = v
	}

	if standard != "" {
		si.Standards[standard] = cloneWith(old.Standards[standard], id)
	}
	if level != "" {
		si.Levels[level] = cloneWith(old.Levels[level], id)
	}
	if id > si.maxID {
		si.maxID = id
	}
	next.subjects[subject] = si
	return next
}

func cloneWith(set IDSet, id int) IDSet {
	out := make(IDSet, len(set)+1)
	for k := range set {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}
