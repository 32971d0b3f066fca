package practice

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
)

const testStandard = "algebra"

// S = {1,2,5}, easy = {1,4}
func scenarioIndex() *catalog.Index {
	return catalog.New(
		catalog.Mapping{"math": {testStandard: {1, 2, 5}}},
		catalog.Mapping{"math": {"easy": {1, 4}}},
	)
}

func TestSelectNextScenarios(t *testing.T) {
	idx := scenarioIndex()
	attempted := map[int]bool{1: true}

	tests := []struct {
		name      string
		q         Query
		wantID    int
		wantFound bool
	}{
		{
			name:      "easy filter exhausts",
			q:         Query{Subject: models.SubjectMath, StartID: 1, Attempted: attempted, Standards: []string{testStandard}, Levels: []string{"easy"}},
			wantFound: false,
		},
		{
			name:      "no level filter picks smallest unattempted",
			q:         Query{Subject: models.SubjectMath, StartID: 1, Attempted: attempted, Standards: []string{testStandard}},
			wantID:    2,
			wantFound: true,
		},
		{
			name:      "start id skips lower candidates",
			q:         Query{Subject: models.SubjectMath, StartID: 3, Attempted: attempted, Standards: []string{testStandard}},
			wantID:    5,
			wantFound: true,
		},
		{
			name:      "start id zero behaves like one",
			q:         Query{Subject: models.SubjectMath, StartID: 0, Standards: []string{testStandard}},
			wantID:    1,
			wantFound: true,
		},
		{
			name:      "past the largest id",
			q:         Query{Subject: models.SubjectMath, StartID: 6, Standards: []string{testStandard}},
			wantFound: false,
		},
		{
			name:      "empty standards never match",
			q:         Query{Subject: models.SubjectMath, StartID: 1, Levels: []string{"easy"}},
			wantFound: false,
		},
		{
			name:      "unknown standard never matches",
			q:         Query{Subject: models.SubjectMath, StartID: 1, Standards: []string{"calculus"}},
			wantFound: false,
		},
		{
			name:      "unknown subject",
			q:         Query{Subject: "latin", StartID: 1, Standards: []string{testStandard}},
			wantFound: false,
		},
		{
			name:      "empty subject catalog",
			q:         Query{Subject: models.SubjectReading, StartID: 1, Standards: models.Standards[models.SubjectReading]},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, found := SelectNext(idx, tt.q)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v (id %d)", found, tt.wantFound, id)
			}
			if found && id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestSelectNextScansBeyondTen(t *testing.T) {
	idx := catalog.New(
		catalog.Mapping{"math": {testStandard: {3, 11, 250}}},
		nil,
	)
	attempted := map[int]bool{3: true, 11: true}

	id, found := SelectNext(idx, Query{Subject: models.SubjectMath, StartID: 1, Attempted: attempted, Standards: []string{testStandard}})
	if !found || id != 250 {
		t.Fatalf("expected 250, got %d (found=%v)", id, found)
	}
}

// bruteForce is the reference: check every ID from start to a generous bound.
func bruteForce(standards, levels map[string]map[int]bool, q Query, bound int) (int, bool) {
	start := q.StartID
	if start < 1 {
		start = 1
	}
	for id := start; id <= bound; id++ {
		if q.Attempted[id] {
			continue
		}
		inStd := false
		for _, s := range q.Standards {
			if standards[s][id] {
				inStd = true
			}
		}
		if !inStd {
			continue
		}
		if len(q.Levels) > 0 {
			inLvl := false
			for _, l := range q.Levels {
				if levels[l][id] {
					inLvl = true
				}
			}
			if !inLvl {
				continue
			}
		}
		return id, true
	}
	return 0, false
}

func TestSelectNextMatchesExhaustiveScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	stdNames := []string{"algebra", "functions", "geometry"}
	lvlNames := []string{"easy", "medium", "hard"}

	for round := 0; round < 300; round++ {
		maxID := 1 + rng.Intn(25)
		standards := map[string]map[int]bool{}
		levels := map[string]map[int]bool{}
		stdMap := map[string][]int{}
		lvlMap := map[string][]int{}
		for id := 1; id <= maxID; id++ {
			for _, s := range stdNames {
				if rng.Intn(3) == 0 {
					if standards[s] == nil {
						standards[s] = map[int]bool{}
					}
					standards[s][id] = true
					stdMap[s] = append(stdMap[s], id)
				}
			}
			l := lvlNames[rng.Intn(len(lvlNames))]
			if levels[l] == nil {
				levels[l] = map[int]bool{}
			}
			levels[l][id] = true
			lvlMap[l] = append(lvlMap[l], id)
		}
		idx := catalog.New(catalog.Mapping{"math": stdMap}, catalog.Mapping{"math": lvlMap})

		attempted := map[int]bool{}
		for id := 1; id <= maxID; id++ {
			if rng.Intn(4) == 0 {
				attempted[id] = true
			}
		}

		q := Query{
			Subject:   models.SubjectMath,
			StartID:   rng.Intn(maxID+2) - 1,
			Attempted: attempted,
			Standards: pickSome(rng, stdNames),
			Levels:    pickSome(rng, lvlNames),
		}

		t.Run(fmt.Sprintf("round-%d", round), func(t *testing.T) {
			wantID, wantFound := bruteForce(standards, levels, q, maxID+10)
			gotID, gotFound := SelectNext(idx, q)

			if gotFound != wantFound || gotID != wantID {
				t.Fatalf("SelectNext = (%d,%v), exhaustive scan = (%d,%v) for %+v", gotID, gotFound, wantID, wantFound, q)
			}
			if gotFound && attempted[gotID] {
				t.Fatalf("returned attempted id %d", gotID)
			}

			againID, againFound := SelectNext(idx, q)
			if againID != gotID || againFound != gotFound {
				t.Fatalf("not idempotent: (%d,%v) then (%d,%v)", gotID, gotFound, againID, againFound)
			}
		})
	}
}

func TestSelectNextEmptyLevelsDisablesFilter(t *testing.T) {
	idx := catalog.New(
		catalog.Mapping{"math": {testStandard: {2, 3}}},
		catalog.Mapping{"math": {"hard": {3}}},
	)
	q := Query{Subject: models.SubjectMath, StartID: 1, Standards: []string{testStandard}}

	id, found := SelectNext(idx, q)
	if !found || id != 2 {
		t.Fatalf("expected 2 without level filter, got %d (%v)", id, found)
	}

	q.Levels = []string{"hard"}
	id, found = SelectNext(idx, q)
	if !found || id != 3 {
		t.Fatalf("expected 3 with hard filter, got %d (%v)", id, found)
	}
}

func pickSome(rng *rand.Rand, names []string) []string {
	var out []string
	for _, n := range names {
		if rng.Intn(2) == 0 {
			out = append(out, n)
		}
	}
	return out
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		correct, answered, want int
	}{
		{0, 0, 100},
		{1, 2, 50},
		{2, 3, 67},
		{1, 3, 33},
		{0, 4, 0},
		{5, 5, 100},
		{1, 8, 13},
	}
	for _, tt := range tests {
		if got := Accuracy(tt.correct, tt.answered); got != tt.want {
			t.Errorf("Accuracy(%d, %d) = %d, want %d", tt.correct, tt.answered, got, tt.want)
		}
	}
}
