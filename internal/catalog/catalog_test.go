package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/act-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *Index {
	return New(
		Mapping{"math": {"algebra": {1, 2, 5}, "geometry": {3}}},
		Mapping{"math": {"easy": {1, 4}, "hard": {9}}},
	)
}

func TestNewFillsAllSubjects(t *testing.T) {
	idx := New(nil, nil)

	for _, subject := range models.Subjects {
		si, err := idx.Subject(subject)
		require.NoError(t, err)
		assert.Len(t, si.Standards, len(models.Standards[subject]))
		assert.Len(t, si.Levels, 3)
		assert.Equal(t, 0, idx.MaxID(subject))
	}

	_, err := idx.Subject("history")
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestMaxIDCoversStandardsAndLevels(t *testing.T) {
	idx := sampleIndex()
	assert.Equal(t, 9, idx.MaxID(models.SubjectMath))
	assert.Equal(t, 0, idx.MaxID(models.SubjectReading))
}

func TestMembership(t *testing.T) {
	idx := sampleIndex()

	assert.True(t, idx.InStandard(models.SubjectMath, "algebra", 5))
	assert.False(t, idx.InStandard(models.SubjectMath, "algebra", 4))
	assert.False(t, idx.InStandard(models.SubjectMath, "no such standard", 1))
	assert.True(t, idx.InLevel(models.SubjectMath, "easy", 4))

	std, ok := idx.StandardOf(models.SubjectMath, 3)
	assert.True(t, ok)
	assert.Equal(t, "geometry", std)

	lvl, ok := idx.LevelOf(models.SubjectMath, 9)
	assert.True(t, ok)
	assert.Equal(t, models.DifficultyHard, lvl)

	assert.Equal(t, []int{1, 2, 3, 5}, idx.StandardIDs(models.SubjectMath).Sorted())
	assert.Equal(t, []int{3}, idx.StandardIDs(models.SubjectMath, "geometry").Sorted())
}

func TestAppendIsCopyOnWrite(t *testing.T) {
	store := NewStore(sampleIndex(), "")
	before := store.Current()

	require.NoError(t, store.Append(models.SubjectMath, "geometry", models.DifficultyMedium, 12))

	after := store.Current()
	assert.False(t, before.InStandard(models.SubjectMath, "geometry", 12), "old snapshot must not change")
	assert.Equal(t, 9, before.MaxID(models.SubjectMath))

	assert.True(t, after.InStandard(models.SubjectMath, "geometry", 12))
	assert.True(t, after.InLevel(models.SubjectMath, "medium", 12))
	assert.Equal(t, 12, after.MaxID(models.SubjectMath))
	assert.True(t, after.InStandard(models.SubjectMath, "algebra", 2), "untouched sets are kept")
}

func TestAppendRejectsBadInput(t *testing.T) {
	store := NewStore(sampleIndex(), "")

	assert.ErrorIs(t, store.Append("history", "", "", 1), ErrUnknownSubject)
	assert.Error(t, store.Append(models.SubjectMath, "close reading", "", 1))
	assert.Error(t, store.Append(models.SubjectMath, "algebra", "impossible", 1))
	assert.Error(t, store.Append(models.SubjectMath, "algebra", "", 0))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(sampleIndex(), dir)
	require.NoError(t, store.Append(models.SubjectScience, "scientific investigation", models.DifficultyEasy, 1))
	require.NoError(t, store.Save())

	_, err := os.Stat(filepath.Join(dir, StandardsFile))
	require.NoError(t, err)

	loaded, err := Load(dir)
	require.NoError(t, err)
	idx := loaded.Current()
	assert.True(t, idx.InStandard(models.SubjectScience, "scientific investigation", 1))
	assert.True(t, idx.InLevel(models.SubjectScience, "easy", 1))
	assert.Equal(t, 9, idx.MaxID(models.SubjectMath))
}

func TestLoadMissingFiles(t *testing.T) {
	store, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Current().MaxID(models.SubjectMath))
}
