package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/act-prep/backend/internal/models"
)

const (
	StandardsFile = "questionSet.json"
	LevelsFile    = "questionLevels.json"
)

// Store owns the current catalog snapshot and its backing files.
type Store struct {
	dir     string
	current atomic.Pointer[Index]
	mu      sync.Mutex // serializes Append and Save
}

// NewStore wraps an in-memory index. An empty dir disables persistence.
func NewStore(idx *Index, dir string) *Store {
	s := &Store{dir: dir}
	s.current.Store(idx)
	return s
}

// Load reads questionSet.json and questionLevels.json from dir. Missing files
// yield an empty catalog.
func Load(dir string) (*Store, error) {
	standards, err := readMapping(filepath.Join(dir, StandardsFile))
	if err != nil {
		return nil, err
	}
	levels, err := readMapping(filepath.Join(dir, LevelsFile))
	if err != nil {
		return nil, err
	}

	idx := New(standards, levels)
	for _, subject := range models.Subjects {
		log.Printf("[catalog] %s: max question id %d", subject, idx.MaxID(subject))
	}
	return NewStore(idx, dir), nil
}

func readMapping(path string) (Mapping, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("[catalog] %s not found, starting empty", path)
		return Mapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Mapping
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Current returns the latest snapshot. The returned index never changes.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// Append registers a new question ID under a standard and a difficulty level.
// Either tag may be empty; an unknown standard for the subject is rejected.
func (s *Store) Append(subject models.Subject, standard string, level models.Difficulty, id int) error {
	if !subject.Valid() {
		return ErrUnknownSubject
	}
	if id < 1 {
		return fmt.Errorf("invalid question id %d", id)
	}
	if standard != "" && !models.ValidStandard(subject, standard) {
		return fmt.Errorf("unknown standard %q for %s", standard, subject)
	}
	if level != "" && !level.Valid() {
		return fmt.Errorf("unknown difficulty %q", level)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	s.current.Store(cur.with(subject, standard, string(level), id))
	return nil
}

// Save writes the current snapshot back to the catalog files.
func (s *Store) Save() error {
	if s.dir == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}

	standards, levels := s.current.Load().Mappings()
	if err := writeMapping(filepath.Join(s.dir, StandardsFile), standards); err != nil {
		return err
	}
	return writeMapping(filepath.Join(s.dir, LevelsFile), levels)
}

func writeMapping(path string, m Mapping) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
