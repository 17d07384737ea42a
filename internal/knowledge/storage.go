package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel errors for the knowledge package.
var (
	// ErrInvalidPattern indicates a pattern failed validation.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidSolution indicates a solution failed validation.
	ErrInvalidSolution = errors.New("invalid solution")

	// ErrInvalidStorage indicates unusable storage configuration.
	ErrInvalidStorage = errors.New("invalid storage")
)

// Storage persists the catalog. Implementations rewrite the whole store on
// every save; there is no append log or in-place update. Callers that need
// multi-writer safety must serialize writes externally.
type Storage interface {
	LoadPatterns() ([]ErrorPattern, error)
	SavePatterns(patterns []ErrorPattern) error
	LoadSolutions() ([]ErrorSolution, error)
	SaveSolutions(solutions []ErrorSolution) error
}

const (
	patternsFile  = "patterns.json"
	solutionsFile = "solutions.json"
)

// JSONStorage stores the catalog as two JSON documents in a directory:
// patterns.json and solutions.json. Timestamps are RFC3339 (time.Time's
// default JSON encoding), so the files round-trip losslessly.
type JSONStorage struct {
	dir string
}

// NewJSONStorage creates the directory if needed and returns a store.
func NewJSONStorage(dir string) (*JSONStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrInvalidStorage)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return &JSONStorage{dir: dir}, nil
}

// LoadPatterns reads patterns.json. A missing file is an empty catalog.
func (s *JSONStorage) LoadPatterns() ([]ErrorPattern, error) {
	var patterns []ErrorPattern
	if err := s.load(patternsFile, &patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}

// SavePatterns rewrites patterns.json with the full pattern list.
func (s *JSONStorage) SavePatterns(patterns []ErrorPattern) error {
	return s.save(patternsFile, patterns)
}

// LoadSolutions reads solutions.json. A missing file is an empty catalog.
func (s *JSONStorage) LoadSolutions() ([]ErrorSolution, error) {
	var solutions []ErrorSolution
	if err := s.load(solutionsFile, &solutions); err != nil {
		return nil, err
	}
	return solutions, nil
}

// SaveSolutions rewrites solutions.json with the full solution list.
func (s *JSONStorage) SaveSolutions(solutions []ErrorSolution) error {
	return s.save(solutionsFile, solutions)
}

func (s *JSONStorage) load(name string, out interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (s *JSONStorage) save(name string, v interface{}) error {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var _ Storage = (*JSONStorage)(nil)
