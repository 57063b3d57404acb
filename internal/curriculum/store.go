// Package curriculum loads the lesson mapping files and the master
// directive from a directory of JSON documents.
package curriculum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/studysmart/lesson-engine/internal/domain"
)

// directiveMarker identifies the master directive file among the JSON
// documents in the curriculum directory.
const directiveMarker = "MASTER_DIRECTIVE"

// Mapping is one source file holding an ordered list of lesson records.
type Mapping struct {
	Filename       string
	CurriculumName string
	Lessons        []domain.LessonRecord
}

type mappingDocument struct {
	CurriculumName string                `json:"curriculum_name"`
	TotalLessons   int                   `json:"total_lessons"`
	Lessons        []domain.LessonRecord `json:"lessons"`
}

// Store reads curriculum files from a directory. Mapping files may be
// edited mid-run; callers reload per lesson for freshness.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("curriculum directory is required")
	}
	return &Store{dir: dir}, nil
}

// Load reads the directive and all mapping files. Mapping files are
// returned in filename order. A missing directive is not an error; an
// empty mapping set is.
func (s *Store) Load() (*Directive, []Mapping, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan curriculum directory: %w", err)
	}
	sort.Strings(paths)

	var directive *Directive
	var mappings []Mapping

	for _, path := range paths {
		name := filepath.Base(path)
		if isDirectiveFile(name) {
			d, err := s.readDirective(path)
			if err != nil {
				return nil, nil, err
			}
			directive = d
			continue
		}

		mapping, err := s.readMapping(path)
		if err != nil {
			return nil, nil, err
		}
		mappings = append(mappings, *mapping)
	}

	if len(mappings) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", domain.ErrNoMappings, s.dir)
	}

	return directive, mappings, nil
}

// ReloadDirective re-reads the directive file to pick up external edits.
func (s *Store) ReloadDirective() (*Directive, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan curriculum directory: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if isDirectiveFile(filepath.Base(path)) {
			return s.readDirective(path)
		}
	}
	return nil, fmt.Errorf("directive file: %w", domain.ErrNotFound)
}

// ReloadMapping re-reads a single mapping file by name.
func (s *Store) ReloadMapping(filename string) (*Mapping, error) {
	return s.readMapping(filepath.Join(s.dir, filepath.Base(filename)))
}

func (s *Store) readDirective(path string) (*Directive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directive %s: %w", filepath.Base(path), err)
	}
	d, err := ParseDirective(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directive %s: %w", filepath.Base(path), err)
	}
	return d, nil
}

func (s *Store) readMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping %s: %w", filepath.Base(path), err)
	}

	var doc mappingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse mapping %s: %w", filepath.Base(path), err)
	}

	return &Mapping{
		Filename:       filepath.Base(path),
		CurriculumName: doc.CurriculumName,
		Lessons:        doc.Lessons,
	}, nil
}

func isDirectiveFile(name string) bool {
	return strings.Contains(strings.ToUpper(name), directiveMarker)
}
