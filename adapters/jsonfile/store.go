package jsonfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"gameservices/adapters/memory"
)

// Store persists a simulated platform's world to a single JSON file.
// Suitable for demos and local development.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the fixture. A missing file yields an empty fixture.
func (s *Store) Load() (memory.Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f memory.Fixture
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, err
	}
	return f, nil
}

// Save writes the fixture atomically.
func (s *Store) Save(f memory.Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Open builds a simulated platform seeded from the file.
func (s *Store) Open(opts ...memory.Option) (*memory.Platform, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	p := memory.New(opts...)
	if err := p.Seed(f); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Persist snapshots p and saves it.
func (s *Store) Persist(p *memory.Platform) error {
	f, err := p.Snapshot()
	if err != nil {
		return err
	}
	return s.Save(f)
}
