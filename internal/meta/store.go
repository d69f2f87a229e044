package meta

import (
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/schema"
	"github.com/myuser/widetable/internal/storage"
)

// Table is the state a live table owns.
type Table struct {
	Name  string
	Cells *storage.CellStore

	enabled bool
}

// Store holds the table catalog of one connection. Names are kept sorted.
type Store struct {
	mu     sync.RWMutex
	names  []string
	tables map[string]*Table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]*Table)}
}

func notFound(name string) error {
	return errors.NotFoundf("table %q", name)
}

// Lookup returns the table registered under name.
func (s *Store) Lookup(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, notFound(name)
	}
	return t, nil
}

// Create registers an enabled, empty table with the given families.
func (s *Store) Create(name string, families map[string]schema.Overrides) error {
	if name == "" {
		return errors.NotValidf("empty table name")
	}
	reg, err := schema.NewRegistry(families)
	if err != nil {
		return errors.Annotatef(err, "table %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return errors.AlreadyExistsf("table %q", name)
	}
	s.tables[name] = &Table{
		Name:    name,
		Cells:   storage.NewCellStore(reg),
		enabled: true,
	}

	// Find the insertion point
	idx := sort.SearchStrings(s.names, name)
	s.names = append(s.names, "")
	copy(s.names[idx+1:], s.names[idx:])
	s.names[idx] = name
	return nil
}

// Drop removes a disabled table together with its cells.
func (s *Store) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return notFound(name)
	}
	if t.enabled {
		return errors.NotValidf("deleting enabled table %q", name)
	}
	delete(s.tables, name)

	idx := sort.SearchStrings(s.names, name)
	s.names = append(s.names[:idx], s.names[idx+1:]...)
	return nil
}

func (s *Store) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return notFound(name)
	}
	t.enabled = enabled
	return nil
}

func (s *Store) Enabled(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return false, notFound(name)
	}
	return t.enabled, nil
}

// Names returns every table name in ascending order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
