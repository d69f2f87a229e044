package storage

import (
	"bytes"
	"math"
	"sync"

	"github.com/google/btree"
	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/schema"
)

// CellStore implements Engine on a single btree of cells.
// One CellStore backs one table; its RWMutex is the table lock.
type CellStore struct {
	mu       sync.RWMutex
	tree     *btree.BTree
	families *schema.Registry
}

var _ Engine = (*CellStore)(nil)

func NewCellStore(families *schema.Registry) *CellStore {
	return &CellStore{
		tree:     btree.New(32),
		families: families,
	}
}

// Families returns the schema the store validates writes against.
func (s *CellStore) Families() *schema.Registry {
	return s.families
}

// Len returns the number of stored versions.
func (s *CellStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Put writes data at ts.
func (s *CellStore) Put(row []byte, data map[string][]byte, ts int64) error {
	// 1. Validate every family up front so a bad column writes nothing
	opts := make(map[string]schema.FamilyOptions, len(data))
	for col := range data {
		fo, err := s.families.Lookup([]byte(col))
		if err != nil {
			return err
		}
		opts[col] = fo
	}

	// 2. Mutate
	s.mu.Lock()
	defer s.mu.Unlock()
	for col, v := range data {
		s.putLocked(row, []byte(col), ts, v, opts[col])
	}
	return nil
}

// putLocked inserts or overwrites one version and enforces max_versions.
func (s *CellStore) putLocked(row, column []byte, ts int64, value []byte, opts schema.FamilyOptions) {
	s.tree.ReplaceOrInsert(&cell{
		row:    bytes.Clone(row),
		column: bytes.Clone(column),
		ts:     ts,
		value:  encodeValue(opts, value),
	})
	s.pruneLocked(row, column, opts.MaxVersions)
}

// pruneLocked drops the oldest versions of a column beyond max.
func (s *CellStore) pruneLocked(row, column []byte, max int) int {
	var stale []btree.Item
	n := 0
	s.tree.AscendGreaterOrEqual(columnPivot(row, column, math.MaxInt64), func(i btree.Item) bool {
		c := i.(*cell)
		if !c.inColumn(row, column) {
			return false
		}
		n++
		if n > max {
			stale = append(stale, i)
		}
		return true
	})

	for _, i := range stale {
		s.tree.Delete(i)
	}
	return len(stale)
}

func (s *CellStore) Row(row []byte, q Query) map[string]Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowLocked(row, q)
}

func (s *CellStore) rowLocked(row []byte, q Query) map[string]Cell {
	out := make(map[string]Cell)

	if len(q.Columns) > 0 {
		for _, col := range q.Columns {
			if c, ok := s.latestLocked(row, col, q); ok {
				out[string(col)] = c
			}
		}
		return out
	}

	// Walk the row once; the first qualifying version of each column wins.
	var column []byte
	var resolved bool
	s.tree.AscendGreaterOrEqual(rowPivot(row), func(i btree.Item) bool {
		c := i.(*cell)
		if !c.inRow(row) {
			return false
		}
		if !bytes.Equal(c.column, column) {
			column = c.column
			resolved = false
		}
		if resolved {
			return true
		}
		if q.HasBefore && c.ts >= q.Before {
			return true
		}
		resolved = true
		if v, ok := s.export(c, q.Now); ok {
			out[string(c.column)] = v
		}
		return true
	})
	return out
}

// latestLocked returns the newest version of (row, column) visible to q.
func (s *CellStore) latestLocked(row, column []byte, q Query) (Cell, bool) {
	pivot, ok := readPivot(row, column, q)
	if !ok {
		return Cell{}, false
	}

	var found *cell
	s.tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		c := i.(*cell)
		if c.inColumn(row, column) {
			found = c
		}
		return false
	})
	if found == nil {
		return Cell{}, false
	}
	return s.export(found, q.Now)
}

func (s *CellStore) Cells(row, column []byte, q Query) []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pivot, ok := readPivot(row, column, q)
	if !ok {
		return nil
	}

	var out []Cell
	s.tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		c := i.(*cell)
		if !c.inColumn(row, column) {
			return false
		}
		v, ok := s.export(c, q.Now)
		if !ok {
			// Everything older is expired as well.
			return false
		}
		out = append(out, v)
		return q.Versions <= 0 || len(out) < q.Versions
	})
	return out
}

// export decodes a stored cell, hiding it when the family TTL has passed.
func (s *CellStore) export(c *cell, now int64) (Cell, bool) {
	opts, err := s.families.Lookup(c.column)
	if err != nil {
		return Cell{}, false
	}
	if opts.TimeToLive > 0 && c.ts < now-int64(opts.TimeToLive)*1000 {
		return Cell{}, false
	}
	return Cell{Value: decodeValue(opts, c.value), Timestamp: c.ts}, true
}

func (s *CellStore) DeleteRow(row []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(row, nil, math.MaxInt64)
}

func (s *CellStore) Delete(row []byte, columns [][]byte, upTo int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(row, columns, upTo)
}

// deleteLocked removes versions with ts <= upTo. Columns and rows disappear
// with their last version since the tree holds nothing but versions.
func (s *CellStore) deleteLocked(row []byte, columns [][]byte, upTo int64) int {
	var stale []btree.Item

	if len(columns) == 0 {
		s.tree.AscendGreaterOrEqual(rowPivot(row), func(i btree.Item) bool {
			c := i.(*cell)
			if !c.inRow(row) {
				return false
			}
			if c.ts <= upTo {
				stale = append(stale, i)
			}
			return true
		})
	} else {
		for _, col := range columns {
			s.tree.AscendGreaterOrEqual(columnPivot(row, col, upTo), func(i btree.Item) bool {
				c := i.(*cell)
				if !c.inColumn(row, col) {
					return false
				}
				stale = append(stale, i)
				return true
			})
		}
	}

	for _, i := range stale {
		s.tree.Delete(i)
	}
	return len(stale)
}

func (s *CellStore) RowKeys(start, stop []byte) [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys [][]byte
	s.tree.AscendGreaterOrEqual(rowPivot(start), func(i btree.Item) bool {
		c := i.(*cell)
		if stop != nil && bytes.Compare(c.row, stop) >= 0 {
			return false
		}
		if n := len(keys); n == 0 || !bytes.Equal(keys[n-1], c.row) {
			keys = append(keys, bytes.Clone(c.row))
		}
		return true
	})
	return keys
}

// Counter reads (row, column) as a counter; absent means zero.
func (s *CellStore) Counter(row, column []byte, now int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counterLocked(row, column, now)
}

func (s *CellStore) counterLocked(row, column []byte, now int64) (int64, error) {
	c, ok := s.latestLocked(row, column, Query{Now: now})
	if !ok {
		return 0, nil
	}
	return DecodeCounter(c.Value)
}

// SetCounter replaces every version of (row, column) with a single encoded
// value at ts.
func (s *CellStore) SetCounter(row, column []byte, value, ts int64) error {
	opts, err := s.families.Lookup(column)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCounterLocked(row, column, value, ts, opts)
	return nil
}

// AddCounter adds delta to the counter and returns the new value. The read
// and the write happen under one table lock. A result outside int64 fails
// NotValid and leaves the counter unchanged.
func (s *CellStore) AddCounter(row, column []byte, delta, ts int64) (int64, error) {
	return s.updateCounter(row, column, ts, func(cur int64) (int64, bool) {
		if (delta > 0 && cur > math.MaxInt64-delta) || (delta < 0 && cur < math.MinInt64-delta) {
			return 0, false
		}
		return cur + delta, true
	})
}

// SubCounter subtracts delta the way AddCounter adds it.
func (s *CellStore) SubCounter(row, column []byte, delta, ts int64) (int64, error) {
	return s.updateCounter(row, column, ts, func(cur int64) (int64, bool) {
		if (delta < 0 && cur > math.MaxInt64+delta) || (delta > 0 && cur < math.MinInt64+delta) {
			return 0, false
		}
		return cur - delta, true
	})
}

func (s *CellStore) updateCounter(row, column []byte, ts int64, apply func(int64) (int64, bool)) (int64, error) {
	opts, err := s.families.Lookup(column)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.counterLocked(row, column, ts)
	if err != nil {
		return 0, err
	}
	next, ok := apply(cur)
	if !ok {
		return 0, errors.NotValidf("counter %q overflow", column)
	}
	s.replaceCounterLocked(row, column, next, ts, opts)
	return next, nil
}

func (s *CellStore) replaceCounterLocked(row, column []byte, value, ts int64, opts schema.FamilyOptions) {
	s.deleteLocked(row, [][]byte{column}, math.MaxInt64)
	s.putLocked(row, column, ts, EncodeCounter(value), opts)
}
