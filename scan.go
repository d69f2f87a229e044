package widetable

import (
	"iter"
	"slices"

	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/metrics"
	"github.com/myuser/widetable/internal/storage"
)

// Scan selects rows by range or prefix and returns a one-shot Scanner over
// them, ascending by raw key bytes (descending with Reversed). Column and
// timestamp options project each row the way Row does; rows left without
// columns are skipped. WithRowPrefix cannot be combined with WithRowStart
// or WithRowStop.
func (t *Table) Scan(opts ...Option) (*Scanner, error) {
	o := collect(opts)
	if o.hasPrefix && (o.hasStart || o.hasStop) {
		return nil, errors.NotValidf("row prefix combined with row start or stop")
	}
	if o.hasLimit && o.limit <= 0 {
		return nil, errors.NotValidf("scan limit %d", o.limit)
	}

	st, err := t.state()
	if err != nil {
		return nil, errors.Trace(err)
	}

	start, stop := o.rowStart, o.rowStop
	if o.hasPrefix {
		start, stop = storage.PrefixRange(o.rowPrefix)
	}
	if start == nil {
		start = []byte{}
	}
	if len(stop) == 0 {
		stop = nil
	}

	keys := st.Cells.RowKeys(start, stop)
	if o.reverse {
		slices.Reverse(keys)
	}
	metrics.Inc(metrics.TableScan)

	return &Scanner{
		store:   st.Cells,
		keys:    keys,
		q:       t.query(o),
		include: o.includeTimestamp,
		limit:   o.limit,
	}, nil
}

// Scanner yields scan results one row at a time. Rows are projected when
// reached, so a row changed after Scan returned is seen as it is then.
// A Scanner cannot be rewound; call Scan again for a new pass.
type Scanner struct {
	store   *storage.CellStore
	keys    [][]byte
	q       storage.Query
	include bool
	limit   int
	emitted int
	cur     RowResult
}

// Next advances to the next non-empty row.
func (s *Scanner) Next() bool {
	for len(s.keys) > 0 {
		if s.limit > 0 && s.emitted >= s.limit {
			s.keys = nil
			break
		}
		key := s.keys[0]
		s.keys = s.keys[1:]

		row := project(s.store.Row(key, s.q), s.include)
		if len(row) == 0 {
			continue
		}
		s.emitted++
		s.cur = RowResult{Key: key, Columns: row}
		metrics.Inc(metrics.TableScanRows)
		return true
	}
	s.cur = RowResult{}
	return false
}

// Row returns the row Next moved to.
func (s *Scanner) Row() RowResult {
	return s.cur
}

// All drains the scanner as an iterator.
func (s *Scanner) All() iter.Seq2[[]byte, Row] {
	return func(yield func([]byte, Row) bool) {
		for s.Next() {
			if !yield(s.cur.Key, s.cur.Columns) {
				return
			}
		}
	}
}

// Collect drains the scanner into a slice.
func (s *Scanner) Collect() []RowResult {
	var out []RowResult
	for s.Next() {
		out = append(out, s.cur)
	}
	return out
}
