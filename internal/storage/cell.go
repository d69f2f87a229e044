package storage

import (
	"bytes"
	"math"

	"github.com/google/btree"
)

// cell is a single (row, column, ts) -> value entry of the tree.
// Order: row ascending, column ascending, ts descending, so the newest
// version of a column is always the first one reached.
type cell struct {
	row    []byte
	column []byte
	ts     int64
	value  []byte
}

func (c *cell) Less(than btree.Item) bool {
	o := than.(*cell)
	if r := bytes.Compare(c.row, o.row); r != 0 {
		return r < 0
	}
	if r := bytes.Compare(c.column, o.column); r != 0 {
		return r < 0
	}
	return c.ts > o.ts
}

func (c *cell) inRow(row []byte) bool {
	return bytes.Equal(c.row, row)
}

func (c *cell) inColumn(row, column []byte) bool {
	return bytes.Equal(c.row, row) && bytes.Equal(c.column, column)
}

// rowPivot sorts before every cell of row.
func rowPivot(row []byte) *cell {
	return &cell{row: row, ts: math.MaxInt64}
}

// columnPivot sorts before every version of (row, column) with a timestamp
// <= ts.
func columnPivot(row, column []byte, ts int64) *cell {
	return &cell{row: row, column: column, ts: ts}
}

// readPivot returns where a read of (row, column) under q starts, or false
// when no version can qualify.
func readPivot(row, column []byte, q Query) (*cell, bool) {
	if !q.HasBefore {
		return columnPivot(row, column, math.MaxInt64), true
	}
	if q.Before == math.MinInt64 {
		return nil, false
	}
	return columnPivot(row, column, q.Before-1), true
}
