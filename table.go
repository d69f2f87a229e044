package widetable

import (
	"bytes"
	"fmt"

	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/meta"
	"github.com/myuser/widetable/internal/metrics"
	"github.com/myuser/widetable/internal/storage"
)

// Cell is one version of a column. Timestamp is only filled when the read
// asked for it with IncludeTimestamp.
type Cell = storage.Cell

// Row maps column names to their selected version.
type Row map[string]Cell

// Values drops the timestamps.
func (r Row) Values() map[string][]byte {
	out := make(map[string][]byte, len(r))
	for col, c := range r {
		out[col] = c.Value
	}
	return out
}

// RowResult pairs a row key with its columns.
type RowResult struct {
	Key     []byte
	Columns Row
}

// Region describes the single key range an in-process table spans.
type Region struct {
	Name     string `json:"name"`
	StartKey []byte `json:"start_key"`
	EndKey   []byte `json:"end_key"`
	ID       int64  `json:"id"`
	Version  int    `json:"version"`
}

// Table is a handle on a named table of a Connection. Every call checks
// that the table still exists.
type Table struct {
	name string
	conn *Connection
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) String() string {
	return fmt.Sprintf("<widetable.Table name='%s'>", t.name)
}

func (t *Table) state() (*meta.Table, error) {
	return t.conn.catalog.Lookup(t.name)
}

// Families returns the resolved options of every family keyed by name.
func (t *Table) Families() (map[string]FamilyOptions, error) {
	st, err := t.state()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return st.Cells.Families().All(), nil
}

// Regions returns one region for an existing table and none otherwise.
func (t *Table) Regions() []Region {
	if _, err := t.state(); err != nil {
		return []Region{}
	}
	return []Region{{
		Name:     fmt.Sprintf("%s,,1", t.name),
		StartKey: []byte{},
		EndKey:   []byte{},
		ID:       1,
		Version:  1,
	}}
}

// query builds the read query shared by Row, Rows, Cells and Scan.
func (t *Table) query(o options) storage.Query {
	return storage.Query{
		Columns:   o.columns,
		Before:    o.timestamp,
		HasBefore: o.hasTimestamp,
		Versions:  o.versions,
		Now:       t.conn.now(),
	}
}

// project strips timestamps unless they were asked for.
func project(cells map[string]Cell, include bool) Row {
	row := make(Row, len(cells))
	for col, c := range cells {
		if !include {
			c.Timestamp = 0
		}
		row[col] = c
	}
	return row
}

// Row returns the newest version of each column of row. With WithTimestamp
// only versions strictly older than the timestamp are considered. Missing
// rows and columns are absent from the result.
func (t *Table) Row(row []byte, opts ...Option) (Row, error) {
	st, err := t.state()
	if err != nil {
		return nil, errors.Trace(err)
	}
	o := collect(opts)
	metrics.Inc(metrics.TableRow)
	return project(st.Cells.Row(row, t.query(o)), o.includeTimestamp), nil
}

// Rows applies Row to each key, keeping the order of keys.
func (t *Table) Rows(rows [][]byte, opts ...Option) ([]RowResult, error) {
	st, err := t.state()
	if err != nil {
		return nil, errors.Trace(err)
	}
	o := collect(opts)
	q := t.query(o)
	metrics.Inc(metrics.TableRows)

	out := make([]RowResult, 0, len(rows))
	for _, key := range rows {
		out = append(out, RowResult{
			Key:     bytes.Clone(key),
			Columns: project(st.Cells.Row(key, q), o.includeTimestamp),
		})
	}
	return out, nil
}

// Cells returns the versions of one column, newest first.
func (t *Table) Cells(row, column []byte, opts ...Option) ([]Cell, error) {
	st, err := t.state()
	if err != nil {
		return nil, errors.Trace(err)
	}
	o := collect(opts)
	metrics.Inc(metrics.TableCells)

	cells := st.Cells.Cells(row, column, t.query(o))
	if !o.includeTimestamp {
		for i := range cells {
			cells[i].Timestamp = 0
		}
	}
	return cells, nil
}

// Put writes data (column -> value) to row at the WithTimestamp time or now.
// If any column names an unknown family nothing is written.
func (t *Table) Put(row []byte, data map[string][]byte, opts ...Option) error {
	st, err := t.state()
	if err != nil {
		return errors.Trace(err)
	}
	o := collect(opts)
	ts := o.timestamp
	if !o.hasTimestamp {
		ts = t.conn.now()
	}
	if err := st.Cells.Put(row, data, ts); err != nil {
		return errors.Trace(err)
	}
	metrics.Inc(metrics.TablePut)
	return nil
}

// Delete removes the whole row when called without options. Otherwise it
// removes versions at or before the WithTimestamp bound (default now) from
// the WithColumns columns (default every column of the row).
func (t *Table) Delete(row []byte, opts ...Option) error {
	st, err := t.state()
	if err != nil {
		return errors.Trace(err)
	}
	o := collect(opts)
	metrics.Inc(metrics.TableDelete)

	if len(o.columns) == 0 && !o.hasTimestamp {
		st.Cells.DeleteRow(row)
		return nil
	}
	upTo := o.timestamp
	if !o.hasTimestamp {
		upTo = t.conn.now()
	}
	st.Cells.Delete(row, o.columns, upTo)
	return nil
}
