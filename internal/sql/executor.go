package sql

import (
	"bytes"
	"slices"

	"github.com/juju/errors"

	"github.com/myuser/widetable"
	"github.com/myuser/widetable/internal/metrics"
)

// Row is a result row with printable values.
type Row struct {
	Key     string            `json:"key"`
	Columns map[string]string `json:"columns"`
}

// Result of one statement. Reads fill Rows, writes fill Affected.
type Result struct {
	Rows     []Row `json:"rows,omitempty"`
	Affected int   `json:"affected"`
}

// Run parses and executes a single statement.
func Run(conn *widetable.Connection, sql string) (*Result, error) {
	plan, err := ParseToPlan(sql)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Execute(plan, conn)
}

// Execute executes a logical plan against the tables of conn.
func Execute(plan PlanNode, conn *widetable.Connection) (*Result, error) {
	metrics.Inc(metrics.SQLStatements)

	switch n := plan.(type) {
	case *ProjectNode:
		res, err := executeRead(n.Input, conn, columnsOf(n.Columns))
		if err != nil || !n.KeyOnly {
			return res, err
		}
		for i := range res.Rows {
			res.Rows[i].Columns = map[string]string{}
		}
		return res, nil
	case *GetNode, *ScanNode:
		return executeRead(n, conn, nil)
	case *PutNode:
		return executePut(n, conn)
	case *DeleteNode:
		return executeDelete(n, conn)
	default:
		return nil, errors.NotValidf("plan node %T", plan)
	}
}

func columnsOf(names []string) [][]byte {
	if len(names) == 0 {
		return nil
	}
	cols := make([][]byte, len(names))
	for i, name := range names {
		cols[i] = []byte(name)
	}
	return cols
}

func readOptions(cols [][]byte, before int64, hasBefore bool) []widetable.Option {
	var opts []widetable.Option
	if cols != nil {
		opts = append(opts, widetable.WithColumns(cols...))
	}
	if hasBefore {
		opts = append(opts, widetable.WithTimestamp(before))
	}
	return opts
}

func executeRead(plan PlanNode, conn *widetable.Connection, cols [][]byte) (*Result, error) {
	switch n := plan.(type) {
	case *GetNode:
		return executeGet(n, conn, cols)
	case *ScanNode:
		return executeScan(n, conn, cols)
	default:
		return nil, errors.NotValidf("read node %T", plan)
	}
}

func executeGet(n *GetNode, conn *widetable.Connection, cols [][]byte) (*Result, error) {
	keys := n.Keys
	if n.Reverse {
		keys = slices.Clone(keys)
		slices.SortFunc(keys, func(a, b []byte) int { return bytes.Compare(b, a) })
	}

	rows, err := conn.Table(n.Table).Rows(keys, readOptions(cols, n.Before, n.HasBefore)...)
	if err != nil {
		return nil, errors.Trace(err)
	}

	res := &Result{}
	for _, r := range rows {
		if len(r.Columns) == 0 {
			continue
		}
		res.Rows = append(res.Rows, printable(r))
		if n.Limit > 0 && len(res.Rows) == n.Limit {
			break
		}
	}
	return res, nil
}

func executeScan(n *ScanNode, conn *widetable.Connection, cols [][]byte) (*Result, error) {
	opts := readOptions(cols, n.Before, n.HasBefore)
	if n.Prefix != nil {
		opts = append(opts, widetable.WithRowPrefix(n.Prefix))
	}
	if n.Start != nil {
		opts = append(opts, widetable.WithRowStart(n.Start))
	}
	if n.Stop != nil {
		opts = append(opts, widetable.WithRowStop(n.Stop))
	}
	if n.Reverse {
		opts = append(opts, widetable.Reversed())
	}
	if n.Limit > 0 {
		opts = append(opts, widetable.WithLimit(n.Limit))
	}

	scanner, err := conn.Table(n.Table).Scan(opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := &Result{}
	for scanner.Next() {
		res.Rows = append(res.Rows, printable(scanner.Row()))
	}
	return res, nil
}

func printable(r widetable.RowResult) Row {
	row := Row{Key: string(r.Key), Columns: make(map[string]string, len(r.Columns))}
	for col, c := range r.Columns {
		row.Columns[col] = string(c.Value)
	}
	return row
}

func executePut(n *PutNode, conn *widetable.Connection) (*Result, error) {
	err := conn.Table(n.Table).WithBatch(func(b *widetable.Batch) error {
		for _, row := range n.Rows {
			var rowOpts []widetable.Option
			if row.HasTimestamp {
				rowOpts = append(rowOpts, widetable.WithTimestamp(row.Timestamp))
			}
			if err := b.Put(row.Key, row.Data, rowOpts...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Result{Affected: len(n.Rows)}, nil
}

func executeDelete(n *DeleteNode, conn *widetable.Connection) (*Result, error) {
	var opts []widetable.Option
	if n.HasUpTo {
		opts = append(opts, widetable.WithTimestamp(n.UpTo))
	}

	tbl := conn.Table(n.Table)
	if _, err := tbl.Families(); err != nil {
		return nil, errors.Trace(err)
	}
	for _, key := range n.Keys {
		if err := tbl.Delete(key, opts...); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return &Result{Affected: len(n.Keys)}, nil
}
