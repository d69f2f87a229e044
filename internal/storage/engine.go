package storage

// Engine is the cell-level storage interface a table reads and writes through.
// All timestamps are milliseconds.
type Engine interface {
	// Put writes every column of data at ts. Families are validated before
	// any column is written.
	Put(row []byte, data map[string][]byte, ts int64) error

	// Row returns the newest qualifying version of each column of row.
	Row(row []byte, q Query) map[string]Cell

	// Cells returns the qualifying versions of one column, newest first.
	Cells(row, column []byte, q Query) []Cell

	// DeleteRow removes the whole row.
	DeleteRow(row []byte) int

	// Delete removes versions with ts <= upTo from the given columns,
	// or from every column of the row when columns is empty.
	Delete(row []byte, columns [][]byte, upTo int64) int

	// RowKeys lists distinct row keys in [start, stop), ascending.
	// A nil stop means no upper bound.
	RowKeys(start, stop []byte) [][]byte
}

// Cell is one version of a column.
type Cell struct {
	Value     []byte
	Timestamp int64
}

// Query narrows a read.
type Query struct {
	// Columns restricts the projection; empty means every column.
	Columns [][]byte

	// When HasBefore is set only versions with ts < Before are visible.
	Before    int64
	HasBefore bool

	// Versions caps Cells results; zero means no cap.
	Versions int

	// Now is the read time used for time_to_live expiry.
	Now int64
}
