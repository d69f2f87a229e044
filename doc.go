// Package widetable is an in-process, multi-version, column-family store
// with the data model of a wide-column database: rows hold named columns,
// columns hold timestamped versions.
//
// A Connection owns a catalog of tables. Each table keeps its cells in one
// ordered tree guarded by a table lock, retains at most max_versions versions
// per column, and answers point-in-time reads, prefix and range scans,
// batched mutations and big-endian counters.
//
//	conn := widetable.NewConnection(widetable.Config{})
//	conn.CreateTable("person", map[string]widetable.FamilyOverrides{"d": {}})
//	t := conn.Table("person")
//	t.Put([]byte("john"), map[string][]byte{"d:name": []byte("John")})
//	row, _ := t.Row([]byte("john"))
//
// Nothing is persisted; a table lives as long as its Connection.
package widetable
