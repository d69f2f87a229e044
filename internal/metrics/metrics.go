package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
)

// Counter names recorded by the table layer.
const (
	TablePut       = "table_put"
	TableDelete    = "table_delete"
	TableRow       = "table_row"
	TableRows      = "table_rows"
	TableCells     = "table_cells"
	TableScan      = "table_scan"
	TableScanRows  = "table_scan_rows"
	BatchSend      = "batch_send"
	BatchMutations = "batch_mutations"
	CounterUpdate  = "counter_update"
	SQLStatements  = "sql_statements"
)

// Global registry. Keys are strings, values are *int64.
var registry sync.Map

// Inc increments a counter by 1.
func Inc(name string) {
	Add(name, 1)
}

// Add adds delta to a counter.
func Add(name string, delta int64) {
	val, ok := registry.Load(name)
	if !ok {
		val, _ = registry.LoadOrStore(name, new(int64))
	}
	atomic.AddInt64(val.(*int64), delta)
}

// Get returns the current value of a counter.
func Get(name string) int64 {
	val, ok := registry.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(val.(*int64))
}

// Snapshot copies every counter.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	registry.Range(func(key, value any) bool {
		out[key.(string)] = atomic.LoadInt64(value.(*int64))
		return true
	})
	return out
}

// Reset zeroes every counter.
func Reset() {
	registry.Range(func(_, value any) bool {
		atomic.StoreInt64(value.(*int64), 0)
		return true
	})
}

// Handler exposes all counters as JSON.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Snapshot())
}
