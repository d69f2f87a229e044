package storage

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/btree"
	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/schema"
)

func newTestStore(t *testing.T, defs map[string]schema.Overrides) *CellStore {
	t.Helper()
	if defs == nil {
		defs = map[string]schema.Overrides{"d": {}}
	}
	r, err := schema.NewRegistry(defs)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return NewCellStore(r)
}

func put(t *testing.T, s *CellStore, row string, ts int64, kv ...string) {
	t.Helper()
	data := make(map[string][]byte)
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = []byte(kv[i+1])
	}
	if err := s.Put([]byte(row), data, ts); err != nil {
		t.Fatalf("Put %s failed: %v", row, err)
	}
}

func values(row map[string]Cell) map[string]string {
	out := make(map[string]string, len(row))
	for k, c := range row {
		out[k] = string(c.Value)
	}
	return out
}

func equalMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func TestVersionRetention(t *testing.T) {
	s := newTestStore(t, nil)

	// Default max_versions is 3
	put(t, s, "01", 1, "d:name", "Alice")
	put(t, s, "01", 2, "d:name", "Bob")
	put(t, s, "01", 3, "d:name", "Cate")
	put(t, s, "01", 4, "d:name", "Dave")

	cells := s.Cells([]byte("01"), []byte("d:name"), Query{})
	if len(cells) != 3 {
		t.Fatalf("Want 3 versions, got %d", len(cells))
	}
	for i, want := range []int64{4, 3, 2} {
		if cells[i].Timestamp != want {
			t.Errorf("Version %d: want ts %d, got %d", i, want, cells[i].Timestamp)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Evicted version still stored, Len %d", s.Len())
	}
}

func TestRetentionOutOfOrder(t *testing.T) {
	s := newTestStore(t, map[string]schema.Overrides{"d": {MaxVersions: schema.Int(2)}})

	put(t, s, "k", 10, "d:a", "ten")
	put(t, s, "k", 30, "d:a", "thirty")
	// Oldest write arrives last and is evicted immediately
	put(t, s, "k", 5, "d:a", "five")

	cells := s.Cells([]byte("k"), []byte("d:a"), Query{})
	if len(cells) != 2 || cells[0].Timestamp != 30 || cells[1].Timestamp != 10 {
		t.Errorf("Unexpected versions: %+v", cells)
	}
}

func TestEqualTimestampOverwrites(t *testing.T) {
	s := newTestStore(t, nil)

	put(t, s, "k", 7, "d:a", "first")
	put(t, s, "k", 7, "d:a", "second")

	cells := s.Cells([]byte("k"), []byte("d:a"), Query{})
	if len(cells) != 1 || string(cells[0].Value) != "second" {
		t.Errorf("Want single overwritten version, got %+v", cells)
	}
}

func TestPointInTimeRead(t *testing.T) {
	s := newTestStore(t, nil)

	put(t, s, "01", 1, "d:name", "Alice")
	put(t, s, "01", 2, "d:name", "Bob")
	put(t, s, "01", 3, "d:name", "Cate")
	put(t, s, "01", 4, "d:name", "Dave")

	tests := []struct {
		before int64
		want   string
	}{
		{1, ""},
		{2, ""}, // Alice was evicted
		{3, "Bob"},
		{4, "Cate"},
		{5, "Dave"},
		{math.MinInt64, ""},
	}

	for _, tt := range tests {
		row := s.Row([]byte("01"), Query{Before: tt.before, HasBefore: true})
		got := values(row)["d:name"]
		if got != tt.want {
			t.Errorf("Before %d: want %q, got %q", tt.before, tt.want, got)
		}
		if tt.want == "" && len(row) != 0 {
			t.Errorf("Before %d: want empty row, got %v", tt.before, values(row))
		}

		// Column restricted path must agree
		row = s.Row([]byte("01"), Query{Columns: [][]byte{[]byte("d:name")}, Before: tt.before, HasBefore: true})
		if got := values(row)["d:name"]; got != tt.want {
			t.Errorf("Before %d (columns): want %q, got %q", tt.before, tt.want, got)
		}
	}
}

func TestRowMixedColumns(t *testing.T) {
	s := newTestStore(t, nil)

	put(t, s, "01", 1, "d:name", "John", "d:age", "20")
	put(t, s, "01", 2, "d:name", "Joe")

	row := s.Row([]byte("01"), Query{})
	if row["d:name"].Timestamp != 2 || row["d:age"].Timestamp != 1 {
		t.Errorf("Unexpected timestamps: %+v", row)
	}

	row = s.Row([]byte("01"), Query{Before: 2, HasBefore: true})
	want := map[string]string{"d:name": "John", "d:age": "20"}
	if !equalMaps(values(row), want) {
		t.Errorf("Want %v, got %v", want, values(row))
	}

	// Unknown row is empty, not an error
	if row := s.Row([]byte("nope"), Query{}); len(row) != 0 {
		t.Errorf("Want empty, got %v", row)
	}
}

func TestPutUnknownFamilyWritesNothing(t *testing.T) {
	s := newTestStore(t, nil)

	err := s.Put([]byte("01"), map[string][]byte{
		"d:name":      []byte("ok"),
		"bad_cf:name": []byte("Dont Care"),
	}, 1)
	if _, ok := err.(*schema.FamilyError); !ok {
		t.Fatalf("Want *schema.FamilyError, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Partial write left %d cells", s.Len())
	}
}

func TestCellsFilters(t *testing.T) {
	s := newTestStore(t, map[string]schema.Overrides{"d": {MaxVersions: schema.Int(10)}})
	for ts := int64(1); ts <= 5; ts++ {
		put(t, s, "k", ts, "d:a", string(rune('a'+ts)))
	}

	if got := s.Cells([]byte("k"), []byte("d:a"), Query{Versions: 2}); len(got) != 2 || got[0].Timestamp != 5 {
		t.Errorf("Versions cap: got %+v", got)
	}
	got := s.Cells([]byte("k"), []byte("d:a"), Query{Before: 3, HasBefore: true})
	if len(got) != 2 || got[0].Timestamp != 2 || got[1].Timestamp != 1 {
		t.Errorf("Before 3: got %+v", got)
	}
	if got := s.Cells([]byte("k"), []byte("d:b"), Query{}); len(got) != 0 {
		t.Errorf("Missing column: got %+v", got)
	}
}

func TestDeleteRow(t *testing.T) {
	s := newTestStore(t, nil)

	put(t, s, "1", 1, "d:name", "Gary")
	put(t, s, "1", 1, "d:age", "21")
	put(t, s, "2", 5, "d:name", "Frank")

	if n := s.DeleteRow([]byte("1")); n != 2 {
		t.Errorf("Want 2 deleted, got %d", n)
	}
	if row := s.Row([]byte("1"), Query{}); len(row) != 0 {
		t.Errorf("Row 1 still present: %v", values(row))
	}
	if keys := s.RowKeys(nil, nil); len(keys) != 1 || string(keys[0]) != "2" {
		t.Errorf("Row keys: %q", keys)
	}
}

func TestDeleteColumnsAndTimestamp(t *testing.T) {
	s := newTestStore(t, nil)
	for ts, suffix := range map[int64]string{1: "1", 2: "2", 3: "3"} {
		put(t, s, "key", ts, "d:a", "a"+suffix, "d:b", "b"+suffix, "d:c", "c"+suffix)
	}

	s.Delete([]byte("key"), [][]byte{[]byte("d:a"), []byte("d:b")}, 2)

	want := map[string]string{"d:a": "a3", "d:b": "b3", "d:c": "c3"}
	if got := values(s.Row([]byte("key"), Query{})); !equalMaps(got, want) {
		t.Errorf("Latest: want %v, got %v", want, got)
	}
	want = map[string]string{"d:c": "c2"}
	if got := values(s.Row([]byte("key"), Query{Before: 3, HasBefore: true})); !equalMaps(got, want) {
		t.Errorf("Before 3: want %v, got %v", want, got)
	}

	// Timestamp bound over every column
	s.Delete([]byte("key"), nil, 2)
	if got := s.Row([]byte("key"), Query{Before: 3, HasBefore: true}); len(got) != 0 {
		t.Errorf("Before 3 after delete: want empty, got %v", values(got))
	}
	if got := s.Cells([]byte("key"), []byte("d:c"), Query{}); len(got) != 1 || got[0].Timestamp != 3 {
		t.Errorf("Newer version must survive: %+v", got)
	}

	// Removing the last versions removes the row
	s.Delete([]byte("key"), nil, 3)
	if keys := s.RowKeys(nil, nil); len(keys) != 0 {
		t.Errorf("Empty row still listed: %q", keys)
	}
}

func TestRowKeys(t *testing.T) {
	s := newTestStore(t, nil)
	for _, k := range []string{"b", "a", "c\xff", "c", "ab"} {
		put(t, s, k, 1, "d:x", k, "d:y", k)
	}

	tests := []struct {
		start, stop []byte
		want        []string
	}{
		{nil, nil, []string{"a", "ab", "b", "c", "c\xff"}},
		{[]byte("ab"), []byte("c"), []string{"ab", "b"}},
		{[]byte("c"), nil, []string{"c", "c\xff"}},
		{[]byte("z"), nil, nil},
	}

	for _, tt := range tests {
		keys := s.RowKeys(tt.start, tt.stop)
		if len(keys) != len(tt.want) {
			t.Errorf("[%q,%q): want %q, got %q", tt.start, tt.stop, tt.want, keys)
			continue
		}
		for i := range keys {
			if !bytes.Equal(keys[i], []byte(tt.want[i])) {
				t.Errorf("[%q,%q): want %q, got %q", tt.start, tt.stop, tt.want, keys)
				break
			}
		}
	}
}

func TestCompressedFamily(t *testing.T) {
	s := newTestStore(t, map[string]schema.Overrides{
		"z": {Compression: schema.String(schema.CompressionSnappy)},
	})

	big := bytes.Repeat([]byte("wide column "), 100)
	if err := s.Put([]byte("r"), map[string][]byte{"z:blob": big}, 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var stored int
	s.tree.Ascend(func(i btree.Item) bool {
		stored = len(i.(*cell).value)
		return false
	})
	if stored >= len(big) {
		t.Errorf("Value not compressed: %d bytes stored", stored)
	}

	row := s.Row([]byte("r"), Query{})
	if !bytes.Equal(row["z:blob"].Value, big) {
		t.Errorf("Round trip mismatch")
	}
}

func TestTimeToLive(t *testing.T) {
	s := newTestStore(t, map[string]schema.Overrides{"d": {TimeToLive: schema.Int(10)}})

	put(t, s, "k", 1000, "d:a", "old")
	put(t, s, "k", 20000, "d:a", "new")

	// now=25000: cutoff 15000, only "new" visible
	cells := s.Cells([]byte("k"), []byte("d:a"), Query{Now: 25000})
	if len(cells) != 1 || string(cells[0].Value) != "new" {
		t.Errorf("Want only new, got %+v", cells)
	}
	// Point in time before "new" lands on an expired version
	row := s.Row([]byte("k"), Query{Before: 20000, HasBefore: true, Now: 25000})
	if len(row) != 0 {
		t.Errorf("Expired version visible: %v", values(row))
	}
	row = s.Row([]byte("k"), Query{Before: 20000, HasBefore: true, Now: 5000})
	if values(row)["d:a"] != "old" {
		t.Errorf("Unexpired version hidden: %v", values(row))
	}
}

func TestCounters(t *testing.T) {
	s := newTestStore(t, nil)
	row, col := []byte("tina"), []byte("d:age")

	if v, err := s.Counter(row, col, 0); err != nil || v != 0 {
		t.Fatalf("Absent counter: want 0, got %d (%v)", v, err)
	}

	put(t, s, "tina", 1, "d:age", "junkjunk")
	put(t, s, "tina", 2, "d:age", "more-junk")
	if err := s.SetCounter(row, col, 20, 3); err != nil {
		t.Fatalf("SetCounter failed: %v", err)
	}
	if cells := s.Cells(row, col, Query{}); len(cells) != 1 {
		t.Errorf("SetCounter must leave a single version, got %d", len(cells))
	}

	v, err := s.AddCounter(row, col, 5, 4)
	if err != nil || v != 25 {
		t.Errorf("AddCounter: want 25, got %d (%v)", v, err)
	}
	v, err = s.AddCounter(row, col, -30, 5)
	if err != nil || v != -5 {
		t.Errorf("AddCounter: want -5, got %d (%v)", v, err)
	}

	if err := s.SetCounter(row, []byte("x:age"), 1, 6); err == nil {
		t.Errorf("SetCounter on unknown family must fail")
	}
}

func TestCounterOverflow(t *testing.T) {
	s := newTestStore(t, nil)
	row, col := []byte("tina"), []byte("d:n")

	tests := []struct {
		start int64
		add   bool
		delta int64
	}{
		{0, false, math.MinInt64},
		{math.MaxInt64, true, 1},
		{math.MinInt64, true, -1},
		{-2, false, math.MaxInt64},
		{1, true, math.MaxInt64},
	}

	for _, tt := range tests {
		s.SetCounter(row, col, tt.start, 1)
		var err error
		if tt.add {
			_, err = s.AddCounter(row, col, tt.delta, 2)
		} else {
			_, err = s.SubCounter(row, col, tt.delta, 2)
		}
		if !errors.IsNotValid(err) {
			t.Errorf("%d (add=%v) %d: want not valid, got %v", tt.start, tt.add, tt.delta, err)
		}
		if v, _ := s.Counter(row, col, 0); v != tt.start {
			t.Errorf("Counter changed on overflow: want %d, got %d", tt.start, v)
		}
	}

	// Edges that still fit
	s.SetCounter(row, col, -1, 1)
	if v, err := s.SubCounter(row, col, math.MinInt64, 2); err != nil || v != math.MaxInt64 {
		t.Errorf("-1 - MinInt64: want MaxInt64, got %d (%v)", v, err)
	}
	if v, err := s.AddCounter(row, col, math.MinInt64, 3); err != nil || v != -1 {
		t.Errorf("MaxInt64 + MinInt64: want -1, got %d (%v)", v, err)
	}
}
