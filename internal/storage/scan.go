package storage

import "github.com/syndtr/goleveldb/leveldb/util"

// PrefixRange returns the [start, stop) row range holding every key that
// begins with prefix. stop is the prefix with its last non-0xFF byte
// incremented and the rest cut off; it is nil when no such byte exists,
// which leaves the range open ended.
func PrefixRange(prefix []byte) (start, stop []byte) {
	r := util.BytesPrefix(prefix)
	return r.Start, r.Limit
}
