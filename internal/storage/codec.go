package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/schema"
)

// CounterSize is the width of an encoded counter.
const CounterSize = 8

// EncodeCounter encodes v as a big-endian two's-complement 64-bit integer.
func EncodeCounter(v int64) []byte {
	buf := make([]byte, CounterSize)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeCounter is the inverse of EncodeCounter.
func DecodeCounter(b []byte) (int64, error) {
	if len(b) != CounterSize {
		return 0, errors.NotValidf("counter value of %d bytes", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// encodeValue returns the stored form of v for a family. The result never
// aliases v.
func encodeValue(opts schema.FamilyOptions, v []byte) []byte {
	if opts.Compression == schema.CompressionSnappy {
		return snappy.Encode(nil, v)
	}
	return bytes.Clone(v)
}

// decodeValue returns a caller-owned copy of the logical value.
func decodeValue(opts schema.FamilyOptions, stored []byte) []byte {
	if opts.Compression == schema.CompressionSnappy {
		v, err := snappy.Decode(nil, stored)
		if err == nil {
			return v
		}
	}
	return bytes.Clone(stored)
}
