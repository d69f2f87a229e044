package schema

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/juju/errors"
)

// Compression codecs understood by the cell store. Any other value is kept
// as metadata only.
const (
	CompressionNone   = "NONE"
	CompressionSnappy = "SNAPPY"
)

// FamilyOptions is the resolved option set of one column family.
type FamilyOptions struct {
	Name                  string `json:"name"`
	BlockCacheEnabled     bool   `json:"block_cache_enabled"`
	BloomFilterNbHashes   int    `json:"bloom_filter_nb_hashes"`
	BloomFilterType       string `json:"bloom_filter_type"`
	BloomFilterVectorSize int    `json:"bloom_filter_vector_size"`
	Compression           string `json:"compression"`
	InMemory              bool   `json:"in_memory"`
	MaxVersions           int    `json:"max_versions"`
	TimeToLive            int    `json:"time_to_live"`
}

// Defaults returns the option table every family starts from.
func Defaults() FamilyOptions {
	return FamilyOptions{
		BlockCacheEnabled:     false,
		BloomFilterNbHashes:   0,
		BloomFilterType:       "NONE",
		BloomFilterVectorSize: 0,
		Compression:           CompressionNone,
		InMemory:              false,
		MaxVersions:           3,
		TimeToLive:            -1,
	}
}

// Overrides holds caller supplied option values. Nil fields keep the default.
type Overrides struct {
	BlockCacheEnabled     *bool   `json:"block_cache_enabled,omitempty"`
	BloomFilterNbHashes   *int    `json:"bloom_filter_nb_hashes,omitempty"`
	BloomFilterType       *string `json:"bloom_filter_type,omitempty"`
	BloomFilterVectorSize *int    `json:"bloom_filter_vector_size,omitempty"`
	Compression           *string `json:"compression,omitempty"`
	InMemory              *bool   `json:"in_memory,omitempty"`
	MaxVersions           *int    `json:"max_versions,omitempty"`
	TimeToLive            *int    `json:"time_to_live,omitempty"`
}

func Int(v int) *int          { return &v }
func Bool(v bool) *bool       { return &v }
func String(v string) *string { return &v }

// Resolve overlays o onto the defaults and names the result.
func Resolve(name string, o Overrides) (FamilyOptions, error) {
	if name == "" {
		return FamilyOptions{}, errors.NotValidf("empty family name")
	}
	opts := Defaults()
	opts.Name = name
	if o.BlockCacheEnabled != nil {
		opts.BlockCacheEnabled = *o.BlockCacheEnabled
	}
	if o.BloomFilterNbHashes != nil {
		opts.BloomFilterNbHashes = *o.BloomFilterNbHashes
	}
	if o.BloomFilterType != nil {
		opts.BloomFilterType = *o.BloomFilterType
	}
	if o.BloomFilterVectorSize != nil {
		opts.BloomFilterVectorSize = *o.BloomFilterVectorSize
	}
	if o.Compression != nil {
		opts.Compression = *o.Compression
	}
	if o.InMemory != nil {
		opts.InMemory = *o.InMemory
	}
	if o.MaxVersions != nil {
		opts.MaxVersions = *o.MaxVersions
	}
	if o.TimeToLive != nil {
		opts.TimeToLive = *o.TimeToLive
	}

	if opts.MaxVersions < 1 {
		return FamilyOptions{}, errors.NotValidf("family %q max_versions %d", name, opts.MaxVersions)
	}
	return opts, nil
}

// FamilyError reports a column whose family is not registered on the table.
type FamilyError struct {
	Family string
	Column []byte
}

func (e *FamilyError) Error() string {
	return fmt.Sprintf("no such column family %q (column %q)", e.Family, e.Column)
}

// FamilyOf returns the part of column before the first colon, or the whole
// column when it has none.
func FamilyOf(column []byte) []byte {
	if i := bytes.IndexByte(column, ':'); i >= 0 {
		return column[:i]
	}
	return column
}

// Registry is the immutable family schema of one table.
type Registry struct {
	families map[string]FamilyOptions
}

// NewRegistry resolves every family in defs.
func NewRegistry(defs map[string]Overrides) (*Registry, error) {
	if len(defs) == 0 {
		return nil, errors.NotValidf("table without column families")
	}
	r := &Registry{families: make(map[string]FamilyOptions, len(defs))}
	for name, o := range defs {
		opts, err := Resolve(name, o)
		if err != nil {
			return nil, err
		}
		r.families[name] = opts
	}
	return r, nil
}

// Family looks up a family by name.
func (r *Registry) Family(name string) (FamilyOptions, bool) {
	opts, ok := r.families[name]
	return opts, ok
}

// Lookup resolves the family a column belongs to.
func (r *Registry) Lookup(column []byte) (FamilyOptions, error) {
	family := FamilyOf(column)
	opts, ok := r.families[string(family)]
	if !ok {
		return FamilyOptions{}, &FamilyError{Family: string(family), Column: column}
	}
	return opts, nil
}

// Validate checks every column before anything is written.
func (r *Registry) Validate(columns [][]byte) error {
	for _, c := range columns {
		if _, err := r.Lookup(c); err != nil {
			return err
		}
	}
	return nil
}

// All returns a copy of the resolved options keyed by family name.
func (r *Registry) All() map[string]FamilyOptions {
	out := make(map[string]FamilyOptions, len(r.families))
	for name, opts := range r.families {
		out[name] = opts
	}
	return out
}

// Names returns the family names in ascending order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
