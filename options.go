package widetable

// Option tunes a single table, scan or batch call. Options that do not apply
// to a call are ignored by it.
type Option func(*options)

type options struct {
	columns          [][]byte
	timestamp        int64
	hasTimestamp     bool
	includeTimestamp bool
	versions         int

	rowStart, rowStop, rowPrefix []byte
	hasStart, hasStop, hasPrefix bool

	limit    int
	hasLimit bool
	reverse  bool

	batchSize int
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithColumns restricts reads to, or deletes only, the given columns.
func WithColumns(columns ...[]byte) Option {
	return func(o *options) { o.columns = append(o.columns, columns...) }
}

// WithTimestamp sets the write timestamp of a put, the inclusive upper bound
// of a delete, or the exclusive as-of time of a read, in milliseconds.
func WithTimestamp(ts int64) Option {
	return func(o *options) {
		o.timestamp = ts
		o.hasTimestamp = true
	}
}

// IncludeTimestamp fills Cell.Timestamp in read results.
func IncludeTimestamp() Option {
	return func(o *options) { o.includeTimestamp = true }
}

// WithVersions caps the number of versions Cells returns.
func WithVersions(n int) Option {
	return func(o *options) { o.versions = n }
}

// WithRowStart sets the inclusive first row of a scan.
func WithRowStart(row []byte) Option {
	return func(o *options) {
		o.rowStart = row
		o.hasStart = true
	}
}

// WithRowStop sets the exclusive last row of a scan.
func WithRowStop(row []byte) Option {
	return func(o *options) {
		o.rowStop = row
		o.hasStop = true
	}
}

// WithRowPrefix scans only rows starting with prefix. It cannot be combined
// with WithRowStart or WithRowStop.
func WithRowPrefix(prefix []byte) Option {
	return func(o *options) {
		o.rowPrefix = prefix
		o.hasPrefix = true
	}
}

// WithLimit caps the number of rows a scan yields.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
		o.hasLimit = true
	}
}

// Reversed makes a scan yield rows in descending key order.
func Reversed() Option {
	return func(o *options) { o.reverse = true }
}

// WithBatchSize makes a batch send itself once it holds n mutations.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}
