package widetable

import (
	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/metrics"
)

// Counters are cells holding a signed 64-bit big-endian integer. The
// read-modify-write of CounterInc and CounterDec runs under the table lock,
// so concurrent increments do not lose updates.

// CounterGet returns the counter at (row, column), zero when absent.
func (t *Table) CounterGet(row, column []byte) (int64, error) {
	st, err := t.state()
	if err != nil {
		return 0, errors.Trace(err)
	}
	v, err := st.Cells.Counter(row, column, t.conn.now())
	return v, errors.Trace(err)
}

// CounterSet replaces every version of (row, column) with value.
func (t *Table) CounterSet(row, column []byte, value int64) error {
	st, err := t.state()
	if err != nil {
		return errors.Trace(err)
	}
	metrics.Inc(metrics.CounterUpdate)
	return errors.Trace(st.Cells.SetCounter(row, column, value, t.conn.now()))
}

// CounterInc adds value and returns the new counter. A result outside the
// int64 range fails InvalidArgument and leaves the counter as it was.
func (t *Table) CounterInc(row, column []byte, value int64) (int64, error) {
	st, err := t.state()
	if err != nil {
		return 0, errors.Trace(err)
	}
	metrics.Inc(metrics.CounterUpdate)
	v, err := st.Cells.AddCounter(row, column, value, t.conn.now())
	return v, errors.Trace(err)
}

// CounterDec subtracts value and returns the new counter.
func (t *Table) CounterDec(row, column []byte, value int64) (int64, error) {
	st, err := t.state()
	if err != nil {
		return 0, errors.Trace(err)
	}
	metrics.Inc(metrics.CounterUpdate)
	v, err := st.Cells.SubCounter(row, column, value, t.conn.now())
	return v, errors.Trace(err)
}
