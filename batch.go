package widetable

import (
	"bytes"

	"github.com/juju/errors"

	"github.com/myuser/widetable/internal/metrics"
)

// Batch queues puts and deletes against one table and applies them, in
// order, on Send. A Batch is not safe for concurrent use.
type Batch struct {
	table        *Table
	timestamp    int64
	hasTimestamp bool
	size         int
	pending      []func() error
}

// Batch starts an empty batch. WithTimestamp fixes the timestamp of every
// queued mutation, overriding per-call timestamps; without it each mutation
// takes its own timestamp when sent. WithBatchSize sends automatically once
// that many mutations are queued.
func (t *Table) Batch(opts ...Option) *Batch {
	o := collect(opts)
	return &Batch{
		table:        t,
		timestamp:    o.timestamp,
		hasTimestamp: o.hasTimestamp,
		size:         o.batchSize,
	}
}

// WithBatch runs fn with a fresh batch and sends it however fn exits,
// including by panic. An error from fn is returned in preference to one
// from Send.
func (t *Table) WithBatch(fn func(*Batch) error, opts ...Option) (err error) {
	b := t.Batch(opts...)
	defer func() {
		if serr := b.Send(); err == nil {
			err = serr
		}
	}()
	return fn(b)
}

// Len returns the number of queued mutations.
func (b *Batch) Len() int {
	return len(b.pending)
}

func (b *Batch) withTimestamp(opts []Option) []Option {
	if !b.hasTimestamp {
		return opts
	}
	return append(opts[:len(opts):len(opts)], WithTimestamp(b.timestamp))
}

// Put queues a put. Nothing is visible until the batch is sent.
func (b *Batch) Put(row []byte, data map[string][]byte, opts ...Option) error {
	row = bytes.Clone(row)
	copied := make(map[string][]byte, len(data))
	for col, v := range data {
		copied[col] = bytes.Clone(v)
	}
	opts = b.withTimestamp(opts)

	return b.enqueue(func() error {
		return b.table.Put(row, copied, opts...)
	})
}

// Delete queues a delete with the same semantics as Table.Delete.
func (b *Batch) Delete(row []byte, opts ...Option) error {
	row = bytes.Clone(row)
	opts = b.withTimestamp(opts)

	return b.enqueue(func() error {
		return b.table.Delete(row, opts...)
	})
}

func (b *Batch) enqueue(op func() error) error {
	b.pending = append(b.pending, op)
	if b.size > 0 && len(b.pending) >= b.size {
		return b.Send()
	}
	return nil
}

// Send applies the queued mutations in order and empties the queue. It
// stops at the first failure: mutations applied before it stay applied, and
// the ones queued after it are discarded without being applied. The error
// names the failing mutation and how many were discarded.
func (b *Batch) Send() error {
	ops := b.pending
	b.pending = nil
	if len(ops) == 0 {
		return nil
	}

	metrics.Inc(metrics.BatchSend)
	for i, op := range ops {
		if err := op(); err != nil {
			return errors.Annotatef(err, "batch mutation %d of %d (%d discarded)", i+1, len(ops), len(ops)-i-1)
		}
		metrics.Inc(metrics.BatchMutations)
	}
	return nil
}
