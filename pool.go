package widetable

import (
	"context"

	"github.com/juju/errors"
)

// Pool limits how many callers use a connection at once.
type Pool struct {
	conn  *Connection
	slots chan struct{}
}

// NewPool returns a pool of size slots over conn.
func NewPool(size int, conn *Connection) (*Pool, error) {
	if size <= 0 {
		return nil, errors.NotValidf("pool size %d", size)
	}
	return &Pool{
		conn:  conn,
		slots: make(chan struct{}, size),
	}, nil
}

// Connection waits for a free slot, opens the connection and runs fn with
// it. The slot is released when fn returns.
func (p *Pool) Connection(ctx context.Context, fn func(*Connection) error) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
	defer func() { <-p.slots }()

	p.conn.Open()
	return fn(p.conn)
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return cap(p.slots)
}
