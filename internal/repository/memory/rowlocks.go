package memory

import (
	"context"
	"sync"

	"market-gateway/internal/domain/actor"
)

// rowLocks plays the part of SELECT ... FOR UPDATE on the queue row: one
// holder per receiver, released when its transaction ends.
type rowLocks struct {
	mu   sync.Mutex
	rows map[actor.Receiver]*rowLock
}

type rowLock struct {
	held chan struct{}
	refs int
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: map[actor.Receiver]*rowLock{}}
}

func (l *rowLocks) lock(ctx context.Context, r actor.Receiver) (func(), error) {
	l.mu.Lock()
	row, ok := l.rows[r]
	if !ok {
		row = &rowLock{held: make(chan struct{}, 1)}
		l.rows[r] = row
	}
	row.refs++
	l.mu.Unlock()

	select {
	case row.held <- struct{}{}:
	case <-ctx.Done():
		l.drop(r, row)
		return nil, ctx.Err()
	}
	return func() {
		<-row.held
		l.drop(r, row)
	}, nil
}

func (l *rowLocks) drop(r actor.Receiver, row *rowLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row.refs--
	if row.refs == 0 {
		delete(l.rows, r)
	}
}

func (l *rowLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
