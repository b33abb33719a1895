package services

import (
	"context"
	"sync"

	"market-gateway/internal/domain/actor"
)

// ReceiverLocker serializes operations on one receiver's queue inside this
// process. Different receivers never wait on each other.
type ReceiverLocker struct {
	mu    sync.Mutex
	locks map[actor.Receiver]*receiverLock
}

type receiverLock struct {
	held chan struct{}
	refs int
}

func NewReceiverLocker() *ReceiverLocker {
	return &ReceiverLocker{locks: map[actor.Receiver]*receiverLock{}}
}

// Lock blocks until the receiver's lock is acquired or ctx is done. The
// returned unlock function may be called more than once.
func (l *ReceiverLocker) Lock(ctx context.Context, r actor.Receiver) (func(), error) {
	l.mu.Lock()
	rl, ok := l.locks[r]
	if !ok {
		rl = &receiverLock{held: make(chan struct{}, 1)}
		l.locks[r] = rl
	}
	rl.refs++
	l.mu.Unlock()

	select {
	case rl.held <- struct{}{}:
	case <-ctx.Done():
		l.release(r, rl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-rl.held
			l.release(r, rl)
		})
	}, nil
}

func (l *ReceiverLocker) release(r actor.Receiver, rl *receiverLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, r)
	}
}

// size is the number of receivers with a holder or waiter.
func (l *ReceiverLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
