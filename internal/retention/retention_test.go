package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	expired int
	cutoffs []time.Time
	calls   int
}

func (f *fakeRepo) PurgeDequeued(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	n := f.expired
	if n > limit {
		n = limit
	}
	f.expired -= n
	return n, nil
}

func (f *fakeRepo) remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func TestPurge_DrainsInBatches(t *testing.T) {
	repo := &fakeRepo{expired: 7}
	p := NewProcessor(repo, nil, 24*time.Hour, 3, time.Hour)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p.clock = func() time.Time { return now }

	n, err := p.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 3, repo.calls)
	assert.Equal(t, now.Add(-24*time.Hour), repo.cutoffs[0])
}

func TestPurge_ExactBatchChecksOnceMore(t *testing.T) {
	repo := &fakeRepo{expired: 3}
	p := NewProcessor(repo, nil, time.Hour, 3, time.Hour)

	n, err := p.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, repo.calls)
}

func TestRunner_StartStop(t *testing.T) {
	defer leaktest.Check(t)()

	repo := &fakeRepo{expired: 5}
	r := NewRunner(NewProcessor(repo, nil, time.Hour, 2, 5*time.Millisecond))
	r.Start(context.Background())

	require.Eventually(t, func() bool { return repo.remaining() == 0 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()
}

func TestRunner_StopsWithParentContext(t *testing.T) {
	defer leaktest.Check(t)()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(NewProcessor(&fakeRepo{}, nil, time.Hour, 10, time.Hour))
	r.Start(ctx)
	cancel()
	r.Stop()
}
