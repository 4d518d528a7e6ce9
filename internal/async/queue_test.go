package async

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorQueue_DrainsOnShutdown(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	q := NewProcessorQueue(func(ctx context.Context, j Job) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		mu.Lock()
		seen = append(seen, j.Path)
		mu.Unlock()
	}, nil, WithWorkers(3), WithQueueSize(2), WithProcessTimeout(time.Second))

	for _, p := range []string{"a.pdf", "b.pdf", "c.png", "d.jpg"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	q.Shutdown(context.Background())

	sort.Strings(seen)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.png", "d.jpg"}, seen)
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.pdf"}), ErrQueueClosed)
}

func TestProcessorQueue_EnqueueRespectsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewProcessorQueue(func(context.Context, Job) { <-release }, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "busy"}))
	// The worker may or may not have taken "busy" yet; fill until blocked.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(ctx, Job{Path: "more"})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
