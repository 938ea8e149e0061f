package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger"
)

func TestConsume_BoundsConcurrentHandlers(t *testing.T) {
	const limit, total = 2, 10

	var running, peak, handled atomic.Int32
	release := make(chan struct{})
	handle := func(_ context.Context, _ []byte) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		handled.Add(1)
	}

	ch := make(chan *redis.Message)
	s := NewSubscriber(nil, "changes", logger.Nop())
	done := make(chan error, 1)
	go func() { done <- s.consume(context.Background(), ch, handle, limit) }()
	go func() {
		for i := 0; i < total; i++ {
			ch <- &redis.Message{Channel: "changes", Payload: fmt.Sprintf(`{"n":%d}`, i)}
		}
		close(ch)
	}()

	require.Eventually(t, func() bool { return running.Load() == limit }, time.Second, 5*time.Millisecond)
	// The next message waits for a free slot.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(limit), running.Load())
	close(release)

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "redis channel changes closed")
	case <-time.After(time.Second):
		t.Fatal("consume did not return after the channel closed")
	}
	assert.Equal(t, int32(total), handled.Load())
	assert.Equal(t, int32(limit), peak.Load())
}

func TestConsume_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSubscriber(nil, "changes", logger.Nop())
	err := s.consume(ctx, make(chan *redis.Message), func(context.Context, []byte) {}, 1)
	assert.NoError(t, err)
}
