package relay_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk-ai/agenthub/internal/queue"
	"github.com/fintalk-ai/agenthub/internal/relay"
)

// fakeTransport is an in-memory Transport for worker tests.
type fakeTransport struct {
	mu         sync.Mutex
	inbound    []queue.Message
	acked      map[int64]bool
	outbound   []string
	publishErr error
}

func newFakeTransport(payloads ...string) *fakeTransport {
	f := &fakeTransport{acked: make(map[int64]bool)}
	for i, p := range payloads {
		f.inbound = append(f.inbound, queue.Message{ID: int64(i + 1), Payload: p})
	}
	return f
}

func (f *fakeTransport) Claim(ctx context.Context, q string, limit int) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []queue.Message
	for i := range f.inbound {
		if f.acked[f.inbound[i].ID] {
			continue
		}
		f.inbound[i].Attempts++
		out = append(out, f.inbound[i])
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTransport) Publish(ctx context.Context, q, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.outbound = append(f.outbound, payload)
	return nil
}

func (f *fakeTransport) Ack(ctx context.Context, q string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked[id] = true
	return nil
}

func (f *fakeTransport) Nack(ctx context.Context, q string, id int64) error {
	return nil
}

func (f *fakeTransport) snapshot() (outbound []string, acked int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	outbound = append([]string(nil), f.outbound...)
	return outbound, len(f.acked)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestWorkerRelaysOneMessagePerEnvelope(t *testing.T) {
	transport := newFakeTransport(
		`{"customer_id":"c1","correlation_id":"r1"}`,
		`{"customer_id":"c2","correlation_id":"r2"}`,
	)
	w := relay.NewWorker(transport, "in", "out", testLogger(), 10*time.Millisecond, 16)

	w.Start(context.Background())
	require.Eventually(t, func() bool {
		outbound, acked := transport.snapshot()
		return len(outbound) == 2 && acked == 2
	}, 2*time.Second, 10*time.Millisecond)

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Drain(drainCtx)

	outbound, _ := transport.snapshot()
	seen := map[string]bool{}
	for _, payload := range outbound {
		env, status, err := relay.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, relay.StatusFailed, status.Status)
		assert.Equal(t, env.CorrelationID, status.CorrelationID)
		seen[env.CorrelationID] = true
	}
	assert.True(t, seen["r1"] && seen["r2"])
}

func TestWorkerDropsMalformedWithoutPublishing(t *testing.T) {
	transport := newFakeTransport(`this is not json`)
	w := relay.NewWorker(transport, "in", "out", testLogger(), 10*time.Millisecond, 16)

	w.Start(context.Background())
	require.Eventually(t, func() bool {
		_, acked := transport.snapshot()
		return acked == 1
	}, 2*time.Second, 10*time.Millisecond)

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Drain(drainCtx)

	outbound, _ := transport.snapshot()
	assert.Empty(t, outbound, "malformed input must produce zero output messages")
}

func TestWorkerLeavesMessageOnPublishFailure(t *testing.T) {
	transport := newFakeTransport(`{"customer_id":"c1","correlation_id":"r1"}`)
	transport.publishErr = fmt.Errorf("broker unavailable")
	w := relay.NewWorker(transport, "in", "out", testLogger(), 10*time.Millisecond, 16)

	w.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Drain(drainCtx)

	_, acked := transport.snapshot()
	assert.Zero(t, acked, "message must stay queued when publish fails")
}

func TestWorkerWake(t *testing.T) {
	transport := newFakeTransport(`{"customer_id":"c1","correlation_id":"r1"}`)
	// Long poll interval: only an explicit wake can trigger the batch in time.
	w := relay.NewWorker(transport, "in", "out", testLogger(), time.Hour, 16)

	w.Start(context.Background())
	w.Wake()

	require.Eventually(t, func() bool {
		outbound, _ := transport.snapshot()
		return len(outbound) == 1
	}, 2*time.Second, 10*time.Millisecond)

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Drain(drainCtx)
}
