package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/fintalk-ai/agenthub/internal/queue"
	"github.com/fintalk-ai/agenthub/internal/telemetry"
)

// Transport is the slice of the queue layer the worker needs. Implemented by
// *queue.DB and by test fakes.
type Transport interface {
	Claim(ctx context.Context, queue string, limit int) ([]queue.Message, error)
	Publish(ctx context.Context, queue, payload string) error
	Ack(ctx context.Context, queue string, id int64) error
	Nack(ctx context.Context, queue string, id int64) error
}

// Worker consumes the inbound queue and publishes transformed messages to
// the outbound queue. Each message is handled independently; a batch is just
// a claim-size optimization.
type Worker struct {
	transport    Transport
	inbound      string
	outbound     string
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int

	started    atomic.Bool
	cancelLoop context.CancelFunc
	done       chan struct{}
	once       sync.Once
	wake       chan struct{}

	relayed metric.Int64Counter
	dropped metric.Int64Counter
}

// NewWorker creates a relay worker.
func NewWorker(transport Transport, inbound, outbound string, logger *slog.Logger, pollInterval time.Duration, batchSize int) *Worker {
	return &Worker{
		transport:    transport,
		inbound:      inbound,
		outbound:     outbound,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		done:         make(chan struct{}),
		wake:         make(chan struct{}, 1),
	}
}

// Start begins the background poll loop. It is safe to call only once;
// subsequent calls are no-ops and log a warning.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("relay: Start called more than once, ignoring")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancelLoop = cancel
	go w.pollLoop(loopCtx)
}

// Wake nudges the worker to poll immediately, typically on a queue
// notification. Safe to call from any goroutine; redundant wakes coalesce.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Drain stops the poll loop, processes one final batch, and blocks until
// done or the context expires.
func (w *Worker) Drain(ctx context.Context) {
	if w.cancelLoop != nil {
		w.cancelLoop()
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("relay: drain timed out")
	}
}

func (w *Worker) registerMetrics() {
	meter := telemetry.Meter("agenthub/relay")
	var err error
	if w.relayed, err = meter.Int64Counter("relay.messages.relayed"); err != nil {
		w.logger.Warn("relay: register relayed counter", "error", err)
	}
	if w.dropped, err = meter.Int64Counter("relay.messages.dropped"); err != nil {
		w.logger.Warn("relay: register dropped counter", "error", err)
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain with its own deadline; ctx is already dead.
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.processBatch(drainCtx)
			cancel()
			w.once.Do(func() { close(w.done) })
			return
		case <-ticker.C:
		case <-w.wake:
		}

		batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		w.processBatch(batchCtx)
		cancel()
	}
}

// processBatch claims inbound messages and relays each one. Transform
// failures drop the message (ack without publish); transport failures nack
// so the queue redelivers.
func (w *Worker) processBatch(ctx context.Context) {
	messages, err := w.transport.Claim(ctx, w.inbound, w.batchSize)
	if err != nil {
		w.logger.Error("relay: claim inbound", "error", err)
		return
	}

	for _, msg := range messages {
		encoded, err := Transform([]byte(msg.Payload))
		if err != nil {
			// Malformed input: log and drop, never publish.
			w.logger.Warn("relay: dropping unparseable message", "id", msg.ID, "error", err)
			if w.dropped != nil {
				w.dropped.Add(ctx, 1)
			}
			if err := w.transport.Ack(ctx, w.inbound, msg.ID); err != nil {
				w.logger.Error("relay: ack dropped message", "id", msg.ID, "error", err)
			}
			continue
		}

		if err := w.transport.Publish(ctx, w.outbound, encoded); err != nil {
			w.logger.Error("relay: publish outbound", "id", msg.ID, "error", err)
			if err := w.transport.Nack(ctx, w.inbound, msg.ID); err != nil {
				w.logger.Error("relay: nack after publish failure", "id", msg.ID, "error", err)
			}
			continue
		}
		if err := w.transport.Ack(ctx, w.inbound, msg.ID); err != nil {
			// Publish succeeded but the ack did not: the queue will
			// redeliver and the downstream sees a duplicate. That is the
			// at-least-once contract.
			w.logger.Error("relay: ack relayed message", "id", msg.ID, "error", err)
			continue
		}
		if w.relayed != nil {
			w.relayed.Add(ctx, 1)
		}
		w.logger.Info("relay: message relayed", "id", msg.ID, "attempts", msg.Attempts)
	}
}
