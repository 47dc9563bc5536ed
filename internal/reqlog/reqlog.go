// Package reqlog implements a non-blocking, batched request logger.
//
// Log entries are written to an internal buffered channel and flushed in
// batches by a background goroutine, so logging never blocks the request
// handler. If the channel fills up, new entries are dropped and counted in
// DroppedLogs.
package reqlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	channelBuffer = 10_000
	batchSize     = 100
	flushInterval = time.Second
)

// Entry records the outcome of one /generate call.
type Entry struct {
	RequestID uuid.UUID
	Provider  string
	Model     string
	Status    int
	LatencyMs int64
	CreatedAt time.Time
}

// Logger batches Entry values and flushes them through slog.
type Logger struct {
	ch        chan Entry
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	dropped int64

	baseCtx context.Context
	log     *slog.Logger
}

// New starts a Logger's background flush goroutine. The goroutine exits,
// flushing any buffered entries, when Close is called.
func New(ctx context.Context, slogger *slog.Logger) (*Logger, error) {
	if ctx == nil {
		return nil, fmt.Errorf("reqlog: context must not be nil")
	}
	if slogger == nil {
		slogger = slog.Default()
	}

	l := &Logger{
		ch:      make(chan Entry, channelBuffer),
		done:    make(chan struct{}),
		baseCtx: ctx,
		log:     slogger,
	}

	l.wg.Add(1)
	go l.run()

	return l, nil
}

// Log enqueues entry. It never blocks: when the channel is full the entry is
// dropped and DroppedLogs is incremented.
func (l *Logger) Log(entry Entry) {
	select {
	case l.ch <- entry:
	default:
		atomic.AddInt64(&l.dropped, 1)
	}
}

// DroppedLogs returns the cumulative number of entries dropped so far.
func (l *Logger) DroppedLogs() int64 {
	return atomic.LoadInt64(&l.dropped)
}

// Close stops the background goroutine after flushing any buffered entries.
// Safe to call more than once.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			l.log.InfoContext(ctx, "generate_request",
				slog.String("request_id", e.RequestID.String()),
				slog.String("provider", e.Provider),
				slog.String("model", e.Model),
				slog.Int("status", e.Status),
				slog.Int64("latency_ms", e.LatencyMs),
				slog.Time("created_at", normalizeTime(e.CreatedAt)),
			)
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-l.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush(l.baseCtx)
			}

		case <-ticker.C:
			flush(l.baseCtx)

		case <-l.done:
			for {
				select {
				case entry := <-l.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush(l.baseCtx)
					}
				default:
					flush(l.baseCtx)
					return
				}
			}
		}
	}
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
