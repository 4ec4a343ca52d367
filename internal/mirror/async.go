// Package mirror copies chat and feedback events to the durable log store
// without holding up the request that produced them.
package mirror

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/store"
)

// Async writes each event on its own goroutine. Failures are logged and
// never reach the caller.
type Async struct {
	logs    store.LogStore
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	drainOnce sync.Once
	drained   chan struct{}
}

func New(logs store.LogStore, timeout time.Duration, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Async{
		logs:    logs,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (a *Async) ChatExchange(identity, question, answer string) {
	entry := store.ChatLogEntry{
		Email:     identity,
		Timestamp: a.now().UTC(),
		Question:  question,
		Answer:    answer,
	}
	a.spawn("chat log", identity, func(ctx context.Context) error {
		return a.logs.AppendChatLog(ctx, entry)
	})
}

func (a *Async) Feedback(identity, question string, verdict store.Verdict) {
	event := store.FeedbackEvent{
		Email:     identity,
		Timestamp: a.now().UTC(),
		Question:  question,
		Verdict:   verdict,
	}
	a.spawn("feedback", identity, func(ctx context.Context) error {
		return a.logs.AppendFeedback(ctx, event)
	})
}

func (a *Async) spawn(kind, identity string, write func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Warn("mirror closed, dropping event", zap.String("kind", kind), zap.String("email", identity))
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := write(ctx); err != nil {
			a.logger.Warn("mirror write failed",
				zap.String("kind", kind),
				zap.String("email", identity),
				zap.Error(err),
			)
		}
	}()
}

// Flush stops accepting events and waits for in-flight writes, or for ctx
// to end, whichever comes first. All calls share one waiter, which exits
// once the last write returns; each write is bounded by the mirror timeout.
func (a *Async) Flush(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.drainOnce.Do(func() {
		a.drained = make(chan struct{})
		go func() {
			a.wg.Wait()
			close(a.drained)
		}()
	})

	select {
	case <-a.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
