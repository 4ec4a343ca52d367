package mirror

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gwi.com/analyst-assistant/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingLogs struct {
	mu       sync.Mutex
	chats    []store.ChatLogEntry
	feedback []store.FeedbackEvent
	err      error
	block    chan struct{}
}

func (r *recordingLogs) AppendChatLog(ctx context.Context, e store.ChatLogEntry) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.chats = append(r.chats, e)
	return nil
}

func (r *recordingLogs) AppendFeedback(_ context.Context, e store.FeedbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.feedback = append(r.feedback, e)
	return nil
}

func TestAsync_WritesEvents(t *testing.T) {
	logs := &recordingLogs{}
	a := New(logs, time.Second, nil)

	a.ChatExchange("a@x.com", "q", "a")
	a.Feedback("a@x.com", "q", store.VerdictNotHelpful)
	require.NoError(t, a.Flush(context.Background()))

	require.Len(t, logs.chats, 1)
	assert.Equal(t, "a@x.com", logs.chats[0].Email)
	assert.Equal(t, "a", logs.chats[0].Answer)
	assert.False(t, logs.chats[0].Timestamp.IsZero())

	require.Len(t, logs.feedback, 1)
	assert.Equal(t, store.VerdictNotHelpful, logs.feedback[0].Verdict)
}

func TestAsync_FailureIsLoggedNotReturned(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	logs := &recordingLogs{err: errors.New("store down")}
	a := New(logs, time.Second, zap.New(core))

	a.ChatExchange("a@x.com", "q", "a")
	require.NoError(t, a.Flush(context.Background()))

	entries := recorded.FilterMessage("mirror write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "chat log", entries[0].ContextMap()["kind"])
}

func TestAsync_TimeoutBoundsSlowWrites(t *testing.T) {
	core, recorded := observer.New(zap.WarnLevel)
	logs := &recordingLogs{block: make(chan struct{})}
	a := New(logs, 20*time.Millisecond, zap.New(core))

	a.ChatExchange("a@x.com", "q", "a")
	require.NoError(t, a.Flush(context.Background()))

	assert.Empty(t, logs.chats)
	assert.Equal(t, 1, recorded.FilterMessage("mirror write failed").Len())
}

func TestAsync_FlushHonoursContext(t *testing.T) {
	logs := &recordingLogs{block: make(chan struct{})}
	a := New(logs, time.Minute, nil)
	a.ChatExchange("a@x.com", "q", "a")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Flush(ctx), context.DeadlineExceeded)

	close(logs.block)
	require.NoError(t, a.Flush(context.Background()))
	assert.Len(t, logs.chats, 1)
}

func TestAsync_TimedOutFlushesShareOneWaiter(t *testing.T) {
	logs := &recordingLogs{block: make(chan struct{})}
	a := New(logs, time.Minute, nil)

	before := runtime.NumGoroutine()
	a.ChatExchange("a@x.com", "q", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, a.Flush(ctx), context.Canceled)
	}
	// One writer plus one waiter, however many times Flush gave up.
	assert.LessOrEqual(t, runtime.NumGoroutine()-before, 2)

	close(logs.block)
	require.NoError(t, a.Flush(context.Background()))
	goleak.VerifyNone(t)
}

func TestAsync_DropsAfterFlush(t *testing.T) {
	logs := &recordingLogs{}
	a := New(logs, time.Second, nil)
	require.NoError(t, a.Flush(context.Background()))

	a.ChatExchange("a@x.com", "q", "a")
	require.NoError(t, a.Flush(context.Background()))
	assert.Empty(t, logs.chats)
}
