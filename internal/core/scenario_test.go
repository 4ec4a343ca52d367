package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/history"
)

func TestScenario_SignUpAskLogout(t *testing.T) {
	var providerCalls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Use =VLOOKUP(...) see http://example.com"}}]}`))
	}))
	defer provider.Close()

	ctx := context.Background()
	gateway := newTestGateway(provider.URL, time.Second)
	pipeline := NewPipeline(gateway, nil, nil)
	sess := auth.NewSession("sid", &memCreds{users: map[string]string{}}, nil, nil)

	require.NoError(t, sess.SignUp(ctx, "a@x.com", "pw1"))

	_, err := sess.Login(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, auth.Authenticated, sess.State())
	member, ok := sess.Member()
	require.True(t, ok)

	out, err := pipeline.Submit(ctx, member, "hello")
	require.NoError(t, err)
	assert.Equal(t, GreetingNotice, out.Notice)
	assert.Equal(t, 0, member.History().Len())
	assert.EqualValues(t, 0, providerCalls.Load())

	out, err = pipeline.Submit(ctx, member, "how do I write a VLOOKUP?")
	require.NoError(t, err)
	assert.True(t, out.Refresh)
	assert.EqualValues(t, 1, providerCalls.Load())
	require.Equal(t, 1, member.History().Len())
	latest, _ := member.History().Latest()
	assert.Equal(t, history.Exchange{
		Question: "how do I write a VLOOKUP?",
		Answer:   "Use =VLOOKUP(...) see [link removed]",
	}, latest)

	sess.Logout()
	assert.Equal(t, auth.Anonymous, sess.State())
	assert.Equal(t, 0, member.History().Len())
	_, ok = sess.Member()
	assert.False(t, ok)
}
