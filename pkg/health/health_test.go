package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Add(Liveness, "goroutines", time.Second, passing)
	h.Add(Liveness, "db", time.Second, failing("connection refused"))

	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.Checks)

	db := h.checks[1]
	for range FailureThreshold - 1 {
		db.run(t.Context())
	}
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	db.run(t.Context())
	code, body = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	var down atomic.Bool
	h := New()
	h.Add(Readiness, "postgres", time.Second, func(context.Context) error {
		if down.Load() {
			return errors.New("no route to host")
		}
		return nil
	})
	h.Add(Liveness, "ignored", time.Second, failing("x"))

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
	assert.False(t, h.Ready())

	h.SetReady(true)
	code, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, h.Ready())

	down.Store(true)
	pg := h.checks[0]
	for range FailureThreshold {
		pg.run(t.Context())
	}
	code, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"postgres": "no route to host"}, body.Checks)
	assert.False(t, h.Ready())

	// One success recovers.
	down.Store(false)
	pg.run(t.Context())
	assert.True(t, h.Ready())

	h.SetReady(false)
	assert.False(t, h.Ready())
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.Add(Readiness, "slow", time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := h.checks[0]
	for range FailureThreshold {
		c.run(t.Context())
	}
	assert.False(t, c.healthy.Load())
	assert.Equal(t, context.DeadlineExceeded.Error(), c.failure())
}

func TestRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(WithClock(clock))

	var calls atomic.Int32
	h.Add(Liveness, "counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 10*time.Second) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	require.NoError(t, PingCheck(pinger{})(t.Context()))

	err := PingCheck(pinger{err: errors.New("refused")})(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	require.NoError(t, GoroutineCountCheck(1_000_000)(t.Context()))
	require.Error(t, GoroutineCountCheck(0)(t.Context()))
}
