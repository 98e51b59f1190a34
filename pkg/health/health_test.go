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
	"github.com/stretchr/testify/require"
)

func TestReadyRequiresManualGate(t *testing.T) {
	s := NewService()
	require.False(t, s.IsReady())

	s.SetReady(true)
	require.True(t, s.IsReady())

	s.SetReady(false)
	require.False(t, s.IsReady())
}

func TestReadyEndpointReportsFailures(t *testing.T) {
	s := NewService()
	s.SetReady(true)
	s.AddReadinessCheck("database", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	require.False(t, s.IsReady())

	rec := httptest.NewRecorder()
	s.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "unhealthy", resp.Status)
	require.Equal(t, "connection refused", resp.Checks["database"])
}

func TestLiveEndpointOK(t *testing.T) {
	s := NewService()
	s.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100_000))

	s.Start(context.Background(), time.Hour)
	defer s.Stop()

	rec := httptest.NewRecorder()
	s.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChecksRunOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := NewService()
	s.AddReadinessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background(), 10*time.Millisecond)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck(fakePinger{})(context.Background()))

	err := PingCheck(fakePinger{err: errors.New("down")})(context.Background())
	require.ErrorContains(t, err, "down")
}
