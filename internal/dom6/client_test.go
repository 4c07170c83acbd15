package dom6

import (
	"context"
	"ironfly/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(retries int) Client {
	return NewClient(Options{
		Timeout:           2 * time.Second,
		RequestsPerSecond: -1,
		Retries:           retries,
		RetryWaitTime:     time.Millisecond,
	}, telemetry.NewRecorder())
}

func TestFetchOK(t *testing.T) {
	page, err := os.ReadFile("testdata/te26.html")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/te26.html", r.URL.Path)
		w.Write(page)
	}))
	defer srv.Close()

	url := ResolveTarget("te26", srv.URL)
	outcome := newTestClient(-1).Fetch(context.Background(), url)
	require.Equal(t, OutcomeOK, outcome.Kind)
	require.NoError(t, outcome.Err)
	require.Equal(t, "te26", outcome.Snapshot.GameName)
	require.Equal(t, 81, outcome.Snapshot.Turn)
	require.Equal(t, url, outcome.Snapshot.URL)
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	outcome := newTestClient(-1).Fetch(context.Background(), srv.URL+"/te99.html")
	require.Equal(t, OutcomeNotFound, outcome.Kind)
	require.Error(t, outcome.Err)
}

func TestFetchServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	outcome := newTestClient(2).Fetch(context.Background(), srv.URL+"/te26.html")
	require.Equal(t, OutcomeTransient, outcome.Kind)
	require.Equal(t, int32(3), calls.Load())
}

func TestFetchRetryRecovers(t *testing.T) {
	page, err := os.ReadFile("testdata/te26.html")
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(page)
	}))
	defer srv.Close()

	outcome := newTestClient(2).Fetch(context.Background(), srv.URL+"/te26.html")
	require.Equal(t, OutcomeOK, outcome.Kind)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/te26.html"
	srv.Close()

	outcome := newTestClient(-1).Fetch(context.Background(), url)
	require.Equal(t, OutcomeTransient, outcome.Kind)
	require.Error(t, outcome.Err)
}

func TestFetchParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>server is updating</body></html>"))
	}))
	defer srv.Close()

	outcome := newTestClient(-1).Fetch(context.Background(), srv.URL+"/te26.html")
	require.Equal(t, OutcomeParseFailure, outcome.Kind)
	require.ErrorIs(t, outcome.Err, ErrNoStatusTable)
}
