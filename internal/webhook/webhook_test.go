package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversOnFirstSuccess(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodeJSONBody(t, r, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewHTTPNotifier()
	err := n.Notify(context.Background(), srv.URL, Payload{TaskID: "t1", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "t1", received.TaskID)
	assert.Equal(t, "completed", received.Status)
}

func TestNotifyRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &HTTPNotifier{client: srv.Client()}
	err := n.Notify(context.Background(), srv.URL, Payload{TaskID: "t2", Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotifyDoesNotRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := &HTTPNotifier{client: srv.Client()}
	err := n.Notify(context.Background(), srv.URL, Payload{TaskID: "t3", Status: "completed"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNotifyGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := &HTTPNotifier{client: srv.Client()}
	err := n.Notify(context.Background(), srv.URL, Payload{TaskID: "t4", Status: "failed"})
	assert.Error(t, err)
	assert.Equal(t, int32(maxAttempts), atomic.LoadInt32(&calls))
}

func decodeJSONBody(t *testing.T, r *http.Request, out *Payload) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}
