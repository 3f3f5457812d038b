package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		client := New(nil)
		t.Cleanup(client.Close)

		assert.Equal(t, DefaultTimeout, client.DefaultTimeout())
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0"})
		t.Cleanup(client.Close)

		assert.Equal(t, 5*time.Second, client.DefaultTimeout())
		assert.Equal(t, "TestAgent/1.0", client.userAgent)
	})

	t.Run("zero values use defaults", func(t *testing.T) {
		client := New(&Config{})
		t.Cleanup(client.Close)

		assert.Equal(t, DefaultTimeout, client.DefaultTimeout())
		assert.NotEmpty(t, client.userAgent)
	})
}

func TestDo_BodyReadableAfterReturn(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("success"))
	})
	client := newTestClientWithConfig(t, &Config{DefaultTimeout: time.Second})

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
}

func TestDo_UserAgent(t *testing.T) {
	var receivedUA string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClientWithConfig(t, &Config{UserAgent: "CustomAgent/2.0"})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, "CustomAgent/2.0", receivedUA)
}

func TestDo_DefaultTimeoutApplied(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_Hooks(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	client := newTestClient(t)

	var before, after atomic.Int32
	var gotStatus atomic.Int32
	client.SetBeforeRequestHook(func(*http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, latency time.Duration) {
		after.Add(1)
		if err == nil {
			gotStatus.Store(int32(resp.StatusCode))
		}
		assert.GreaterOrEqual(t, latency, time.Duration(0))
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
	assert.Equal(t, int32(http.StatusTeapot), gotStatus.Load())
}

func TestGetJSON(t *testing.T) {
	t.Run("decodes success body", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"OK","count":2}`))
		})
		client := newTestClient(t)

		var out struct {
			Status string `json:"status"`
			Count  int    `json:"count"`
		}
		require.NoError(t, client.GetJSON(t.Context(), server.URL, &out))
		assert.Equal(t, "OK", out.Status)
		assert.Equal(t, 2, out.Count)
	})

	t.Run("non-2xx yields StatusError", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
		})
		client := newTestClient(t)

		var out map[string]any
		err := client.GetJSON(t.Context(), server.URL, &out)
		require.Error(t, err)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "Invalid API key")
	})
}
