package client

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumetria/pipetcal/pkg/api"
	"github.com/volumetria/pipetcal/pkg/events"
	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

func fastClient(addr string) *Client {
	c := NewClient(addr)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestNewClientAddresses(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:5000", "http://127.0.0.1:5000"},
		{"http://localhost:5000/", "http://localhost:5000"},
		{"https://cal.example.org", "https://cal.example.org"},
		{"unix:/var/run/pipetcal.sock", "http://unix"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, NewClient(tt.addr).baseURL)
		})
	}
}

func TestSendRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, err := fastClient(srv.URL).Get(context.Background(), "/healthz")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestSendDoesNotRetryAPIErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:   "Medición de masa inválida",
			Tipo:    "InvalidMeasurement",
			Campo:   "aforo1.punto4.masa",
			Detalle: "negative mass delta",
		})
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Post(context.Background(), "/calcular", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "InvalidMeasurement", apiErr.Body.Tipo)
	assert.Contains(t, err.Error(), "(aforo1.punto4.masa)")
}

func TestSendNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := fastClient(srv.URL).Get(context.Background(), "/emt/pistola")
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "404 page not found", apiErr.Body.Detalle)
}

func TestUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "p.sock")

	_, err := fastClient("unix:"+sock).Get(context.Background(), "/healthz")
	assert.ErrorIs(t, err, ErrDaemonNotRunning)

	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/version":
			_, _ = w.Write([]byte(`{"version":"v0.3.0","commit":"abc123"}`))
		case "/emt":
			_ = json.NewEncoder(w).Encode(gravimetric.DefaultEMTTables())
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	srv.Listener = l
	srv.Start()
	defer srv.Close()

	c := fastClient("unix:" + sock)
	require.NoError(t, c.Healthy(context.Background()))

	v, commit, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v0.3.0", v)
	assert.Equal(t, "abc123", commit)

	tables, err := c.GetEMT(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gravimetric.DefaultEMTTables(), tables)
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastClient(srv.URL).Get(ctx, "/healthz")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": comment\n\nevent:emt.updated\ndata:{\"clase\":\"multicanal\",\"rows\":7}\n\n" +
			"event: config.reloaded\ndata: {\"ok\":true}\n\n"))
	}))
	defer srv.Close()

	ch, err := fastClient(srv.URL).SubscribeEvents(context.Background())
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, events.EMTUpdated, ev.Name)
	emt, err := events.DecodeAs[events.EMTUpdatedEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, 7, emt.Rows)

	ev = <-ch
	assert.Equal(t, events.ConfigReloaded, ev.Name)
	assert.JSONEq(t, `{"ok":true}`, string(ev.Data))

	_, open := <-ch
	assert.False(t, open)
}
