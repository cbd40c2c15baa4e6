package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/combo-overlay/internal/render"
	"github.com/DoyleJ11/combo-overlay/internal/transport"
)

func recvEvent(t *testing.T, ch <-chan transport.Event, within time.Duration) transport.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("supervisor events closed unexpectedly")
		}
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return transport.Event{} // unreachable
	}
}

// numberedServer greets each connection with its sequence number. The first
// connection is dropped when kick is closed.
func numberedServer(t *testing.T, kick <-chan struct{}) *httptest.Server {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusGoingAway, "bye")
		n := conns.Add(1)
		frame := fmt.Sprintf(`{"event":"config","data":{"n":%d}}`, n)
		if err := conn.Write(r.Context(), websocket.MessageText, []byte(frame)); err != nil {
			return
		}
		if n == 1 {
			<-kick
			return
		}
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSupervisor_ReconnectsAfterProbeSucceeds(t *testing.T) {
	kick := make(chan struct{})
	srv := numberedServer(t, kick)

	var probes atomic.Int32
	prober := ProberFunc(func(ctx context.Context) error {
		if probes.Add(1) <= 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	ind := render.NewMemory()

	sup := New(Config{
		URL:           "ws" + strings.TrimPrefix(srv.URL, "http"),
		RetryInterval: 10 * time.Millisecond,
		Prober:        prober,
		Indicator:     ind,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Equal(t, transport.EventOpened, recvEvent(t, sup.Events(), time.Second).Kind)
	first := recvEvent(t, sup.Events(), time.Second)
	assert.JSONEq(t, `{"n":1}`, string(first.Message.Data))
	firstSession := sup.Current()

	close(kick)
	require.Equal(t, transport.EventClosed, recvEvent(t, sup.Events(), time.Second).Kind)

	require.Equal(t, transport.EventOpened, recvEvent(t, sup.Events(), 2*time.Second).Kind)
	second := recvEvent(t, sup.Events(), time.Second)
	assert.JSONEq(t, `{"n":2}`, string(second.Message.Data))

	assert.EqualValues(t, 3, probes.Load())
	assert.Equal(t, Connected, sup.State())
	assert.False(t, ind.Disconnected())
	assert.Equal(t, []render.Op{
		{Kind: "show", Transition: render.SlideIn},
		{Kind: "hide", Transition: render.SlideOut},
	}, ind.Ops())
	assert.Equal(t, 2, sup.Sessions())
	require.NotNil(t, sup.Current())
	assert.NotSame(t, firstSession, sup.Current())
	assert.Equal(t, transport.StateOpen, sup.Current().State())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestSupervisor_ProbeLoopStopsOnCancel(t *testing.T) {
	var probes atomic.Int32
	sup := New(Config{
		URL:           "ws://127.0.0.1:1/ws",
		RetryInterval: 5 * time.Millisecond,
		Prober: ProberFunc(func(ctx context.Context) error {
			probes.Add(1)
			return errors.New("down")
		}),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	require.Equal(t, transport.EventClosed, recvEvent(t, sup.Events(), 2*time.Second).Kind)
	require.Eventually(t, func() bool { return probes.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Probing, sup.State())
	assert.Nil(t, sup.Current())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatalf("probe loop ignored cancellation")
	}
	_, ok := <-sup.Events()
	assert.False(t, ok)
}

func TestSupervisor_SendWhileDisconnectedIsDropped(t *testing.T) {
	sup := New(Config{URL: "ws://127.0.0.1:1/ws"})
	// no session yet; must not panic
	sup.Send("config_reset", nil)
}

func TestHTTPProber_AnyResponseCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	assert.NoError(t, HTTPProber{URL: srv.URL + "/reconnect"}.Probe(context.Background()))

	srv.Close()
	assert.Error(t, HTTPProber{URL: srv.URL + "/reconnect"}.Probe(context.Background()))
}
