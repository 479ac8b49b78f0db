package browserout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/outputs"
)

func decodeData(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func dialSession(t *testing.T, m *Manager) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.ServeWS))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, srv
}

func TestServeWSSendsHelloWithSessionID(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))
	conn, srv := dialSession(t, m)
	defer srv.Close()
	defer conn.Close()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, TypeHello, env.Type)
}

func TestListOutputsReflectsConnectedSessions(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))
	conn, srv := dialSession(t, m)
	defer srv.Close()
	defer conn.Close()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))

	require.Eventually(t, func() bool {
		return len(m.ListOutputs()) == 1
	}, time.Second, 10*time.Millisecond)

	out := m.ListOutputs()[0]
	require.True(t, strings.HasPrefix(out.ID, "browser:"))
	require.Equal(t, outputs.StateReady, out.State)
}

func TestDisconnectRemovesOutput(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))
	conn, srv := dialSession(t, m)
	defer srv.Close()

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Eventually(t, func() bool { return len(m.ListOutputs()) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return len(m.ListOutputs()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestPlayDispatchesEnvelopeToSession(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))
	conn, srv := dialSession(t, m)
	defer srv.Close()
	defer conn.Close()

	var hello Envelope
	require.NoError(t, conn.ReadJSON(&hello))
	var helloData HelloData
	require.NoError(t, decodeData(hello.Data, &helloData))

	outputID := "browser:" + helloData.SessionID
	require.NoError(t, m.Play(outputID, "http://hub.local/stream?path=a.mp3", "a.mp3", false, nil))

	var env Envelope
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, TypePlay, env.Type)

	var data PlayData
	require.NoError(t, decodeData(env.Data, &data))
	require.Equal(t, "a.mp3", data.Path)
}

func TestClientStatusInvokesObserver(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))

	gotCh := make(chan ClientStatusData, 1)
	m.SetObservers(func(sessionID string, status ClientStatusData) {
		gotCh <- status
	}, nil)

	conn, srv := dialSession(t, m)
	defer srv.Close()
	defer conn.Close()

	var hello Envelope
	require.NoError(t, conn.ReadJSON(&hello))

	elapsed := int64(1500)
	require.NoError(t, conn.WriteJSON(Envelope{Type: TypeStatus, Data: mustJSON(t, ClientStatusData{Paused: true, ElapsedMs: &elapsed})}))

	select {
	case got := <-gotCh:
		require.True(t, got.Paused)
		require.Equal(t, elapsed, *got.ElapsedMs)
	case <-time.After(time.Second):
		t.Fatal("observer was not invoked")
	}
}

func TestEndedInvokesObserver(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))

	doneCh := make(chan string, 1)
	m.SetObservers(nil, func(sessionID string) { doneCh <- sessionID })

	conn, srv := dialSession(t, m)
	defer srv.Close()
	defer conn.Close()

	var hello Envelope
	require.NoError(t, conn.ReadJSON(&hello))
	require.NoError(t, conn.WriteJSON(Envelope{Type: TypeEnded}))

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("ended observer was not invoked")
	}
}

func TestOperationsOnUnknownOutputReturnError(t *testing.T) {
	m := NewManager(outputs.NewRegistry(nil))
	require.Error(t, m.Play("browser:missing", "u", "p", false, nil))
	require.Error(t, m.PauseToggle("browser:missing"))
	require.Error(t, m.Stop("browser:missing"))
	require.Error(t, m.Seek("browser:missing", 0))
}
