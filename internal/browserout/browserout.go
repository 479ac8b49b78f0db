// Package browserout implements the browser renderer output provider
// (spec.md §4.I/§9): each WebSocket connection is an actor with its own
// mailbox goroutine, commands are fire-and-forget JSON envelopes, and
// disconnection removes the output from the registry. The {type, data}
// envelope follows the WSRequest/WSResponse shape used by
// iamprashant-voice-ai's websocket executor
// (internal/agent/executor/llm/internal/websocket/websocket_executor.go).
package browserout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/komorebi-audio/hub/internal/outputs"
)

// MessageType tags an envelope's payload shape.
type MessageType string

const (
	TypeHello       MessageType = "hello"
	TypeStatus      MessageType = "status"
	TypeEnded       MessageType = "ended"
	TypePlay        MessageType = "play"
	TypePauseToggle MessageType = "pause_toggle"
	TypeStop        MessageType = "stop"
	TypeSeek        MessageType = "seek"
)

// Envelope is the wire shape for every browser<->hub message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// HelloData is sent server->client immediately after upgrade.
type HelloData struct {
	SessionID string `json:"session_id"`
}

// ClientHelloData is the optional client->server hello payload.
type ClientHelloData struct {
	Name string `json:"name,omitempty"`
}

// ClientStatusData is what a browser tab self-reports.
type ClientStatusData struct {
	Paused     bool   `json:"paused"`
	ElapsedMs  *int64 `json:"elapsed_ms,omitempty"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
	NowPlaying string `json:"now_playing,omitempty"`
}

// PlayData is sent server->client to start playback in the tab.
type PlayData struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	StartPaused bool   `json:"start_paused"`
	SeekMs      *int64 `json:"seek_ms,omitempty"`
}

// SeekData is sent server->client to seek.
type SeekData struct {
	Ms int64 `json:"ms"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// mailboxSize bounds the per-session outgoing queue; commands are
// fire-and-forget so a full mailbox drops the oldest pending command
// rather than block the caller (spec.md §9).
const mailboxSize = 32

// Session is one browser tab's actor: one owning read-loop goroutine plus
// a buffered outgoing mailbox a second goroutine drains.
type Session struct {
	id      string
	name    string
	conn    *websocket.Conn
	mailbox chan Envelope

	mu               sync.Mutex
	lastClientStatus ClientStatusData
}

// StatusObserver is invoked whenever the browser self-reports status, so
// the hub's status store (component F) can merge it in.
type StatusObserver func(sessionID string, status ClientStatusData)

// EndedObserver is invoked when the browser reports its stream ended.
type EndedObserver func(sessionID string)

// Manager owns every live browser session and implements outputs.Provider,
// so the registry (component I) can route to it by id prefix "browser:".
type Manager struct {
	registry *outputs.Registry

	mu       sync.Mutex
	sessions map[string]*Session

	onStatus StatusObserver
	onEnded  EndedObserver
}

func NewManager(registry *outputs.Registry) *Manager {
	return &Manager{registry: registry, sessions: make(map[string]*Session)}
}

func (m *Manager) SetObservers(onStatus StatusObserver, onEnded EndedObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = onStatus
	m.onEnded = onEnded
}

// ProviderID implements outputs.Provider.
func (m *Manager) ProviderID() string { return "browser" }

// ListOutputs implements outputs.Provider: one ready output per connected
// session.
func (m *Manager) ListOutputs() []outputs.Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]outputs.Output, 0, len(m.sessions))
	for id, s := range m.sessions {
		name := s.name
		if name == "" {
			name = "Browser tab"
		}
		out = append(out, outputs.Output{
			ID:           "browser:" + id,
			Kind:         "browser",
			Name:         name,
			State:        outputs.StateReady,
			Capabilities: map[outputs.Capability]bool{},
		})
	}
	return out
}

func (m *Manager) CanHandleOutputID(id string) bool {
	return len(id) > len("browser:") && id[:len("browser:")] == "browser:"
}

func (m *Manager) EnsureActiveConnected(ctx context.Context, outputID string) error {
	_, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return nil
}

func (m *Manager) SelectOutput(ctx context.Context, outputID string) error {
	_, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return nil
}

func (m *Manager) StatusForOutput(outputID string) (outputs.Status, error) {
	s, ok := m.lookup(outputID)
	if !ok {
		return outputs.Status{}, errSessionGone
	}
	s.mu.Lock()
	now := s.lastClientStatus.NowPlaying
	s.mu.Unlock()
	return outputs.Status{OutputID: outputID, State: outputs.StateReady, NowPlaying: now}, nil
}

func (m *Manager) lookup(outputID string) (*Session, bool) {
	id := outputID
	if len(outputID) > len("browser:") {
		id = outputID[len("browser:"):]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

var errSessionGone = browserErr("browser session no longer connected")

type browserErr string

func (e browserErr) Error() string { return string(e) }

// Play fire-and-forget dispatches a play command to a session.
func (m *Manager) Play(outputID, url, path string, startPaused bool, seekMs *int64) error {
	s, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return s.send(TypePlay, PlayData{URL: url, Path: path, StartPaused: startPaused, SeekMs: seekMs})
}

func (m *Manager) PauseToggle(outputID string) error {
	s, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return s.send(TypePauseToggle, nil)
}

func (m *Manager) Stop(outputID string) error {
	s, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return s.send(TypeStop, nil)
}

func (m *Manager) Seek(outputID string, ms int64) error {
	s, ok := m.lookup(outputID)
	if !ok {
		return errSessionGone
	}
	return s.send(TypeSeek, SeekData{Ms: ms})
}

func (s *Session) send(t MessageType, data any) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}
	env := Envelope{Type: t, Data: raw}
	select {
	case s.mailbox <- env:
	default:
		// Mailbox full: drop the oldest to make room rather than block the
		// caller (fire-and-forget per spec.md §9).
		select {
		case <-s.mailbox:
		default:
		}
		s.mailbox <- env
	}
	return nil
}

// ServeWS upgrades an HTTP request to a WebSocket and runs the session's
// actor loops until the connection closes.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("browserout: upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	sess := &Session{id: id, conn: conn, mailbox: make(chan Envelope, mailboxSize)}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		conn.Close()
		if m.registry != nil {
			// Session gone: the output no longer exists, so a subsequent
			// list/select naturally excludes it. No explicit deregistration
			// call is needed on the registry beyond ceasing to list it.
		}
	}()

	if err := sess.send(TypeHello, HelloData{SessionID: id}); err != nil {
		slog.Warn("browserout: hello send failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.writeLoop(sess)
	}()
	go func() {
		defer wg.Done()
		m.readLoop(sess)
	}()
	wg.Wait()
}

func (m *Manager) writeLoop(s *Session) {
	for env := range s.mailbox {
		s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := s.conn.WriteJSON(env); err != nil {
			slog.Warn("browserout: write failed, closing session", "session", s.id, "error", err)
			s.conn.Close()
			return
		}
	}
}

func (m *Manager) readLoop(s *Session) {
	defer close(s.mailbox)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Type {
		case TypeHello:
			var data ClientHelloData
			if json.Unmarshal(env.Data, &data) == nil {
				m.mu.Lock()
				s.name = data.Name
				m.mu.Unlock()
			}
		case TypeStatus:
			var data ClientStatusData
			if json.Unmarshal(env.Data, &data) == nil {
				s.mu.Lock()
				s.lastClientStatus = data
				s.mu.Unlock()
				m.mu.Lock()
				onStatus := m.onStatus
				m.mu.Unlock()
				if onStatus != nil {
					onStatus(s.id, data)
				}
			}
		case TypeEnded:
			m.mu.Lock()
			onEnded := m.onEnded
			m.mu.Unlock()
			if onEnded != nil {
				onEnded(s.id)
			}
		}
	}
}
