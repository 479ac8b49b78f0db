// Package bridge implements the transport client against one remote
// renderer (spec.md §4.J): HTTP commands with a per-call timeout plus SSE
// consumers for its device and status event streams. Timeouts mirror the
// bounded ReadTimeout/WriteTimeout discipline
// arung-agamani-denpa-radio's internal/radio/server.go applies to its own
// http.Server, turned around onto an outbound http.Client since no example
// repo in the pack ships an HTTP client library beyond net/http.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/komorebi-audio/hub/internal/apperr"
)

// commandTimeout bounds every command call per spec.md §4.J ("2-3s
// per-call timeout").
const commandTimeout = 3 * time.Second

// Device is one output device a renderer reports.
type Device struct {
	Name string `json:"name"`
}

// Status is the renderer's self-reported playback status, decoded loosely
// (field presence maps onto status.RemoteReport's pointer semantics).
type Status struct {
	NowPlaying *string `json:"now_playing"`
	ElapsedMs  *int64  `json:"elapsed_ms"`
	DurationMs *int64  `json:"duration_ms"`
	Paused     *bool   `json:"paused"`
}

// Client drives one renderer's HTTP surface.
type Client struct {
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
	// sseClient has no fixed Timeout: SSE connections are long-lived and
	// rely on ctx cancellation (component K's reconnect supervisor) rather
	// than a per-call deadline.
	sseClient *http.Client
}

// New builds a Client for a renderer at baseURL (e.g.
// "http://192.168.1.20:8700"). publicBaseURL is the hub's own externally
// reachable base URL, used to compose /stream?path= URLs for play_path.
func New(baseURL, publicBaseURL string) *Client {
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: commandTimeout},
		sseClient:     &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.BadRequest("encode request body: " + err.Error())
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Unavailable("build request to "+c.baseURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Unavailable("request to "+c.baseURL+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperr.Unavailable(fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), nil)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Unavailable("decode response from "+path, err)
		}
	}
	return nil
}

// ListDevices fetches the renderer's available output devices.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var out struct {
		Devices []Device `json:"devices"`
	}
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// SetDevice selects the renderer's active output device.
func (c *Client) SetDevice(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/devices/select", map[string]string{"name": name}, nil)
}

// Status fetches the renderer's current playback status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// playPathRequest mirrors the bridge's expected /play body.
type playPathRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	ExtHint     string `json:"ext_hint,omitempty"`
	SeekMs      *int64 `json:"seek_ms,omitempty"`
	StartPaused bool   `json:"start_paused"`
}

// PlayPath composes a stream URL rooted at the hub's public base URL
// (percent-encoded path) and asks the renderer to play it.
func (c *Client) PlayPath(ctx context.Context, path, extHint, title string, seekMs *int64, startPaused bool) error {
	streamURL := c.publicBaseURL + "/stream?path=" + url.QueryEscape(path)
	return c.do(ctx, http.MethodPost, "/play", playPathRequest{
		URL:         streamURL,
		Title:       title,
		ExtHint:     extHint,
		SeekMs:      seekMs,
		StartPaused: startPaused,
	}, nil)
}

// PauseToggle asks the renderer to toggle pause.
func (c *Client) PauseToggle(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/pause", nil, nil)
}

// Resume asks the renderer to resume playback.
func (c *Client) Resume(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/resume", nil, nil)
}

// Stop asks the renderer to stop playback.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/stop", nil, nil)
}

// Seek asks the renderer to seek to an absolute position.
func (c *Client) Seek(ctx context.Context, ms int64) error {
	return c.do(ctx, http.MethodPost, "/seek", map[string]int64{"ms": ms}, nil)
}

// Health checks the renderer's liveness endpoint, used by the discovery
// health-check watcher (spec.md §4.K).
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// listenSSE connects to an SSE endpoint and invokes cb with each event's
// raw JSON payload until the stream ends or ctx is cancelled. It always
// returns a non-nil error describing why the stream ended, cancellation
// included.
func (c *Client) listenSSE(ctx context.Context, path string, cb func(data []byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperr.Unavailable("build SSE request to "+path, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.sseClient.Do(req)
	if err != nil {
		return apperr.Unavailable("connect SSE "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apperr.Unavailable(fmt.Sprintf("SSE %s returned %d", path, resp.StatusCode), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			cb([]byte(data))
		}
	}
	if err := scanner.Err(); err != nil {
		return apperr.Transient("SSE "+path+" read error", err)
	}
	return apperr.Transient("SSE "+path+" stream ended", nil)
}

// ListenDevicesStream connects to the renderer's device-list SSE feed.
func (c *Client) ListenDevicesStream(ctx context.Context, cb func(devices []Device)) error {
	return c.listenSSE(ctx, "/devices/stream", func(data []byte) {
		var out struct {
			Devices []Device `json:"devices"`
		}
		if err := json.Unmarshal(data, &out); err == nil {
			cb(out.Devices)
		}
	})
}

// ListenStatusStream connects to the renderer's status SSE feed.
func (c *Client) ListenStatusStream(ctx context.Context, cb func(Status)) error {
	return c.listenSSE(ctx, "/status/stream", func(data []byte) {
		var out Status
		if err := json.Unmarshal(data, &out); err == nil {
			cb(out)
		}
	})
}
