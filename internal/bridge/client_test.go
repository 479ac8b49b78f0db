package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/apperr"
)

func TestListDevicesDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/devices", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"devices": []Device{{Name: "alsa0"}}})
	}))
	defer srv.Close()

	c := New(srv.URL, "http://hub.local")
	devices, err := c.ListDevices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Device{{Name: "alsa0"}}, devices)
}

func TestPlayPathComposesPercentEncodedStreamURL(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/play", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "http://hub.local:8080")
	err := c.PlayPath(context.Background(), "music/a b.mp3", "mp3", "A Song", nil, false)
	require.NoError(t, err)
	require.Equal(t, "http://hub.local:8080/stream?path=music%2Fa+b.mp3", gotBody["url"])
}

func TestNonOKStatusCollapsesToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.Stop(context.Background())
	require.True(t, apperr.IsUnavailable(err))
}

func TestUnreachableHostCollapsesToUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	err := c.Health(context.Background())
	require.True(t, apperr.IsUnavailable(err))
}

func TestListenStatusStreamInvokesCallbackPerEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"paused\":true}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	var got []Status
	err := c.ListenStatusStream(context.Background(), func(s Status) {
		got = append(got, s)
	})
	require.True(t, apperr.IsTransient(err))
	require.Len(t, got, 1)
	require.True(t, *got[0].Paused)
}
