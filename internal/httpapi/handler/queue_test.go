package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/komorebi-audio/hub/internal/eventbus"
	"github.com/komorebi-audio/hub/internal/httpapi/service"
	"github.com/komorebi-audio/hub/internal/localout"
	"github.com/komorebi-audio/hub/internal/outputs"
	"github.com/komorebi-audio/hub/internal/pipeline"
	"github.com/komorebi-audio/hub/internal/playqueue"
	"github.com/komorebi-audio/hub/internal/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newQueueHandlerFixture(t *testing.T) *QueueHandlers {
	t.Helper()
	bus := eventbus.New()
	store := status.New(bus)
	registry := outputs.NewRegistry(bus)
	queue := playqueue.New(bus, store)

	local := localout.New(t.TempDir(), pipeline.DefaultConfig(), store, queue, registry)
	registry.Register(local)

	dispatcher := service.NewActiveDispatcher(registry, local, nil, nil, "http://hub.local")
	playback := service.NewPlaybackService(dispatcher, queue, store)
	queueSvc := service.NewQueueService(queue)
	return NewQueueHandlers(queueSvc, playback)
}

func doJSON(h gin.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h(c)
	c.Writer.WriteHeaderNow()
	return w
}

func TestQueueHandlersAddThenList(t *testing.T) {
	h := newQueueHandlerFixture(t)
	w := doJSON(h.Add, http.MethodPost, "/queue", `{"paths":["music/a.mp3"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/queue", nil)
	h.List(c2)
	require.Equal(t, http.StatusOK, w2.Code)
	require.Contains(t, w2.Body.String(), "music/a.mp3")
}

func TestQueueHandlersPlayFromNotQueuedIs404(t *testing.T) {
	h := newQueueHandlerFixture(t)
	w := doJSON(h.PlayFrom, http.MethodPost, "/queue/play_from", `{"path":"music/never-queued.mp3"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueHandlersRemoveMissingPathIsBadRequest(t *testing.T) {
	h := newQueueHandlerFixture(t)
	w := doJSON(h.Remove, http.MethodPost, "/queue/remove", `{"path":"music/missing.mp3"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueHandlersNextWithEmptyQueueReturnsNoContent(t *testing.T) {
	h := newQueueHandlerFixture(t)
	w := doJSON(h.Next, http.MethodPost, "/queue/next", ``)
	require.Equal(t, http.StatusNoContent, w.Code)
}
