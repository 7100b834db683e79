package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	mu    sync.Mutex
	reqs  []cycle.Request
	err   error
	last  *cycle.Result
	state cycle.State
}

func (f *fakeOrchestrator) Trigger(_ context.Context, req cycle.Request) (*cycle.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	res := &cycle.Result{
		ID:        uuid.New(),
		Trigger:   req.Trigger,
		Serial:    req.Serial,
		StartedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
	if req.Frame != nil {
		res.Width, res.Height = req.Frame.Width(), req.Frame.Height()
	}
	f.last = res
	return res, nil
}

func (f *fakeOrchestrator) State() cycle.State { return f.state }

func (f *fakeOrchestrator) Last() *cycle.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeOrchestrator) requests() []cycle.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cycle.Request(nil), f.reqs...)
}

func newTestServer(orch Orchestrator, opts ...Option) *Server {
	return New(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5}, orch, nil, opts...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, url string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "frame.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthHandler(t *testing.T) {
	orch := &fakeOrchestrator{state: cycle.StateIdle}
	s := newTestServer(orch, WithInfo(func() map[string]any { return map[string]any{"simulated": true} }))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "IDLE", resp.State)
	assert.Equal(t, true, resp.Pipeline["simulated"])
	assert.Positive(t, resp.Process.Goroutines)
	assert.Positive(t, resp.Process.SysBytes)

	orch.last = &cycle.Result{ID: uuid.New(), Failures: []cycle.Failure{{Kind: cycle.FailureTimeout}}}
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusHandler(t *testing.T) {
	orch := &fakeOrchestrator{state: cycle.StateDetected}
	s := newTestServer(orch)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"DETECTED"}`, w.Body.String())
}

func TestCycleHandler_SourceFrame(t *testing.T) {
	orch := &fakeOrchestrator{}
	s := newTestServer(orch)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cycle?serial=SN-0BADF00D", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Cycle-Id"))

	reqs := orch.requests()
	require.Len(t, reqs, 1)
	assert.Nil(t, reqs[0].Frame)
	assert.Equal(t, "SN-0BADF00D", reqs[0].Serial)
	assert.Equal(t, "http", reqs[0].Trigger)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, "SN-0BADF00D", decoded["serial"])
}

func TestCycleHandler_UploadedFrame(t *testing.T) {
	orch := &fakeOrchestrator{}
	s := newTestServer(orch)

	req := multipartRequest(t, "/cycle?format=yaml", map[string]string{"serial": "SN-12345678"}, pngBytes(t, 32, 24))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "width: 32")

	reqs := orch.requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Frame)
	assert.Equal(t, 32, reqs[0].Frame.Width())
	assert.Equal(t, 24, reqs[0].Frame.Height())
	assert.Equal(t, "SN-12345678", reqs[0].Serial)
}

func TestCycleHandler_Errors(t *testing.T) {
	t.Run("method", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestServer(&fakeOrchestrator{}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cycle", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("format", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestServer(&fakeOrchestrator{}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cycle?format=xml", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("undecodable image", func(t *testing.T) {
		orch := &fakeOrchestrator{}
		w := httptest.NewRecorder()
		newTestServer(orch).Handler().ServeHTTP(w, multipartRequest(t, "/cycle", nil, []byte("not an image")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, orch.requests(), "no cycle for a bad upload")
	})

	t.Run("busy", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestServer(&fakeOrchestrator{err: cycle.ErrBusy}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cycle", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "busy", body["error"])
		assert.Equal(t, cycle.ErrBusy.Error(), body["detail"])
	})

	t.Run("orchestrator error", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestServer(&fakeOrchestrator{err: assert.AnError}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cycle", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})
	h := s.Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "linecheck_http_requests_total"))
}
