package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/linecheck/internal/cycle"
	"github.com/MeKo-Tech/linecheck/internal/frame"
	"github.com/MeKo-Tech/linecheck/internal/utils"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Time      string         `json:"time"`
	UptimeSec float64        `json:"uptime_sec"`
	State     string         `json:"state"`
	Host      *HostStats     `json:"host,omitempty"`
	Process   ProcessStats   `json:"process"`
	Pipeline  map[string]any `json:"pipeline,omitempty"`
}

// ProcessStats summarizes the Go runtime of this process.
type ProcessStats struct {
	AllocBytes uint64 `json:"alloc_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// HostStats describes the edge node.
type HostStats struct {
	MemTotal       uint64  `json:"mem_total"`
	MemAvailable   uint64  `json:"mem_available"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	UptimeSec      uint64  `json:"uptime_sec"`
}

// StatusResponse is returned by /status.
type StatusResponse struct {
	State string        `json:"state"`
	Last  *cycle.Result `json:"last,omitempty"`
}

var contentTypes = map[string]string{
	"json": "application/json",
	"yaml": "application/yaml",
	"yml":  "application/yaml",
	"csv":  "text/csv",
}

// healthHandler returns server health and host statistics.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Time:      time.Now().UTC().Format(time.RFC3339),
		UptimeSec: time.Since(s.started).Seconds(),
		State:     s.orch.State().String(),
		Host:      hostStats(r.Context()),
		Process:   processStats(),
	}
	if last := s.orch.Last(); last != nil && last.Degraded() {
		resp.Status = "degraded"
	}
	if s.info != nil {
		resp.Pipeline = s.info()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func hostStats(ctx context.Context) *HostStats {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		slog.Debug("Host memory stats unavailable", "error", err)
		return nil
	}
	st := &HostStats{MemTotal: vm.Total, MemAvailable: vm.Available, MemUsedPercent: vm.UsedPercent}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		st.UptimeSec = up
	}
	return st
}

func processStats() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return ProcessStats{
		AllocBytes: m.Alloc,
		SysBytes:   m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// statusHandler returns the orchestrator state and the last emitted result.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{State: s.orch.State().String(), Last: s.orch.Last()})
}

// cycleHandler runs one cycle. A multipart "image" field supplies the
// frame; without it the orchestrator's frame source is used.
func (s *Server) cycleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	ctype, ok := contentTypes[format]
	if !ok {
		s.writeErrorResponse(w, "unsupported format: "+format, http.StatusBadRequest)
		return
	}

	req, status, err := s.parseCycleRequest(w, r)
	if err != nil {
		cycleRequestsTotal.WithLabelValues("rejected").Inc()
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.orch.Trigger(ctx, req)
	if errors.Is(err, cycle.ErrBusy) {
		cycleRequestsTotal.WithLabelValues("busy").Inc()
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": MessageBusy, "detail": err.Error()})
		return
	}
	if err != nil {
		cycleRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out, err := cycle.Format(res, format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	outcome := cycle.OutcomeClean
	if res.Degraded() {
		outcome = cycle.OutcomeDegraded
	}
	cycleRequestsTotal.WithLabelValues(outcome).Inc()

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("X-Cycle-Id", res.ID.String())
	if _, err := w.Write([]byte(out)); err != nil {
		slog.Error("Failed to write cycle response", "error", err)
	}
}

func (s *Server) parseCycleRequest(w http.ResponseWriter, r *http.Request) (cycle.Request, int, error) {
	req := cycle.Request{Trigger: "http", Serial: r.URL.Query().Get("serial")}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, 0, nil
	}

	limit := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, http.StatusRequestEntityTooLarge, errors.New("upload exceeds limit")
		}
		return req, http.StatusBadRequest, err
	}
	if v := r.FormValue("serial"); v != "" {
		req.Serial = v
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, 0, nil
	}
	if err != nil {
		return req, http.StatusBadRequest, err
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		return req, http.StatusBadRequest, err
	}
	f, err := frame.FromImage(img, frame.OrderRGB)
	if err != nil {
		return req, http.StatusBadRequest, err
	}
	req.Frame = f
	return req, 0, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error body.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}
