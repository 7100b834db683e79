package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

func TestNewRecord_Defaults(t *testing.T) {
	rec := NewRecord(Meta{LineID: "L1", DeviceID: "EDGE-001"}, map[string]int{"n": 1}, at)
	assert.Equal(t, DefaultOperatorID, rec.OperatorID)
	assert.Equal(t, DefaultSourceType, rec.SourceType)
	assert.Equal(t, at.Unix(), rec.Timestamp)

	rec = NewRecord(Meta{OperatorID: "op-7", SourceType: "MANUAL"}, nil, at)
	assert.Equal(t, "op-7", rec.OperatorID)
	assert.Equal(t, "MANUAL", rec.SourceType)
}

func TestHTTPUploader_Upload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 12}`))
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, time.Second)
	rec := NewRecord(Meta{LineID: "L1", DeviceID: "EDGE-001"}, map[string]string{"serial": "SN-1A2B3C4D"}, at)
	require.NoError(t, u.Upload(context.Background(), rec))

	assert.Equal(t, "L1", got["line_id"])
	assert.Equal(t, "EDGE-001", got["device_id"])
	assert.Equal(t, "DEFAULT", got["operator_id"])
	assert.Equal(t, "AUTO", got["source_type"])
	assert.InDelta(t, float64(at.Unix()), got["timestamp"], 0)
	assert.Equal(t, map[string]any{"serial": "SN-1A2B3C4D"}, got["payload"])
}

func TestHTTPUploader_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok envelope", http.StatusOK, `{"code": 200, "message": "ok"}`, false},
		{"plain text", http.StatusOK, `accepted`, false},
		{"bad code in envelope", http.StatusOK, `{"code": 500, "message": "db down"}`, true},
		{"server error", http.StatusInternalServerError, `boom`, true},
		{"validation error", http.StatusUnprocessableEntity, `{"detail": "missing sku"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewHTTPUploader(srv.URL, time.Second).Upload(context.Background(), NewRecord(Meta{}, nil, at))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrRejected)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHTTPUploader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPUploader(url, 200*time.Millisecond).Upload(context.Background(), NewRecord(Meta{}, nil, at))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestNewHTTPUploader_Defaults(t *testing.T) {
	u := NewHTTPUploader("", 0)
	assert.Equal(t, DefaultEndpoint, u.endpoint)
	assert.Equal(t, 10*time.Second, u.client.Timeout)
}
