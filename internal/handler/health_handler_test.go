package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// TestHealthCheck_OK はデータベース接続が正常な場合に200が返ることを検証する。
func TestHealthCheck_OK(t *testing.T) {
	h := NewHealthHandler(&mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Check(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

// TestHealthCheck_DBUnavailable はデータベース接続失敗時に503が返ることを検証する。
func TestHealthCheck_DBUnavailable(t *testing.T) {
	h := NewHealthHandler(&mockPinger{
		pingFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Check(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "unavailable" {
		t.Errorf("status = %q, want %q", body["status"], "unavailable")
	}
}
