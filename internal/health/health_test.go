package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aikata-app/aikata/internal/character"
)

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()

	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if res := decodeResult(t, rec); res.Status != "ok" {
		t.Errorf("body status = %q, want ok", res.Status)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "a", Check: func(context.Context) error { return nil }},
		Checker{Name: "b", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "ok" {
		t.Errorf("body status = %q, want ok", res.Status)
	}
	if res.Checks["a"] != "ok" || res.Checks["b"] != "ok" {
		t.Errorf("checks = %v", res.Checks)
	}
}

func TestReadyzFailingCheck(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "good", Check: func(context.Context) error { return nil }},
		Checker{Name: "bad", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "fail" {
		t.Errorf("body status = %q, want fail", res.Status)
	}
	if res.Checks["good"] != "ok" {
		t.Errorf("passing check reported %q", res.Checks["good"])
	}
	if !strings.Contains(res.Checks["bad"], "connection refused") {
		t.Errorf("failing check reported %q", res.Checks["bad"])
	}
}

func TestStoreCheck(t *testing.T) {
	t.Parallel()

	check := StoreCheck(character.NewMemStore())
	if check.Name != "character_store" {
		t.Errorf("Name = %q", check.Name)
	}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("check against live store: %v", err)
	}
}

func TestRendererCheck(t *testing.T) {
	t.Parallel()

	probeErr := errors.New("renderer gone")
	check := RendererCheck(func(context.Context) error { return probeErr })
	if check.Name != "renderer" {
		t.Errorf("Name = %q", check.Name)
	}
	if err := check.Check(context.Background()); !errors.Is(err, probeErr) {
		t.Errorf("check returned %v, want the probe error", err)
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
