package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func passing(_ context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func callReadyz(t *testing.T, h *Handler) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthzAlwaysReturns200(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyzAllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: passing},
		Checker{Name: "stt", Check: passing},
	)

	code, body := callReadyz(t, h)
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"store", "stt"} {
		if body.Checks[name] != "ok" {
			t.Errorf("%s check = %q, want %q", name, body.Checks[name], "ok")
		}
	}
}

func TestReadyzSingleCheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: failing("connection refused")},
		Checker{Name: "stt", Check: passing},
	)

	code, body := callReadyz(t, h)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["store"] != "fail: connection refused" {
		t.Errorf("store check = %q", body.Checks["store"])
	}
	if body.Checks["stt"] != "ok" {
		t.Errorf("stt check = %q, want ok", body.Checks["stt"])
	}
}

func TestReadyzAllCheckersFail(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: failing("timeout")},
		Checker{Name: "stt", Check: failing("no api key")},
	)

	code, body := callReadyz(t, h)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["store"] != "fail: timeout" {
		t.Errorf("store check = %q", body.Checks["store"])
	}
	if body.Checks["stt"] != "fail: no api key" {
		t.Errorf("stt check = %q", body.Checks["stt"])
	}
}

func TestReadyzNoCheckers(t *testing.T) {
	code, body := callReadyz(t, New())
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(Checker{Name: "store", Check: passing}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyzRespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
