package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rep
}

func TestHealthzAlwaysOK(t *testing.T) {
	t.Parallel()

	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rep := decodeReport(t, rec); rep.Status != "ok" {
		t.Errorf("status field = %q, want ok", rep.Status)
	}
}

func TestReadyzAllProbesPass(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "telephony", Check: func(context.Context) error { return nil }},
		Checker{Name: "recognizer", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	rep := decodeReport(t, rec)
	if rep.Status != "ok" {
		t.Errorf("status field = %q, want ok", rep.Status)
	}
	for _, name := range []string{"telephony", "recognizer"} {
		if rep.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want ok", name, rep.Checks[name])
		}
	}
}

func TestReadyzFailingProbe(t *testing.T) {
	t.Parallel()

	h := New(
		Checker{Name: "telephony", Check: func(context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "recognizer", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	rep := decodeReport(t, rec)
	if rep.Status != "fail" {
		t.Errorf("status field = %q, want fail", rep.Status)
	}
	if rep.Checks["telephony"] != "fail: connection refused" {
		t.Errorf("telephony check = %q", rep.Checks["telephony"])
	}
	// A later probe still runs after an earlier failure.
	if rep.Checks["recognizer"] != "ok" {
		t.Errorf("recognizer check = %q, want ok", rep.Checks["recognizer"])
	}
}

func TestReadyzWithoutProbes(t *testing.T) {
	t.Parallel()

	h := New()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rep := decodeReport(t, rec); rep.Status != "ok" {
		t.Errorf("status field = %q, want ok", rep.Status)
	}
}

func TestRegisterRoutes(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "telephony", Check: func(context.Context) error { return nil }})
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestReadyzRespectsRequestCancellation(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
