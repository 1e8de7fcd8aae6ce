package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/shaiso/Courier/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestLoggingCapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFound(w, "nope")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "status=404") {
		t.Errorf("log = %q, want status=404", buf.String())
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "h")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b,h" {
		t.Errorf("order = %v, want a,b,h", order)
	}
}

func apiRequests(t *testing.T, route, status string) float64 {
	t.Helper()
	var m dto.Metric
	if err := telemetry.APIRequests.WithLabelValues(route, status).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("incoming id not kept: handler=%q response=%q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-42" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected generated id, handler=%q response=%q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestLogging_DispatchRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	const route = "GET /api/v1/dispatches/{id}"
	before := apiRequests(t, route, "200")

	mux := http.NewServeMux()
	mux.Handle(route, Chain(RequestID(), Logging(logger))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		Success(w, map[string]string{"dispatchId": "d1"})
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispatches/d1", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	mux.ServeHTTP(httptest.NewRecorder(), req)

	log := buf.String()
	for _, want := range []string{`route="GET /api/v1/dispatches/{id}"`, "dispatch_id=d1", "request_id=req-7", "status=200"} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %s: %q", want, log)
		}
	}
	if strings.Contains(log, "client_id") {
		t.Errorf("dispatch route logged as client: %q", log)
	}
	if got := apiRequests(t, route, "200"); got != before+1 {
		t.Errorf("api requests counter = %v, want %v", got, before+1)
	}
}

func TestLogging_ClientRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.Handle("DELETE /api/v1/clients/{id}/dispatches", Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NoContent(w)
	})))
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/clients/m1/dispatches", nil))

	if !strings.Contains(buf.String(), "client_id=m1") {
		t.Errorf("log = %q, want client_id=m1", buf.String())
	}
}

func TestLogging_PanicLoggedAsServerError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Chain(Logging(logger), Recovery(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), string(ErrCodeInternalError)) {
		t.Errorf("response = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(buf.String(), "level=ERROR msg=\"http request\"") || !strings.Contains(buf.String(), "status=500") {
		t.Errorf("log = %q", buf.String())
	}
}
