package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Courier/internal/telemetry"
)

// RequestIDHeader — заголовок корреляции запроса. Входящее значение
// сохраняется, иначе генерируется UUID.
const RequestIDHeader = "X-Request-ID"

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RequestID проставляет X-Request-ID в запрос и ответ.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// Logging логирует запрос и считает его в courier_api_requests_total.
//
// В лог попадает шаблон маршрута и, если маршрут адресует dispatch
// или клиента, его ID.
func Logging(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			telemetry.APIRequests.WithLabelValues(route, strconv.Itoa(rw.status)).Inc()

			attrs := []any{
				"method", r.Method,
				"route", route,
				"status", rw.status,
				"bytes", rw.written,
				"duration", time.Since(start),
				"request_id", r.Header.Get(RequestIDHeader),
			}
			attrs = append(attrs, subjectAttrs(r)...)

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// subjectAttrs извлекает ID адресуемой сущности из path-параметров.
func subjectAttrs(r *http.Request) []any {
	if id := r.PathValue("dispatchId"); id != "" {
		return []any{"dispatch_id", id}
	}
	id := r.PathValue("id")
	if id == "" {
		return nil
	}
	switch r.Pattern {
	case "GET /api/v1/dispatches/{id}", "POST /api/v1/dispatches/{id}/cancel":
		return []any{"dispatch_id", id}
	default:
		return []any{"client_id", id}
	}
}

// Recovery восстанавливается после паники в handler'е.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"stack", string(debug.Stack()),
						"route", r.Pattern,
						"request_id", r.Header.Get(RequestIDHeader),
					)
					Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter запоминает статус и размер ответа.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}
