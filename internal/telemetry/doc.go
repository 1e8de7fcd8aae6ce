// Package telemetry обеспечивает наблюдаемость сервисов.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все процессы используют единый формат логов
// и экспортируют метрики на /metrics.
package telemetry
