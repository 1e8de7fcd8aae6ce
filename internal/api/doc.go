// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (conductor, аренды, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - dispatch_handler.go — обработчики для /dispatches, /clients, /triggers
//   - settings_handler.go — обработчики для /client-settings
//   - lease_handler.go    — обработчики для /leases
//   - event_handler.go    — приём доменных событий для планировщиков
//
// API даёт чтение и администрирование dispatch; доставкой занимается conductor.
package api
