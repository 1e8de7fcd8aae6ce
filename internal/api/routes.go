package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Logging(h.logger),
		Recovery(h.logger),
	)

	// Dispatches
	mux.Handle("GET /api/v1/dispatches", chain(http.HandlerFunc(h.ListDispatches)))
	mux.Handle("POST /api/v1/dispatches", chain(http.HandlerFunc(h.SubmitDispatch)))
	mux.Handle("GET /api/v1/dispatches/{id}", chain(http.HandlerFunc(h.GetDispatch)))
	mux.Handle("POST /api/v1/dispatches/{id}/cancel", chain(http.HandlerFunc(h.CancelDispatch)))
	mux.Handle("DELETE /api/v1/clients/{id}/dispatches", chain(http.HandlerFunc(h.DeleteClientDispatches)))

	// Triggers
	mux.Handle("GET /api/v1/triggers/{dispatchId}", chain(http.HandlerFunc(h.GetTrigger)))

	// Leases
	mux.Handle("GET /api/v1/leases/{leaderType}", chain(http.HandlerFunc(h.GetLease)))

	// Client settings
	mux.Handle("GET /api/v1/client-settings/{id}", chain(http.HandlerFunc(h.GetClientSettings)))
	mux.Handle("PUT /api/v1/client-settings/{id}", chain(http.HandlerFunc(h.UpdateClientSettings)))
	mux.Handle("DELETE /api/v1/client-settings/{id}", chain(http.HandlerFunc(h.DeleteClientSettings)))

	// Domain events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.PublishEvent)))
}
