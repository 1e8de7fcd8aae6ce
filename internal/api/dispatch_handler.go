package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shaiso/Courier/internal/domain"
	"github.com/shaiso/Courier/internal/mq"
)

// ListDispatches возвращает dispatch отправителя.
// GET /api/v1/dispatches?sender=...&fields=dispatchId,status
//
// С fields возвращаются только указанные поля.
func (h *Handler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	sender := r.URL.Query().Get("sender")
	if sender == "" {
		BadRequest(w, "sender is required")
		return
	}

	if fieldsStr := r.URL.Query().Get("fields"); fieldsStr != "" {
		fields := splitFields(fieldsStr)
		rows, err := h.dispatches.ProjectDispatchesBySender(r.Context(), sender, fields)
		if HandleStoreError(w, h.logger, err, "") {
			return
		}
		List(w, rows, len(rows))
		return
	}

	dispatches, err := h.dispatches.ListDispatchesBySender(r.Context(), sender)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]DispatchResponse, len(dispatches))
	for i, d := range dispatches {
		result[i] = DispatchFromDomain(d)
	}

	List(w, result, len(result))
}

// SubmitDispatch ставит createDispatch в очередь conductor.
// POST /api/v1/dispatches
func (h *Handler) SubmitDispatch(w http.ResponseWriter, r *http.Request) {
	var req domain.DispatchPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.DispatchID == "" {
		BadRequest(w, "dispatchId is required")
		return
	}

	if h.publisher == nil {
		BrokerUnavailable(w)
		return
	}

	if err := h.publisher.PublishConductor(r.Context(), mq.TypeCreateDispatch, req); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("dispatch submitted", "dispatch_id", req.DispatchID)
	Accepted(w, SubmitDispatchResponse{DispatchID: req.DispatchID, Queued: true})
}

// GetDispatch возвращает dispatch по ID.
// GET /api/v1/dispatches/{id}
func (h *Handler) GetDispatch(w http.ResponseWriter, r *http.Request) {
	d, err := h.dispatches.GetDispatch(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "dispatch not found") {
		return
	}

	Success(w, DispatchFromDomain(*d))
}

// CancelDispatch отменяет dispatch в статусе received.
// POST /api/v1/dispatches/{id}/cancel
func (h *Handler) CancelDispatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.dispatches.CancelDispatch(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "dispatch not found") {
		return
	}

	d, err := h.dispatches.GetDispatch(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "dispatch not found") {
		return
	}

	Success(w, DispatchFromDomain(*d))
}

// DeleteClientDispatches удаляет все dispatch получателя.
// DELETE /api/v1/clients/{id}/dispatches
func (h *Handler) DeleteClientDispatches(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.dispatches.DeleteClientDispatches(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	ids := make([]string, len(deleted))
	for i, d := range deleted {
		ids[i] = d.DispatchID
	}

	Success(w, DeleteDispatchesResponse{Deleted: len(ids), DispatchIDs: ids})
}

// GetTrigger возвращает trigger отложенного dispatch.
// GET /api/v1/triggers/{dispatchId}
func (h *Handler) GetTrigger(w http.ResponseWriter, r *http.Request) {
	tr, err := h.dispatches.GetTrigger(r.Context(), r.PathValue("dispatchId"))
	if HandleStoreError(w, h.logger, err, "trigger not found") {
		return
	}

	Success(w, tr)
}

func splitFields(s string) []string {
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}
