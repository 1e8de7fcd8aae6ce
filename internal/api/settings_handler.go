package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Courier/internal/domain"
)

// GetClientSettings возвращает настройки клиента.
// GET /api/v1/client-settings/{id}
func (h *Handler) GetClientSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.dispatches.GetClientSettings(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "client settings not found") {
		return
	}

	Success(w, s)
}

// UpdateClientSettings частично обновляет настройки клиента.
// PUT /api/v1/client-settings/{id}
//
// Поля, отсутствующие в теле, не меняются.
func (h *Handler) UpdateClientSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientSettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	req.ID = r.PathValue("id")

	s, err := h.dispatches.UpdateClientSettings(r.Context(), req)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	Success(w, s)
}

// DeleteClientSettings удаляет настройки клиента.
// DELETE /api/v1/client-settings/{id}
func (h *Handler) DeleteClientSettings(w http.ResponseWriter, r *http.Request) {
	err := h.dispatches.DeleteClientSettings(r.Context(), r.PathValue("id"))
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	NoContent(w)
}
