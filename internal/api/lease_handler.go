package api

import (
	"net/http"

	"github.com/shaiso/Courier/internal/domain"
)

// GetLease возвращает аренду лидерства домена.
// GET /api/v1/leases/{leaderType}
func (h *Handler) GetLease(w http.ResponseWriter, r *http.Request) {
	lt := domain.LeaderType(r.PathValue("leaderType"))

	lease, err := h.leases.Get(r.Context(), lt)
	if HandleStoreError(w, h.logger, err, "lease not found") {
		return
	}

	Success(w, LeaseFromDomain(*lease, h.now(), h.leaseTTL))
}
