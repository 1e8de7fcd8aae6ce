package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Courier/internal/mq"
)

// schedulerEvents — события, которые принимают планировщики.
var schedulerEvents = map[mq.MessageType]bool{
	mq.TypeAppointmentScheduled: true,
	mq.TypeAppointmentDeleted:   true,
	mq.TypeFutureNotify:         true,
	mq.TypeFutureNotifyDeleted:  true,
	mq.TypeMemberRegistered:     true,
	mq.TypeMemberLoggedIn:       true,
}

// PublishEvent публикует доменное событие для планировщиков.
// POST /api/v1/events
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	msgType := mq.MessageType(req.Type)
	if !schedulerEvents[msgType] {
		BadRequest(w, "unsupported event type")
		return
	}
	if len(req.Payload) == 0 {
		BadRequest(w, "payload is required")
		return
	}

	if h.publisher == nil {
		BrokerUnavailable(w)
		return
	}

	if err := h.publisher.PublishEvent(r.Context(), msgType, req.Payload); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("event published", "type", msgType)
	Accepted(w, map[string]string{"type": req.Type})
}
