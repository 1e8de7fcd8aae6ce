package api

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Courier/internal/domain"
)

// Поля JSON в camelCase, как в сообщениях conductor.

// Dispatch DTOs

// DispatchResponse — ответ с dispatch.
type DispatchResponse struct {
	DispatchID        string                  `json:"dispatchId"`
	CorrelationID     string                  `json:"correlationId,omitempty"`
	SenderClientID    string                  `json:"senderClientId,omitempty"`
	RecipientClientID string                  `json:"recipientClientId,omitempty"`
	ServiceName       string                  `json:"serviceName,omitempty"`
	NotificationType  domain.NotificationType `json:"notificationType,omitempty"`
	Status            domain.DispatchStatus   `json:"status"`
	RetryCount        int                     `json:"retryCount"`
	FailureReasons    []domain.FailureReason  `json:"failureReasons"`
	TriggersAt        *time.Time              `json:"triggersAt,omitempty"`
	TriggeredID       string                  `json:"triggeredId,omitempty"`
	AppointmentID     string                  `json:"appointmentId,omitempty"`
	ProviderResult    *domain.ProviderResult  `json:"providerResult,omitempty"`
	SentAt            *time.Time              `json:"sentAt,omitempty"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
}

// DispatchFromDomain конвертирует domain.Dispatch в DispatchResponse.
func DispatchFromDomain(d domain.Dispatch) DispatchResponse {
	reasons := d.FailureReasons
	if reasons == nil {
		reasons = []domain.FailureReason{}
	}
	return DispatchResponse{
		DispatchID:        d.DispatchID,
		CorrelationID:     d.CorrelationID,
		SenderClientID:    d.SenderClientID,
		RecipientClientID: d.RecipientClientID,
		ServiceName:       d.ServiceName,
		NotificationType:  d.NotificationType,
		Status:            d.Status,
		RetryCount:        d.RetryCount,
		FailureReasons:    reasons,
		TriggersAt:        d.TriggersAt,
		TriggeredID:       d.TriggeredID,
		AppointmentID:     d.AppointmentID,
		ProviderResult:    d.ProviderResult,
		SentAt:            d.SentAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// SubmitDispatchResponse — ответ на постановку createDispatch в очередь.
type SubmitDispatchResponse struct {
	DispatchID string `json:"dispatchId"`
	Queued     bool   `json:"queued"`
}

// DeleteDispatchesResponse — ответ на удаление dispatch клиента.
type DeleteDispatchesResponse struct {
	Deleted     int      `json:"deleted"`
	DispatchIDs []string `json:"dispatchIds"`
}

// Lease DTOs

// LeaseResponse — ответ с арендой лидерства.
type LeaseResponse struct {
	LeaderType domain.LeaderType `json:"leaderType"`
	OwnerID    string            `json:"ownerId"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Expired    bool              `json:"expired"`
}

// LeaseFromDomain конвертирует domain.LeaderLease в LeaseResponse.
func LeaseFromDomain(l domain.LeaderLease, now time.Time, ttl time.Duration) LeaseResponse {
	return LeaseResponse{
		LeaderType: l.LeaderType,
		OwnerID:    l.OwnerID,
		UpdatedAt:  l.UpdatedAt,
		Expired:    l.IsExpired(now, ttl),
	}
}

// Event DTOs

// PublishEventRequest — доменное событие для планировщиков.
type PublishEventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
