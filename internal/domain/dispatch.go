package domain

import "time"

// NotificationType — тип уведомления, который понимает провайдер.
type NotificationType string

const (
	NotificationTypeText    NotificationType = "text"
	NotificationTypeTextSms NotificationType = "textSms"
	NotificationTypeCall    NotificationType = "call"
	NotificationTypeVideo   NotificationType = "video"
)

// FailureReason — причина неудачной попытки отправки.
type FailureReason struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ProviderResult — ответ провайдера на успешную отправку.
type ProviderResult struct {
	Provider string `json:"provider"`
	ID       string `json:"id"`
}

// Dispatch — одна логическая доставка уведомления.
//
// DispatchID — ключ идемпотентности: повторный createDispatch
// с тем же ID обновляет существующую запись.
// RetryCount и FailureReasons растут только при ошибке отправки.
type Dispatch struct {
	DispatchID        string           `json:"dispatchId"`
	CorrelationID     string           `json:"correlationId,omitempty"`
	SenderClientID    string           `json:"senderClientId,omitempty"`
	RecipientClientID string           `json:"recipientClientId,omitempty"`
	ServiceName       string           `json:"serviceName,omitempty"`
	NotificationType  NotificationType `json:"notificationType,omitempty"`
	Content           string           `json:"content,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	Status            DispatchStatus   `json:"status"`
	RetryCount        int              `json:"retryCount"`
	FailureReasons    []FailureReason  `json:"failureReasons"`
	TriggersAt        *time.Time       `json:"triggersAt,omitempty"`
	TriggeredID       string           `json:"triggeredId,omitempty"`
	AppointmentID     string           `json:"appointmentId,omitempty"`
	ProviderResult    *ProviderResult  `json:"providerResult,omitempty"`
	SentAt            *time.Time       `json:"sentAt,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// DispatchPatch — входящий createDispatch.
//
// Nil-поля означают «не менять»: повторная отправка сообщения
// без поля не стирает сохранённое значение.
type DispatchPatch struct {
	DispatchID        string            `json:"dispatchId"`
	CorrelationID     *string           `json:"correlationId,omitempty"`
	SenderClientID    *string           `json:"senderClientId,omitempty"`
	RecipientClientID *string           `json:"recipientClientId,omitempty"`
	ServiceName       *string           `json:"serviceName,omitempty"`
	NotificationType  *NotificationType `json:"notificationType,omitempty"`
	Content           *string           `json:"content,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	Status            *DispatchStatus   `json:"status,omitempty"`
	TriggersAt        *time.Time        `json:"triggersAt,omitempty"`
	AppointmentID     *string           `json:"appointmentId,omitempty"`
}

// NewDispatch создаёт dispatch из первого patch.
// Статус по умолчанию — received.
func NewDispatch(p DispatchPatch, now time.Time) *Dispatch {
	d := &Dispatch{
		DispatchID:     p.DispatchID,
		Status:         DispatchStatusReceived,
		FailureReasons: []FailureReason{},
		CreatedAt:      now,
	}
	d.Apply(p, now)
	return d
}

// Apply накладывает patch на dispatch с семантикой частичного обновления.
//
// Статус из patch применяется только по правилам CanTransition:
// done и canceled внешний upsert не покидает, canceled ставится только из received.
func (d *Dispatch) Apply(p DispatchPatch, now time.Time) {
	if p.CorrelationID != nil {
		d.CorrelationID = *p.CorrelationID
	}
	if p.SenderClientID != nil {
		d.SenderClientID = *p.SenderClientID
	}
	if p.RecipientClientID != nil {
		d.RecipientClientID = *p.RecipientClientID
	}
	if p.ServiceName != nil {
		d.ServiceName = *p.ServiceName
	}
	if p.NotificationType != nil {
		d.NotificationType = *p.NotificationType
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.Metadata != nil {
		d.Metadata = p.Metadata
	}
	if p.Status != nil && *p.Status != d.Status && CanTransition(d.Status, *p.Status) {
		d.Status = *p.Status
	}
	if p.TriggersAt != nil {
		t := *p.TriggersAt
		d.TriggersAt = &t
	}
	if p.AppointmentID != nil {
		d.AppointmentID = *p.AppointmentID
	}
	d.UpdatedAt = now
}

// DispatchUpdate — внутреннее обновление статуса в процессе доставки.
//
// В отличие от DispatchPatch не приходит извне и подчиняется CanTransition.
type DispatchUpdate struct {
	// Status — целевой статус.
	Status DispatchStatus

	// From — допустимые текущие статусы (пусто — любой, разрешённый CanTransition).
	From []DispatchStatus

	// FailureReason — при наличии добавляется в FailureReasons, RetryCount++.
	FailureReason *FailureReason

	// ProviderResult — результат провайдера при переходе в done.
	ProviderResult *ProviderResult
}

// Allows проверяет, применимо ли обновление к текущему статусу.
func (u DispatchUpdate) Allows(current DispatchStatus) bool {
	if !CanTransition(current, u.Status) {
		return false
	}
	if len(u.From) == 0 {
		return true
	}
	for _, s := range u.From {
		if s == current {
			return true
		}
	}
	return false
}

// ApplyUpdate применяет внутреннее обновление. Проверку Allows делает вызывающий.
func (d *Dispatch) ApplyUpdate(u DispatchUpdate, now time.Time) {
	d.Status = u.Status
	if u.FailureReason != nil {
		d.FailureReasons = append(d.FailureReasons, *u.FailureReason)
		d.RetryCount++
	}
	if u.ProviderResult != nil {
		pr := *u.ProviderResult
		d.ProviderResult = &pr
	}
	if u.Status == DispatchStatusDone {
		sentAt := now
		d.SentAt = &sentAt
	}
	d.UpdatedAt = now
}

// DispatchFields — поля dispatch, доступные для проекции, и их колонки в БД.
var DispatchFields = map[string]string{
	"dispatchId":        "dispatch_id",
	"correlationId":     "correlation_id",
	"senderClientId":    "sender_client_id",
	"recipientClientId": "recipient_client_id",
	"serviceName":       "service_name",
	"notificationType":  "notification_type",
	"content":           "content",
	"metadata":          "metadata",
	"status":            "status",
	"retryCount":        "retry_count",
	"failureReasons":    "failure_reasons",
	"triggersAt":        "triggers_at",
	"triggeredId":       "triggered_id",
	"appointmentId":     "appointment_id",
	"providerResult":    "provider_result",
	"sentAt":            "sent_at",
	"createdAt":         "created_at",
	"updatedAt":         "updated_at",
}

// Trigger — отложенный «разбуди меня в expireAt» для dispatch.
//
// Ключ — DispatchID: повторная отправка обновляет ExpireAt на месте,
// TriggeredID остаётся прежним.
type Trigger struct {
	DispatchID  string    `json:"dispatchId"`
	ExpireAt    time.Time `json:"expireAt"`
	TriggeredID string    `json:"triggeredId"`
}
