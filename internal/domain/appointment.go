package domain

import "time"

// Appointment — встреча member'а с user'ом.
//
// Источник истины — сервис встреч; здесь используется только для
// восстановления таймеров напоминаний.
type Appointment struct {
	ID       string            `json:"id"`
	MemberID string            `json:"memberId"`
	UserID   string            `json:"userId"`
	Start    time.Time         `json:"start"`
	Status   AppointmentStatus `json:"status,omitempty"`

	// FirstName — имя member'а для текста напоминания.
	FirstName string `json:"firstName,omitempty"`
}

// FutureNotify — произвольное сообщение, запланированное на Metadata.When.
type FutureNotify struct {
	ID       string               `json:"id"`
	MemberID string               `json:"memberId"`
	UserID   string               `json:"userId"`
	Type     NotificationType     `json:"type"`
	Metadata FutureNotifyMetadata `json:"metadata"`
	Status   FutureNotifyStatus   `json:"status,omitempty"`
}

// FutureNotifyMetadata — содержимое и время отложенного уведомления.
type FutureNotifyMetadata struct {
	When    time.Time `json:"when"`
	Content string    `json:"content"`
}

// Member — пациент, которому отправляются напоминания.
type Member struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	FirstName       string     `json:"firstName"`
	CreatedAt       time.Time  `json:"createdAt"`
	FirstLoggedInAt *time.Time `json:"firstLoggedInAt,omitempty"`
	NudgedAt        *time.Time `json:"nudgedAt,omitempty"`
}

// NeedsNudge возвращает true, если member ещё не заходил в приложение
// и напоминание ему не отправлялось.
func (m *Member) NeedsNudge() bool {
	return m.FirstLoggedInAt == nil && m.NudgedAt == nil
}

// EntityRef — ссылка на сущность по ID (события удаления/отмены).
type EntityRef struct {
	ID string `json:"id"`
}
