package domain

import "time"

// LeaderType — домен, за таймеры которого отвечает лидер.
// На каждый LeaderType в хранилище не более одной записи.
type LeaderType string

const (
	LeaderTypeAppointment LeaderType = "appointment"
	LeaderTypeMember      LeaderType = "member"
)

// LeaderLease — аренда лидерства для домена.
//
// Создаётся на первом тике, продлевается каждым тиком владельца.
// Удаляется только при штатной остановке владельца (Release) или в тестах.
type LeaderLease struct {
	// LeaderType — домен аренды.
	LeaderType LeaderType `json:"leaderType"`

	// OwnerID — идентификатор процесса-владельца.
	OwnerID string `json:"ownerId"`

	// UpdatedAt — время последнего продления.
	UpdatedAt time.Time `json:"updatedAt"`
}

// OwnedBy проверяет, принадлежит ли аренда процессу.
func (l *LeaderLease) OwnedBy(ownerID string) bool {
	return l != nil && l.OwnerID == ownerID
}

// IsExpired возвращает true, если владелец не продлевал аренду дольше ttl.
// ttl <= 0 — аренда не истекает.
func (l *LeaderLease) IsExpired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return l.UpdatedAt.Before(now.Add(-ttl))
}
