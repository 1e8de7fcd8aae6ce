package domain

import "time"

// NotifyEvent — исходящее событие notify.
//
// Контракт с потребителем (доставка контента провайдеру):
//   - MemberID, UserID — обязательны;
//   - Type — тип уведомления;
//   - Metadata.Content — готовый текст, шаблоны уже отрендерены.
//
// Событие публикуется один раз, повторов на стороне таймера нет.
type NotifyEvent struct {
	MemberID string           `json:"memberId"`
	UserID   string           `json:"userId"`
	Type     NotificationType `json:"type"`
	Metadata NotifyMetadata   `json:"metadata"`
}

// NotifyMetadata — полезная нагрузка notify.
type NotifyMetadata struct {
	Content string     `json:"content"`
	When    *time.Time `json:"when,omitempty"`
}
