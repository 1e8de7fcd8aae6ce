package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType — дискриминатор конверта.
type MessageType string

// Входящие команды conductor'а.
const (
	TypeUpdateClientSettings MessageType = "updateClientSettings"
	TypeDeleteClientSettings MessageType = "deleteClientSettings"
	TypeCreateDispatch       MessageType = "createDispatch"
	TypeDeleteDispatch       MessageType = "deleteDispatch"
)

// Доменные события для планировщика.
const (
	TypeAppointmentScheduled MessageType = "appointment.scheduled"
	TypeAppointmentDeleted   MessageType = "appointment.deleted"
	TypeFutureNotify         MessageType = "notify.future"
	TypeFutureNotifyDeleted  MessageType = "notify.future.deleted"
	TypeMemberRegistered     MessageType = "member.registered"
	TypeMemberLoggedIn       MessageType = "member.loggedIn"
)

// TypeNotify — исходящее notify-событие.
const TypeNotify MessageType = "notify"

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — тело, форма зависит от Type.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage собирает конверт с новым ID.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, fmt.Errorf("empty payload for %s", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
