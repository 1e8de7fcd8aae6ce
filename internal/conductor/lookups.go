package conductor

import (
	"context"
	"fmt"

	"github.com/shaiso/Courier/internal/domain"
)

// GetDispatch возвращает dispatch по ID.
func (c *Conductor) GetDispatch(ctx context.Context, dispatchID string) (*domain.Dispatch, error) {
	return c.dispatches.Get(ctx, dispatchID)
}

// ListDispatchesBySender возвращает dispatch отправителя.
func (c *Conductor) ListDispatchesBySender(ctx context.Context, senderClientID string) ([]domain.Dispatch, error) {
	return c.dispatches.ListBySender(ctx, senderClientID)
}

// ProjectDispatchesBySender возвращает только указанные поля dispatch отправителя.
// Неизвестное поле — repo.ErrUnknownField.
func (c *Conductor) ProjectDispatchesBySender(ctx context.Context, senderClientID string, fields []string) ([]map[string]any, error) {
	return c.dispatches.ListBySenderProjected(ctx, senderClientID, fields)
}

// DeleteClientDispatches удаляет все dispatch получателя вместе с их triggers.
// Пустой результат — не ошибка.
func (c *Conductor) DeleteClientDispatches(ctx context.Context, recipientClientID string) ([]domain.Dispatch, error) {
	deleted, err := c.dispatches.DeleteByRecipient(ctx, recipientClientID)
	if err != nil {
		return nil, fmt.Errorf("delete dispatches: %w", err)
	}
	for _, d := range deleted {
		if err := c.triggers.Delete(ctx, d.DispatchID); err != nil {
			return nil, fmt.Errorf("delete trigger %s: %w", d.DispatchID, err)
		}
	}
	c.logger.Info("client dispatches deleted",
		"recipient_client_id", recipientClientID,
		"count", len(deleted),
	)
	return deleted, nil
}

// GetTrigger возвращает trigger dispatch.
func (c *Conductor) GetTrigger(ctx context.Context, dispatchID string) (*domain.Trigger, error) {
	return c.triggers.Get(ctx, dispatchID)
}

// GetClientSettings возвращает настройки клиента.
func (c *Conductor) GetClientSettings(ctx context.Context, id string) (*domain.ClientSettings, error) {
	return c.settings.Get(ctx, id)
}

// UpdateClientSettings применяет частичное обновление и возвращает результат.
func (c *Conductor) UpdateClientSettings(ctx context.Context, p domain.ClientSettingsPatch) (*domain.ClientSettings, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: client settings id is required", ErrInvalidPayload)
	}
	return c.settings.Upsert(ctx, p)
}

// DeleteClientSettings удаляет настройки клиента. Отсутствие — не ошибка.
func (c *Conductor) DeleteClientSettings(ctx context.Context, id string) error {
	return c.settings.Delete(ctx, id)
}
