package domain

// DispatchStatus — статус доставки dispatch.
//
// Жизненный цикл:
//
//	received → acquired → done
//	             ↓   ↑
//	            error
//	received → canceled
//
// acquired — dispatch захвачен отправителем (первая попытка или повтор после error).
// canceled достижим только из received, из done и canceled выхода нет.
type DispatchStatus string

const (
	// DispatchStatusReceived — dispatch принят, отправка ещё не начиналась.
	DispatchStatusReceived DispatchStatus = "received"

	// DispatchStatusAcquired — dispatch захвачен для отправки.
	DispatchStatusAcquired DispatchStatus = "acquired"

	// DispatchStatusDone — уведомление отправлено провайдеру.
	DispatchStatusDone DispatchStatus = "done"

	// DispatchStatusError — последняя попытка отправки завершилась ошибкой.
	DispatchStatusError DispatchStatus = "error"

	// DispatchStatusCanceled — dispatch отменён до начала отправки.
	DispatchStatusCanceled DispatchStatus = "canceled"
)

// IsValid проверяет, что статус известен.
func (s DispatchStatus) IsValid() bool {
	switch s {
	case DispatchStatusReceived, DispatchStatusAcquired, DispatchStatusDone,
		DispatchStatusError, DispatchStatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если из статуса нет переходов.
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusDone || s == DispatchStatusCanceled
}

// CanTransition проверяет переход по внутреннему пути обновления.
//
// Разрешён любой переход, кроме выхода из done/canceled;
// canceled допускается только из received.
func CanTransition(from, to DispatchStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == DispatchStatusCanceled {
		return from == DispatchStatusReceived
	}
	return to.IsValid()
}

// AppointmentStatus — статус встречи в источнике данных.
type AppointmentStatus string

const (
	AppointmentStatusRequested AppointmentStatus = "requested"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusDone      AppointmentStatus = "done"
	AppointmentStatusClosed    AppointmentStatus = "closed"
)

// FutureNotifyStatus — статус отложенного пользовательского уведомления.
type FutureNotifyStatus string

const (
	FutureNotifyStatusPending  FutureNotifyStatus = "pending"
	FutureNotifyStatusDone     FutureNotifyStatus = "done"
	FutureNotifyStatusCanceled FutureNotifyStatus = "canceled"
)
