package conductor

import "errors"

var (
	// ErrUnknownMessageType — тип входящего сообщения не поддерживается.
	// Сообщение уходит в DLQ без повторов.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrInvalidPayload — payload не прошёл проверку (например, нет ID).
	ErrInvalidPayload = errors.New("invalid payload")

	// errSkipped — отправка не нужна: dispatch уже взят другой репликой,
	// отменён или завершён.
	errSkipped = errors.New("dispatch send skipped")
)

// abortError прерывает цикл повторов без записи failure reason.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func abort(err error) error {
	return &abortError{err: err}
}

func isAbort(err error) bool {
	var ae *abortError
	return errors.As(err, &ae)
}
