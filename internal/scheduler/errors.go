package scheduler

import "errors"

var (
	// ErrNotLeader — реплика не держит аренду домена; таймер не регистрируется.
	ErrNotLeader = errors.New("not leader")

	// ErrUnknownEvent — тип доменного события не поддерживается.
	ErrUnknownEvent = errors.New("unknown event type")
)
