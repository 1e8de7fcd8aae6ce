package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — переход недопустим для текущего статуса записи.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnknownField — запрошенное поле проекции не существует.
	ErrUnknownField = errors.New("unknown field")
)
