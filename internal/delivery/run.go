package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetryExhausted — все попытки по политике исчерпаны.
var ErrRetryExhausted = errors.New("retry exhausted")

// Attempt — одна попытка доставки, n начинается с 1.
type Attempt func(ctx context.Context, n int) error

// Hooks — точки, в которых вызывающий фиксирует переходы состояния.
// Ошибка из hook'а прерывает доставку и возвращается из Run как есть.
type Hooks struct {
	// OnFailure вызывается после каждой неудачной попытки.
	OnFailure func(ctx context.Context, n int, err error) error

	// BeforeRetry вызывается после задержки, перед попыткой n.
	BeforeRetry func(ctx context.Context, n int) error
}

// Run выполняет attempt с повторами по policy.
//
// Возвращает nil при успехе, ошибку с ErrRetryExhausted после последней
// неудачной попытки, ошибку hook'а или ctx.Err().
func Run(ctx context.Context, policy RetryPolicy, attempt Attempt, hooks Hooks) error {
	maxAttempts := policy.MaxAttempts()

	for n := 1; ; n++ {
		err := attempt(ctx, n)
		if err == nil {
			return nil
		}

		if hooks.OnFailure != nil {
			if herr := hooks.OnFailure(ctx, n, err); herr != nil {
				return herr
			}
		}

		if n >= maxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, n, err)
		}

		// Ждём с учётом context
		select {
		case <-time.After(policy.DelayFor(n)):
		case <-ctx.Done():
			return ctx.Err()
		}

		if hooks.BeforeRetry != nil {
			if herr := hooks.BeforeRetry(ctx, n+1); herr != nil {
				return herr
			}
		}
	}
}
