package delivery

import "time"

// Backoff — стратегия задержки между попытками.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy — политика повторов.
type RetryPolicy struct {
	// MaxRetries — число повторов после первой попытки.
	MaxRetries int

	// Delay — задержка перед повтором (для exponential — начальная).
	Delay time.Duration

	// Backoff — стратегия (по умолчанию fixed).
	Backoff Backoff

	// MaxDelay — потолок задержки для exponential (0 — 30s).
	MaxDelay time.Duration
}

// NoRetry — одна попытка без повторов.
var NoRetry = RetryPolicy{}

// Fixed возвращает политику с фиксированной задержкой.
func Fixed(maxRetries int, delay time.Duration) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, Delay: delay, Backoff: BackoffFixed}
}

// MaxAttempts возвращает общее число попыток.
func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// DelayFor возвращает задержку перед попыткой attempt+1.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}
	if p.Backoff != BackoffExponential {
		return delay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	// delay = Delay * 2^(attempt-1)
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
