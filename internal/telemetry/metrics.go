package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы dispatch'а для DispatchOutcomes.
const (
	OutcomeSent      = "sent"
	OutcomeDeferred  = "deferred"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
	OutcomeResumed   = "resumed"
)

var (
	// Leader — 1, если процесс держит аренду домена.
	Leader = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_leader",
		Help: "Whether this replica holds the lease for a leader type.",
	}, []string{"leader_type"})

	// TimersRegistered — число ожидающих таймеров домена.
	TimersRegistered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courier_timers_registered",
		Help: "Pending in-process timers per scheduler domain.",
	}, []string{"domain"})

	// TimersFired — сработавшие таймеры по результату (ok, error).
	TimersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_timers_fired_total",
		Help: "Fired scheduler timers by domain and result.",
	}, []string{"domain", "result"})

	// DispatchOutcomes — исходы обработки dispatch'ей.
	DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_dispatch_outcomes_total",
		Help: "Dispatch handling outcomes.",
	}, []string{"outcome"})

	// DispatchSendAttempts — вызовы NotificationSender.
	DispatchSendAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_dispatch_send_attempts_total",
		Help: "Calls to the notification sender.",
	})

	// TriggersFired — истёкшие trigger'ы, забранные poller'ом.
	TriggersFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_triggers_fired_total",
		Help: "Expired dispatch triggers claimed by the poller.",
	})

	// APIRequests — запросы к HTTP API по шаблону маршрута и статусу.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_api_requests_total",
		Help: "HTTP API requests by route pattern and status code.",
	}, []string{"route", "status"})
)
