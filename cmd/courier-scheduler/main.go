// Courier Scheduler — таймеры напоминаний с выбором лидера.
//
// Scheduler:
//   - Раз в минуту захватывает или продлевает аренду домена
//   - Лидер восстанавливает таймеры из БД (встречи, уведомления, member'ы)
//   - Получает доменные события из RabbitMQ (fanout на каждую реплику)
//   - Публикует notify, когда таймер срабатывает
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Courier/internal/config"
	"github.com/shaiso/Courier/internal/content"
	"github.com/shaiso/Courier/internal/links"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/scheduler"
	"github.com/shaiso/Courier/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("courier-scheduler")
	logger.Info("starting courier-scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := scheduler.ValidateTickSpec(cfg.LeaderTickSpec); err != nil {
		logger.Error("invalid LEADER_TICK_SPEC", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// RabbitMQ: без брокера планировщику некуда публиковать notify
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())

	publisher := mq.NewPublisher(mqConn, logger)

	// Коллабораторы таймеров
	leases := repo.NewLeaseRepo(pool)
	commLinks := links.NewCommunicationLinks(cfg.AppURL)
	shortener := links.NewShortener(links.ShortenerConfig{
		URL:   cfg.ShortenerURL,
		Token: cfg.ShortenerToken,
	})
	renderer := content.NewRenderer()
	window := scheduler.Window{AlertBefore: cfg.AlertBefore, MaxGap: cfg.MaxAlertGap}

	identifier := uuid.NewString()
	base := scheduler.BaseConfig{
		Leases:     leases,
		Logger:     logger,
		LeaseTTL:   cfg.LeaseTTL,
		TickSpec:   cfg.LeaderTickSpec,
		Identifier: identifier,
	}

	appointments := scheduler.NewAppointmentScheduler(scheduler.AppointmentConfig{
		Base:           base,
		Window:         window,
		Appointments:   repo.NewAppointmentRepo(pool),
		FutureNotifies: repo.NewFutureNotifyRepo(pool),
		Notifier:       publisher,
		Links:          commLinks,
		Shortener:      shortener,
		Renderer:       renderer,
	})

	members := scheduler.NewMemberScheduler(scheduler.MemberConfig{
		Base:       base,
		Window:     window,
		NudgeAfter: cfg.NudgeAfter,
		Members:    repo.NewMemberRepo(pool),
		Notifier:   publisher,
		Links:      commLinks,
		Shortener:  shortener,
		Renderer:   renderer,
	})

	// Доменные события: своя очередь у каждой реплики
	router := scheduler.NewEventRouter(appointments, members, logger)
	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Declare:  mq.DeclareReplicaQueue,
		Handler:  router.Handle,
		Prefetch: 10,
	})

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event consumer error", "error", err)
		}
	}()

	// Запускаем планировщики
	if err := appointments.Start(ctx); err != nil {
		logger.Error("failed to start appointment scheduler", "error", err)
		os.Exit(1)
	}
	if err := members.Start(ctx); err != nil {
		logger.Error("failed to start member scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("schedulers started", "owner_id", identifier)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if mqConn != nil && !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + strconv.Itoa(cfg.SchedulerPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	consumer.Stop()
	<-consumerDone

	// Отдаём аренды, чтобы другая реплика подхватила домены сразу
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	appointments.Stop(stopCtx)
	members.Stop(stopCtx)

	logger.Info("courier-scheduler stopped")
}
