// Courier Conductor — надёжная доставка dispatch.
//
// Conductor:
//   - Получает команды из RabbitMQ (conductor.inbound)
//   - Отправляет dispatch провайдеру с повторами
//   - Откладывает ранние dispatch через triggers
//   - Периодически забирает истёкшие triggers
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Courier/internal/conductor"
	"github.com/shaiso/Courier/internal/config"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/sender"
	"github.com/shaiso/Courier/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger("courier-conductor")
	logger.Info("starting courier-conductor")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
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

	// RabbitMQ
	var mqConn *mq.Connection
	mqConn, err = mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in trigger-polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		logger.Info("RabbitMQ connected", "topology", mq.TopologyInfo())
	}

	// Создаём conductor
	c := conductor.New(conductor.Config{
		Dispatches: repo.NewDispatchRepo(pool),
		Triggers:   repo.NewTriggerRepo(pool),
		Settings:   repo.NewSettingsRepo(pool),
		Sender: sender.New(sender.Config{
			BaseURL:    cfg.SenderURL,
			Timeout:    cfg.SenderTimeout,
			RatePerSec: cfg.SenderRatePerSec,
		}),
		Conn:         mqConn,
		Gap:          cfg.GapTriggersAt,
		MaxRetries:   &cfg.DispatchMaxRetries,
		RetryDelay:   cfg.DispatchRetryDelay,
		PollInterval: cfg.TriggerPollInterval,
		StallTimeout: cfg.DispatchStallAfter,
		DrainTimeout: cfg.ConductorDrain,
		Logger:       logger,
	})

	if err := c.Start(ctx); err != nil {
		logger.Error("failed to start conductor", "error", err)
		os.Exit(1)
	}

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

	addr := ":" + strconv.Itoa(cfg.ConductorPort)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	c.Stop()
	logger.Info("courier-conductor stopped")
}
