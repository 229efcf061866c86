// Foreman Manager — центральный узел системы распределения работы.
//
// Manager:
//   - Принимает workers через RabbitMQ (admission control)
//   - Создаёт tasks и распределяет их по очереди
//   - Следит за дедлайнами периодической сверкой
//   - Выписывает подписанные платежи за сданную работу
//   - Отдаёт REST API для оператора
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Foreman/internal/api"
	"github.com/shaiso/Foreman/internal/chain"
	"github.com/shaiso/Foreman/internal/manager"
	"github.com/shaiso/Foreman/internal/payments"
	"github.com/shaiso/Foreman/internal/prover"
	"github.com/shaiso/Foreman/internal/scheduling"
	"github.com/shaiso/Foreman/internal/store"
	"github.com/shaiso/Foreman/internal/taskstore"
	"github.com/shaiso/Foreman/internal/telemetry"
	"github.com/shaiso/Foreman/internal/transport"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting foreman-manager")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Entity store: PostgreSQL, либо in-memory для разработки
	var st store.Store
	if os.Getenv("STORE") == "memory" {
		st = store.NewMem()
		logger.Warn("using in-memory store, state will not survive restart")
	} else {
		pool, err := store.NewPool(ctx)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg, err := store.NewPG(ctx, pool)
		if err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		st = pg
		logger.Info("database connected")
	}

	// Ключ manager'а
	signer, ephemeral, err := payments.LoadSigner()
	if err != nil {
		logger.Error("failed to load manager key", "error", err)
		os.Exit(1)
	}
	if ephemeral {
		logger.Warn("MANAGER_KEY not set, using ephemeral key")
	}

	// Prover: внешний сервис, либо локальный для разработки
	var prv prover.Prover
	if url := os.Getenv("PROVER_URL"); url != "" {
		prv = prover.NewClient(url)
		logger.Info("using prover service", "url", url)
	} else {
		prv = prover.NewLocal([]byte(os.Getenv("PROVER_SECRET")))
		logger.Warn("PROVER_URL not set, using local prover")
	}

	// Ledger
	var ledger chain.Ledger
	if client := chain.ClientFromEnv(); client != nil {
		ledger = client
		logger.Info("ledger RPC connected")
	} else {
		ledger = chain.NewOffline(os.Getenv("LEDGER_CLAIM_PROGRAM"))
		logger.Warn("LEDGER_RPC_URL not set, using offline ledger")
	}

	workers := scheduling.NewWorkerStore(st)
	scheduler := scheduling.New(scheduling.Config{
		Workers:            workers,
		Codes:              scheduling.NewAccessCodeStore(st),
		RequireAccessCodes: os.Getenv("REQUIRE_ACCESS_CODES") == "true",
		Logger:             logger,
	})

	pay := payments.New(payments.Config{
		Workers:        workers,
		Store:          st,
		Signer:         signer,
		Prover:         prv,
		PaymentAccount: os.Getenv("PAYMENT_ACCOUNT"),
		Logger:         logger,
	})

	// Транспорт: RabbitMQ
	mqConn, err := transport.DialMQ(transport.MQURL(), logger)
	if err != nil {
		logger.Error("RabbitMQ not available", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	tr, err := transport.NewAMQP(mqConn, manager.PeerID, logger)
	if err != nil {
		logger.Error("failed to set up transport", "error", err)
		os.Exit(1)
	}
	defer tr.Close()

	mgr := manager.New(manager.Config{
		Tasks:          taskstore.New(taskstore.Config{Store: st}),
		Templates:      taskstore.NewTemplateStore(st),
		Scheduler:      scheduler,
		Payments:       pay,
		Ledger:         ledger,
		Transport:      tr,
		PayoutSchedule: os.Getenv("PAYOUT_SCHEDULE"),
		Logger:         logger,
	})

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start manager", "error", err)
		os.Exit(1)
	}

	// HTTP mux: API + /healthz + /metrics
	mux := http.NewServeMux()
	handler := api.NewHandler(api.Config{Manager: mgr, Logger: logger})
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8080"
	if v := os.Getenv("MANAGER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	mgr.Stop()
	logger.Info("foreman-manager stopped")
}
