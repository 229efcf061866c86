// Foreman Worker — исполнитель задач.
//
// Worker подключается к manager'у через RabbitMQ, принимает tasks,
// исполняет их зарегистрированными executor'ами и копит подписанные
// платежи. Периодически запрашивает time-based выплату за онлайн.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Foreman/internal/telemetry"
	"github.com/shaiso/Foreman/internal/transport"
	"github.com/shaiso/Foreman/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	peerID := os.Getenv("WORKER_PEER_ID")
	if peerID == "" {
		peerID = "worker-" + uuid.NewString()[:8]
	}

	recipient := os.Getenv("WORKER_RECIPIENT")
	if recipient == "" {
		logger.Error("WORKER_RECIPIENT is required")
		os.Exit(1)
	}

	logger = logger.With("peer_id", peerID)
	logger.Info("starting foreman-worker", "recipient", recipient)

	mqConn, err := transport.DialMQ(transport.MQURL(), logger)
	if err != nil {
		logger.Error("RabbitMQ not available", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	tr, err := transport.NewAMQP(mqConn, peerID, logger)
	if err != nil {
		logger.Error("failed to set up transport", "error", err)
		os.Exit(1)
	}
	defer tr.Close()

	w := worker.New(worker.Config{
		PeerID:     peerID,
		Recipient:  recipient,
		AccessCode: os.Getenv("WORKER_ACCESS_CODE"),
		Transport:  tr,
		Logger:     logger,
	})

	if err := w.Connect(ctx); err != nil {
		logger.Error("admission refused", "error", err)
		os.Exit(1)
	}
	logger.Info("admitted", "manager_key", w.ManagerKey())

	// Запрашиваем выплату за онлайн раз в интервал
	payoutInterval := 5 * time.Minute
	if v := os.Getenv("WORKER_PAYOUT_INTERVAL_SEC"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			payoutInterval = d
		}
	}

	go func() {
		ticker := time.NewTicker(payoutInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p, err := w.RequestPayout(ctx)
				if err != nil {
					logger.Warn("payout request failed", "error", err)
					continue
				}
				if p != nil {
					logger.Info("payout received", "amount", p.Amount, "nonce", p.Nonce)
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("foreman-worker stopped", "earned_payments", len(w.Payments()))
}
