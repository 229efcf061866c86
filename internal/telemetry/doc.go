// Package telemetry — логирование и метрики Foreman.
//
// SetupLogger настраивает slog по LOG_LEVEL/LOG_FORMAT; metrics.go
// объявляет Prometheus-метрики жизненного цикла tasks и платежей,
// которые manager экспортирует на /metrics.
package telemetry
