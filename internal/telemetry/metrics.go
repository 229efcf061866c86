package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики manager'а.
var (
	// TasksCreated — всего создано tasks.
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foreman_tasks_created_total",
		Help: "Total number of tasks created.",
	})

	// TasksAssigned — всего назначений tasks на workers.
	TasksAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foreman_tasks_assigned_total",
		Help: "Total number of task assignments.",
	})

	// TasksCompleted — завершённые tasks по исходу (paid / rejected).
	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foreman_tasks_completed_total",
		Help: "Total number of tasks by final outcome.",
	}, []string{"outcome"})

	// ActiveTasks — количество активных tasks.
	ActiveTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foreman_tasks_active",
		Help: "Number of active (not yet paid out) tasks.",
	})

	// QueuedWorkers — количество workers в очереди планировщика.
	QueuedWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "foreman_workers_queued",
		Help: "Number of workers in the scheduling queue.",
	})

	// PaymentsIssued — всего выпущено платежей.
	PaymentsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foreman_payments_issued_total",
		Help: "Total number of signed payments issued.",
	})

	// PaymentAmount — суммы выпущенных платежей.
	PaymentAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foreman_payment_amount",
		Help:    "Amounts of issued payments.",
		Buckets: prometheus.ExponentialBuckets(1, 10, 8),
	})

	// ProofDuration — длительность генерации proof'ов.
	ProofDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foreman_proof_duration_seconds",
		Help:    "Duration of payment proof generation.",
		Buckets: prometheus.DefBuckets,
	})

	// ReconcileDuration — длительность одного цикла reconcile.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "foreman_reconcile_duration_seconds",
		Help:    "Duration of a single reconcile sweep.",
		Buckets: prometheus.DefBuckets,
	})
)
