package store

// Префиксы логической раскладки ключей.
const (
	PrefixTasksActive    = "tasks/active/"
	PrefixTasksCompleted = "tasks/completed/"
	PrefixTasksBacklog   = "tasks/backlog/"
	PrefixWorkers        = "worker/"
	PrefixPayments       = "payment/"
	PrefixTemplates      = "templates/"
	PrefixAccessCodes    = "accesscodes/"
)

// ActiveTaskKey возвращает ключ активного task.
func ActiveTaskKey(id string) string { return PrefixTasksActive + id }

// CompletedTaskKey возвращает ключ завершённого task.
func CompletedTaskKey(id string) string { return PrefixTasksCompleted + id }

// BacklogTaskKey возвращает ключ task в backlog.
func BacklogTaskKey(id string) string { return PrefixTasksBacklog + id }

// WorkerKey возвращает ключ записи worker'а.
func WorkerKey(peerID string) string { return PrefixWorkers + peerID }

// PaymentKey возвращает ключ платежа.
func PaymentKey(paymentID string) string { return PrefixPayments + paymentID }

// TemplateKey возвращает ключ шаблона.
func TemplateKey(templateID string) string { return PrefixTemplates + templateID }

// AccessCodeKey возвращает ключ кода доступа.
func AccessCodeKey(code string) string { return PrefixAccessCodes + code }
