package domain

import "time"

// WorkerRecord — персистентное состояние worker'а на стороне manager'а.
//
// Создаётся при первом успешном подключении и никогда не удаляется:
// бан — это флаг, а не удаление записи.
type WorkerRecord struct {
	// PeerID — идентификатор peer'а в транспорте.
	PeerID string `json:"peer_id"`

	// Recipient — адрес получателя платежей.
	Recipient string `json:"recipient"`

	// Nonce — монотонный счётчик платежей. Стартует со значения,
	// присланного при первом подключении, и увеличивается ровно
	// на единицу на каждый выписанный платёж.
	Nonce uint64 `json:"nonce"`

	// Счётчики задач.
	TotalTasks     int `json:"total_tasks"`
	TasksAccepted  int `json:"tasks_accepted"`
	TasksRejected  int `json:"tasks_rejected"`
	TasksCompleted int `json:"tasks_completed"`

	// TotalEarned — суммарно заработано (в минимальных единицах токена).
	TotalEarned uint64 `json:"total_earned"`

	// LastPayout — момент последней выплаты (основа time-based payout).
	LastPayout time.Time `json:"last_payout"`

	// LastActivity — момент последней активности (connect/disconnect/событие).
	LastActivity time.Time `json:"last_activity"`

	// AccessCodeRedeemed — погасил ли worker одноразовый access code.
	AccessCodeRedeemed bool `json:"access_code_redeemed"`

	// Banned — забаненный worker никогда не выбирается для назначения.
	Banned bool `json:"banned"`

	// IsAdmin — администраторы подключаются и в maintenance mode.
	IsAdmin bool `json:"is_admin"`
}

// Outstanding возвращает количество незакрытых задач.
func (w *WorkerRecord) Outstanding() int {
	return w.TotalTasks - (w.TasksCompleted + w.TasksRejected)
}

// IsBusy проверяет, достиг ли worker лимита незакрытых задач.
func (w *WorkerRecord) IsBusy(limit int) bool {
	return w.Outstanding() >= limit
}
