package domain

import "time"

// Template — шаблон работы, к которому привязываются данные task.
//
// Task без существующего шаблона не создаётся.
type Template struct {
	// ID — идентификатор шаблона.
	ID string `json:"id"`

	// Title — название шаблона.
	Title string `json:"title"`

	// Schema — описание ожидаемых данных task.
	Schema map[string]any `json:"schema,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// AccessCode — одноразовый код доступа для первого подключения worker'а.
type AccessCode struct {
	// Code — сам код (выдаётся оператором).
	Code string `json:"code"`

	// Redeemed — погашен ли код.
	Redeemed bool `json:"redeemed"`

	// RedeemedBy — peer, погасивший код.
	RedeemedBy string `json:"redeemed_by,omitempty"`

	// CreatedAt — время выпуска.
	CreatedAt time.Time `json:"created_at"`

	// RedeemedAt — время погашения.
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
}
