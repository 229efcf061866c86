package scheduling

import "errors"

// Ошибки admission и очереди worker'ов.
var (
	// ErrWorkerNotFound — запись worker'а отсутствует.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrAccessCodeRequired — требуется access code, но он не передан.
	ErrAccessCodeRequired = errors.New("access code required")

	// ErrAccessCodeInvalid — access code не существует или уже погашен.
	ErrAccessCodeInvalid = errors.New("access code invalid or already redeemed")

	// ErrWorkerBanned — worker забанен.
	ErrWorkerBanned = errors.New("worker is banned")

	// ErrMaintenance — система в maintenance mode (не для администраторов).
	ErrMaintenance = errors.New("maintenance mode enabled")

	// ErrAlreadyQueued — peer уже стоит в очереди (двойной connect).
	ErrAlreadyQueued = errors.New("worker already connected")
)
