package runstate

import "errors"

// Ошибки state machine.
var (
	// ErrUnknownStatus — статус отсутствует в жизненном цикле.
	ErrUnknownStatus = errors.New("unknown execution status")

	// ErrNotTerminal — финализация возможна только из финального статуса.
	ErrNotTerminal = errors.New("execution is not in a terminal status")
)
