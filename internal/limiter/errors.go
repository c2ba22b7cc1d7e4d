package limiter

import "errors"

// Ошибки лимитера.
var (
	// ErrInvalidLimit — лимит должен быть положительным.
	ErrInvalidLimit = errors.New("concurrent limit must be positive")

	// ErrMissingOrganization — не указан идентификатор организации.
	ErrMissingOrganization = errors.New("organization id is required")
)
