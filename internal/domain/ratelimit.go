package domain

import "time"

// DefaultConcurrentLimit — лимит одновременных запросов организации,
// если явный лимит не настроен.
const DefaultConcurrentLimit = 10

// RateLimitConfig — настроенный потолок одновременных запросов организации.
//
// Строка конфигурации — источник истины; счётчик текущего использования
// живёт в быстром кэше, эфемерен и может быть перестроен с нуля
// (перестройка приводит лишь к временному недо-ограничению).
type RateLimitConfig struct {
	// OrganizationID — идентификатор организации.
	OrganizationID string `json:"organization_id"`

	// ConcurrentLimit — максимум одновременных запросов.
	ConcurrentLimit int `json:"concurrent_request_limit"`

	// ModifiedAt — время последнего изменения лимита.
	ModifiedAt time.Time `json:"modified_at"`
}

// RateLimitUsage — текущее использование против лимита.
type RateLimitUsage struct {
	// Count — количество запросов в полёте.
	Count int `json:"count"`

	// Limit — действующий лимит.
	Limit int `json:"limit"`
}
