package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FileHistory — результат обработки файла внутри workflow run.
//
// Используется для дедупликации: повторная обработка того же файла
// с той же конфигурацией пропускается, пока запись не истекла.
// Инвариант: не более одной записи на пару (workflow_id, cache_key).
type FileHistory struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// WorkflowID — workflow, в рамках которого файл обрабатывался.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// CacheKey — детерминированный отпечаток содержимого файла
	// и конфигурации обработки. Пустой ключ означает "дедупликация невозможна".
	CacheKey string `json:"cache_key"`

	// FileName — имя файла (для диагностики, не участвует в дедупликации).
	FileName string `json:"file_name,omitempty"`

	// Status — итог обработки: SUCCESS, ERROR или PARTIAL.
	Status FileStatus `json:"status"`

	// Result — сериализованный результат обработки.
	Result string `json:"result,omitempty"`

	// Metadata — сериализованные служебные данные.
	Metadata string `json:"metadata,omitempty"`

	// Error — текст ошибки при неуспехе.
	Error string `json:"error,omitempty"`

	// ReprocessingIntervalDays — через сколько дней запись перестаёт
	// действовать для дедупликации. Nil — запись действует бессрочно.
	// Синхронизируется на все записи workflow при изменении настроек endpoint'а.
	ReprocessingIntervalDays *int `json:"reprocessing_interval_days,omitempty"`

	// CreatedAt — время первой обработки файла.
	CreatedAt time.Time `json:"created_at"`

	// ModifiedAt — время последнего обновления записи.
	ModifiedAt time.Time `json:"modified_at"`
}

// ExpiredAt возвращает true, если запись истекла к моменту now
// и файл нужно обработать заново. Истёкшие записи не удаляются —
// они перестают учитываться при принятии решения.
func (h *FileHistory) ExpiredAt(now time.Time) bool {
	if h.ReprocessingIntervalDays == nil || *h.ReprocessingIntervalDays <= 0 {
		return false
	}
	deadline := h.CreatedAt.AddDate(0, 0, *h.ReprocessingIntervalDays)
	return now.After(deadline)
}

// FileCacheKey строит cache key из хэша содержимого файла и конфигурации
// обработки. Одинаковый вход и конфигурация всегда дают одинаковый ключ:
// json.Marshal сортирует ключи map, поэтому сериализация детерминирована.
func FileCacheKey(contentHash string, processingConfig map[string]any) string {
	if contentHash == "" {
		return ""
	}

	h := sha256.New()
	h.Write([]byte(contentHash))

	if len(processingConfig) > 0 {
		cfg, err := json.Marshal(processingConfig)
		if err == nil {
			h.Write(cfg)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
