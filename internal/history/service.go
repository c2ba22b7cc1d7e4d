package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Store — персистентное хранилище истории обработки файлов.
// Реализация: repo.HistoryRepo.
type Store interface {
	Get(ctx context.Context, workflowID uuid.UUID, cacheKey string) (*domain.FileHistory, error)
	Insert(ctx context.Context, h *domain.FileHistory) (created bool, err error)
	Supersede(ctx context.Context, h *domain.FileHistory) (superseded bool, err error)
	DeleteForWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error)
	SyncInterval(ctx context.Context, workflowID uuid.UUID, intervalDays *int) (int64, error)
}

// Service — дедупликация обработки файлов поверх Store.
//
// Решение "обрабатывать ли файл заново" принимается по записи истории:
// действующая запись означает "уже обработан, пропустить".
// Пустой cache key означает "дедупликация невозможна" — такой файл
// обрабатывается всегда и в историю не попадает.
type Service struct {
	store  Store
	logger *slog.Logger

	// now — источник времени; подменяется в тестах.
	now func() time.Time
}

// NewService создаёт Service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Lookup возвращает действующую запись истории для пары
// (workflow_id, cache_key), либо nil — файл нужно обработать.
//
// nil возвращается в трёх случаях: пустой ключ, записи нет,
// запись истекла по интервалу переобработки. Истёкшая запись
// не удаляется — она просто перестаёт учитываться.
func (s *Service) Lookup(ctx context.Context, workflowID uuid.UUID, cacheKey string) (*domain.FileHistory, error) {
	if cacheKey == "" {
		return nil, nil
	}
	if workflowID == uuid.Nil {
		return nil, ErrMissingWorkflow
	}

	h, err := s.store.Get(ctx, workflowID, cacheKey)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup file history: %w", err)
	}

	if h.ExpiredAt(s.now()) {
		s.logger.Debug("file history entry expired",
			"workflow_id", workflowID,
			"cache_key", cacheKey,
			"created_at", h.CreatedAt,
			"interval_days", *h.ReprocessingIntervalDays,
		)
		return nil, nil
	}

	return h, nil
}

// Record фиксирует результат обработки файла.
//
// Конкурентная запись той же пары (workflow_id, cache_key) — не ошибка:
// проигравший гонку вызов получает запись победителя (read-repair).
// Истёкший победитель вытесняется новым результатом — иначе ключ
// остался бы просроченным навсегда и файл обрабатывался бы на каждом run.
// Пустой cache key — no-op: такой файл не дедуплицируется.
func (s *Service) Record(ctx context.Context, h *domain.FileHistory) (*domain.FileHistory, error) {
	if h.CacheKey == "" {
		return nil, nil
	}
	if h.WorkflowID == uuid.Nil {
		return nil, ErrMissingWorkflow
	}

	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := s.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.ModifiedAt = now

	created, err := s.store.Insert(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("record file history: %w", err)
	}
	if created {
		return h, nil
	}

	// Запись уже есть — читаем победителя
	winner, err := s.store.Get(ctx, h.WorkflowID, h.CacheKey)
	if err != nil {
		return nil, fmt.Errorf("read winning file history: %w", err)
	}

	if !winner.ExpiredAt(now) {
		s.logger.Debug("file history entry already recorded",
			"workflow_id", h.WorkflowID,
			"cache_key", h.CacheKey,
		)
		return winner, nil
	}

	// Победитель истёк — вытесняем его новым результатом.
	// Guard в хранилище решает гонку конкурирующих вытеснений:
	// проигравший просто перечитывает уже действующую запись.
	superseded, err := s.store.Supersede(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("supersede expired file history: %w", err)
	}
	if superseded {
		s.logger.Debug("expired file history entry superseded",
			"workflow_id", h.WorkflowID,
			"cache_key", h.CacheKey,
		)
	}

	fresh, err := s.store.Get(ctx, h.WorkflowID, h.CacheKey)
	if err != nil {
		return nil, fmt.Errorf("read superseded file history: %w", err)
	}
	return fresh, nil
}

// ClearForWorkflow удаляет всю историю workflow.
// Следующий run обработает все файлы заново.
func (s *Service) ClearForWorkflow(ctx context.Context, workflowID uuid.UUID) (int64, error) {
	if workflowID == uuid.Nil {
		return 0, ErrMissingWorkflow
	}

	deleted, err := s.store.DeleteForWorkflow(ctx, workflowID)
	if err != nil {
		return 0, fmt.Errorf("clear file history: %w", err)
	}

	s.logger.Info("file history cleared",
		"workflow_id", workflowID,
		"deleted", deleted,
	)
	return deleted, nil
}

// SyncInterval синхронизирует интервал переобработки на все записи workflow.
// Вызывается при изменении настроек endpoint'а. nil — бессрочные записи.
func (s *Service) SyncInterval(ctx context.Context, workflowID uuid.UUID, intervalDays *int) (int64, error) {
	if workflowID == uuid.Nil {
		return 0, ErrMissingWorkflow
	}
	if intervalDays != nil && *intervalDays <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidInterval, *intervalDays)
	}

	updated, err := s.store.SyncInterval(ctx, workflowID, intervalDays)
	if err != nil {
		return 0, fmt.Errorf("sync reprocessing interval: %w", err)
	}

	s.logger.Info("reprocessing interval synced",
		"workflow_id", workflowID,
		"updated", updated,
	)
	return updated, nil
}
