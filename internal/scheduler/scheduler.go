package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// defaultBatchSize — количество pipelines за один тик.
const defaultBatchSize = 100

// PipelineSource — чтение и обновление расписания pipelines.
// Реализация: repo.PipelineRepo.
type PipelineSource interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Pipeline, error)
	UpdateNextDue(ctx context.Context, id uuid.UUID, nextDue time.Time) error
}

// ExecutionCreator — создание записей executions.
// Реализация: repo.ExecutionRepo.
type ExecutionCreator interface {
	Create(ctx context.Context, e *domain.Execution) error
}

// RunNotifier — публикация запросов на выполнение run.
// Реализация: mq.Dispatcher.
type RunNotifier interface {
	PublishRunRequest(ctx context.Context, executionID uuid.UUID) error
}

// Scheduler создаёт runs для pipelines с наступившим расписанием.
type Scheduler struct {
	pipelines  PipelineSource
	executions ExecutionCreator
	notifier   RunNotifier
	logger     *slog.Logger
	batchSize  int
	now        func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Pipelines  PipelineSource
	Executions ExecutionCreator
	Notifier   RunNotifier // опционально: без него runs подхватит polling
	Logger     *slog.Logger
	BatchSize  int // количество pipelines за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		pipelines:  cfg.Pipelines,
		executions: cfg.Executions,
		notifier:   cfg.Notifier,
		logger:     logger,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит включённые pipelines с next_due_at <= now
// 2. Сдвигает next_due_at по cron-выражению
// 3. Создаёт execution (PENDING, SCHEDULED)
// 4. Публикует запрос на выполнение
//
// Ошибки одного pipeline не блокируют обработку остальных.
// Tick вызывается только лидером (advisory lock берётся в main).
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.pipelines.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due pipelines: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due pipelines", "count", len(due))

	var created int
	for i := range due {
		p := &due[i]

		if err := s.processPipeline(ctx, p, now); err != nil {
			s.logger.Error("failed to process pipeline",
				"pipeline_id", p.ID,
				"pipeline_name", p.Name,
				"error", err,
			)
			continue
		}
		created++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"runs_created", created,
	)

	return nil
}

// processPipeline создаёт run для одного pipeline.
//
// next_due_at сдвигается до создания run: повторный тик по тому же
// pipeline не создаст дубликат. Если создание run после сдвига
// не удалось, запуск пропускается до следующего срока.
func (s *Scheduler) processPipeline(ctx context.Context, p *domain.Pipeline, now time.Time) error {
	nextDue, err := NextDue(p.CronExpr, now)
	if err != nil {
		// Некорректное выражение: next_due_at не трогаем,
		// pipeline выпадет из планирования после исправления
		return fmt.Errorf("calculate next due: %w", err)
	}

	if err := s.pipelines.UpdateNextDue(ctx, p.ID, nextDue); err != nil {
		return fmt.Errorf("update next due: %w", err)
	}

	pipelineID := p.ID
	e := &domain.Execution{
		ID:             uuid.New(),
		PipelineID:     &pipelineID,
		WorkflowID:     p.WorkflowID,
		OrganizationID: p.OrganizationID,
		Status:         domain.ExecutionStatusPending,
		Mode:           domain.ExecutionModeQueue,
		Method:         domain.ExecutionMethodScheduled,
		CreatedAt:      now,
		ModifiedAt:     now,
	}

	if err := s.executions.Create(ctx, e); err != nil {
		return fmt.Errorf("create execution: %w", err)
	}

	s.logger.Info("created run from schedule",
		"execution_id", e.ID,
		"pipeline_id", p.ID,
		"pipeline_name", p.Name,
		"workflow_id", p.WorkflowID,
		"next_due_at", nextDue,
	)

	if s.notifier != nil {
		if err := s.notifier.PublishRunRequest(ctx, e.ID); err != nil {
			// Запись создана — orchestrator подхватит run через polling
			s.logger.Warn("failed to publish run request",
				"execution_id", e.ID,
				"error", err,
			)
		}
	}

	return nil
}
