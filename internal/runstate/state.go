package runstate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ExecutionStore — guarded-запись статуса execution.
// Реализация: repo.ExecutionRepo (guard дублируется в SQL-предикате,
// поэтому гонка двух процессов разрешается на уровне БД).
type ExecutionStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) (updated bool, err error)
}

// Machine — state machine жизненного цикла execution.
//
//	PENDING → INITIATED → QUEUED → READY → EXECUTING → {COMPLETED, ERROR, STOPPED}
//
// Два правила:
//   - финальный статус поглощает любые дальнейшие записи: no-op, не ошибка
//   - обратный переход (к меньшему рангу) — no-op: поздно пришедшее
//     событие не может откатить прогресс run
type Machine struct {
	executions ExecutionStore
	logger     *slog.Logger
}

// NewMachine создаёт Machine.
func NewMachine(executions ExecutionStore, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{executions: executions, logger: logger}
}

// Allowed сообщает, разрешён ли переход from → to.
//
// Переход разрешён только вперёд по жизненному циклу. Запись того же
// статуса и переход из финального статуса запрещены (и поглощаются
// Advance как no-op).
func Allowed(from, to domain.ExecutionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return to.Rank() > from.Rank()
}

// Advance переводит execution в статус target.
//
// Возвращает advanced=false без ошибки, если переход поглощён:
// run уже в финальном статусе либо target не двигает run вперёд.
// При успехе обновляет e.Status in-memory, чтобы вызывающий видел
// актуальное состояние без перечитывания из БД.
func (m *Machine) Advance(ctx context.Context, e *domain.Execution, target domain.ExecutionStatus) (advanced bool, err error) {
	if _, ok := statusKnown(target); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownStatus, target)
	}

	if !Allowed(e.Status, target) {
		m.logger.Debug("status transition absorbed",
			"execution_id", e.ID,
			"from", e.Status,
			"to", target,
		)
		return false, nil
	}

	updated, err := m.executions.UpdateStatus(ctx, e.ID, target)
	if err != nil {
		return false, fmt.Errorf("advance execution %s to %s: %w", e.ID, target, err)
	}
	if !updated {
		// Другой процесс успел финализировать run — гонка разрешена БД
		m.logger.Debug("status transition lost race",
			"execution_id", e.ID,
			"from", e.Status,
			"to", target,
		)
		return false, nil
	}

	m.logger.Info("execution status advanced",
		"execution_id", e.ID,
		"from", e.Status,
		"to", target,
	)
	e.Status = target
	return true, nil
}

// statusKnown проверяет, что статус принадлежит жизненному циклу.
func statusKnown(s domain.ExecutionStatus) (domain.ExecutionStatus, bool) {
	switch s {
	case domain.ExecutionStatusPending,
		domain.ExecutionStatusInitiated,
		domain.ExecutionStatusQueued,
		domain.ExecutionStatusReady,
		domain.ExecutionStatusExecuting,
		domain.ExecutionStatusCompleted,
		domain.ExecutionStatusError,
		domain.ExecutionStatusStopped:
		return s, true
	default:
		return s, false
	}
}
