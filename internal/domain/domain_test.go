package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestExecutionContext_Validate(t *testing.T) {
	valid := ExecutionContext{
		RequestID:    "req-1",
		ExecutorName: "webhook",
		Operation:    OperationExecute,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	noRequest := valid
	noRequest.RequestID = ""
	if err := noRequest.Validate(); !errors.Is(err, ErrMissingRequestID) {
		t.Errorf("expected ErrMissingRequestID, got %v", err)
	}

	noExecutor := valid
	noExecutor.ExecutorName = ""
	if err := noExecutor.Validate(); !errors.Is(err, ErrMissingExecutor) {
		t.Errorf("expected ErrMissingExecutor, got %v", err)
	}
}

func TestExecutionResult_Validate(t *testing.T) {
	// Неуспех без ошибки — нарушение инварианта
	bad := ExecutionResult{Success: false}
	if err := bad.Validate(); !errors.Is(err, ErrResultWithoutError) {
		t.Errorf("expected ErrResultWithoutError, got %v", err)
	}

	// Успех с ошибкой — тоже
	confused := ExecutionResult{Success: true, Error: "boom"}
	if err := confused.Validate(); !errors.Is(err, ErrResultUnexpectedError) {
		t.Errorf("expected ErrResultUnexpectedError, got %v", err)
	}

	ok := ExecutionResult{Success: true, Data: map[string]any{"n": 1}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	failed := ExecutionResult{Success: false, Error: "boom"}
	if err := failed.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResultConstructorsProduceValidResults(t *testing.T) {
	if err := SuccessResult(nil).Validate(); err != nil {
		t.Errorf("SuccessResult(nil) must be valid: %v", err)
	}
	if err := FailedResult("").Validate(); err != nil {
		t.Errorf("FailedResult(\"\") must be valid: %v", err)
	}
	if FailedResult("").Error == "" {
		t.Error("empty error message should be substituted")
	}
}

func TestExecutionStatus_Ranks(t *testing.T) {
	order := []ExecutionStatus{
		ExecutionStatusPending,
		ExecutionStatusInitiated,
		ExecutionStatusQueued,
		ExecutionStatusReady,
		ExecutionStatusExecuting,
	}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("%s should rank above %s", order[i], order[i-1])
		}
	}

	// Финальные статусы равнозначны
	terminals := []ExecutionStatus{ExecutionStatusCompleted, ExecutionStatusError, ExecutionStatusStopped}
	for _, s := range terminals {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.Rank() != ExecutionStatusCompleted.Rank() {
			t.Errorf("terminal statuses should share a rank, %s differs", s)
		}
	}

	if ExecutionStatusExecuting.IsTerminal() {
		t.Error("EXECUTING is not terminal")
	}
}

func TestExecution_Owner(t *testing.T) {
	standalone := Execution{ID: uuid.New()}
	if standalone.Owner().Kind != OwnerStandalone {
		t.Error("execution without pipeline is standalone")
	}

	pipelineID := uuid.New()
	owned := Execution{ID: uuid.New(), PipelineID: &pipelineID}
	owner := owned.Owner()
	if owner.Kind != OwnerPipeline || owner.PipelineID != pipelineID {
		t.Error("execution with pipeline should report the pipeline owner")
	}

	nilID := uuid.Nil
	zeroed := Execution{ID: uuid.New(), PipelineID: &nilID}
	if zeroed.Owner().Kind != OwnerStandalone {
		t.Error("nil pipeline id counts as standalone")
	}
}

func TestExecution_Marks(t *testing.T) {
	e := Execution{ID: uuid.New(), Status: ExecutionStatusQueued}

	e.MarkExecuting()
	if e.Status != ExecutionStatusExecuting || e.StartedAt == nil || e.Attempts != 1 {
		t.Error("MarkExecuting should set status, started_at and attempts")
	}

	e.MarkError("files failed")
	if e.Status != ExecutionStatusError || e.FinishedAt == nil || e.ErrorMessage != "files failed" {
		t.Error("MarkError should set status, finished_at and message")
	}
	if !e.IsFinished() {
		t.Error("run in ERROR is finished")
	}
	if e.Duration() < 0 {
		t.Error("duration of a finished run is non-negative")
	}
}

func TestFileHistory_ExpiredAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	days := 30

	fresh := FileHistory{CreatedAt: now.AddDate(0, 0, -10), ReprocessingIntervalDays: &days}
	if fresh.ExpiredAt(now) {
		t.Error("entry within the interval is not expired")
	}

	stale := FileHistory{CreatedAt: now.AddDate(0, 0, -40), ReprocessingIntervalDays: &days}
	if !stale.ExpiredAt(now) {
		t.Error("entry past the interval is expired")
	}

	forever := FileHistory{CreatedAt: now.AddDate(0, 0, -400)}
	if forever.ExpiredAt(now) {
		t.Error("entry without interval never expires")
	}

	zero := 0
	zeroInterval := FileHistory{CreatedAt: now.AddDate(0, 0, -400), ReprocessingIntervalDays: &zero}
	if zeroInterval.ExpiredAt(now) {
		t.Error("non-positive interval never expires")
	}
}
