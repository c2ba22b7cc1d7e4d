package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
)

// --- WebhookExecutor Tests ---

func TestWebhookExecutor_POST_Success(t *testing.T) {
	var receivedBody map[string]any
	var receivedContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&receivedBody)
		w.Header().Set("X-Custom", "test-value")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"result": "ok"})
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		Payload: map[string]any{
			"url":  server.URL,
			"body": map[string]any{"name": "invoice.pdf"},
		},
	}

	result, err := executor.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected failure: %s", result.Error)
	}

	// Проверяем что body получен сервером
	if receivedBody["name"] != "invoice.pdf" {
		t.Errorf("server should receive body, got %v", receivedBody)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}

	// Проверяем status_code
	if result.Data["status_code"] != http.StatusOK {
		t.Errorf("expected status 200, got %v", result.Data["status_code"])
	}

	// Проверяем headers
	headers, ok := result.Data["headers"].(map[string]string)
	if !ok {
		t.Fatal("headers should be map[string]string")
	}
	if headers["X-Custom"] != "test-value" {
		t.Errorf("expected X-Custom header, got %v", headers["X-Custom"])
	}

	// Проверяем body (должен быть распарсен как JSON)
	body, ok := result.Data["body"].(map[string]any)
	if !ok {
		t.Fatalf("body should be map, got %T", result.Data["body"])
	}
	if body["result"] != "ok" {
		t.Errorf("expected result=ok, got %v", body["result"])
	}
}

func TestWebhookExecutor_AuthToken(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		AuthToken:    "token123",
		Payload:      map[string]any{"url": server.URL},
	}

	if _, err := executor.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedAuth != "Bearer token123" {
		t.Errorf("expected Bearer token123, got %q", receivedAuth)
	}
}

func TestWebhookExecutor_ExplicitAuthHeaderWins(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		AuthToken:    "token123",
		Payload: map[string]any{
			"url": server.URL,
			"headers": map[string]any{
				"Authorization": "Basic abc",
			},
		},
	}

	if _, err := executor.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedAuth != "Basic abc" {
		t.Errorf("explicit header should win, got %q", receivedAuth)
	}
}

func TestWebhookExecutor_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal"}`))
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		Payload:      map[string]any{"url": server.URL},
	}

	result, err := executor.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("HTTP errors should not be infrastructure errors: %v", err)
	}

	// Результат неуспешный, но валидный
	if result.Success {
		t.Error("expected failure for 500")
	}
	if result.Error == "" {
		t.Error("expected error message for 500")
	}
	if err := result.Validate(); err != nil {
		t.Errorf("result should be valid: %v", err)
	}

	// Data всё равно заполнена
	if result.Data["status_code"] != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %v", result.Data["status_code"])
	}
}

func TestWebhookExecutor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		Payload: map[string]any{
			"url":         server.URL,
			"timeout_sec": 0.1, // 100ms — сервер не успеет ответить
		},
	}

	_, err := executor.Execute(context.Background(), ec)
	if err == nil {
		t.Error("expected error for timeout")
	}
}

func TestWebhookExecutor_MissingURL(t *testing.T) {
	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		Payload:      map[string]any{"method": "POST"},
	}

	_, err := executor.Execute(context.Background(), ec)
	if !errors.Is(err, ErrWebhookRequest) {
		t.Errorf("expected ErrWebhookRequest for missing URL, got %v", err)
	}
}

func TestWebhookExecutor_DefaultMethod(t *testing.T) {
	var receivedMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor := &WebhookExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook",
		Payload: map[string]any{
			"url": server.URL,
			// method не указан — должен быть POST
		},
	}

	if _, err := executor.Execute(context.Background(), ec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receivedMethod != http.MethodPost {
		t.Errorf("expected POST by default, got %s", receivedMethod)
	}
}

// --- TransformExecutor Tests ---

func TestTransformExecutor_Mapping(t *testing.T) {
	executor := &TransformExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "transform",
		Payload: map[string]any{
			"file_name": "report.csv",
			"pages":     12,
			"mapping": map[string]any{
				"document": "file_name",
				"total":    "pages",
				"missing":  "no_such_key",
			},
		},
	}

	result, err := executor.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Data["document"] != "report.csv" {
		t.Errorf("expected document=report.csv, got %v", result.Data["document"])
	}
	if result.Data["total"] != 12 {
		t.Errorf("expected total=12, got %v", result.Data["total"])
	}
	if _, ok := result.Data["missing"]; ok {
		t.Error("missing source key should be skipped")
	}
	if _, ok := result.Data["file_name"]; ok {
		t.Error("unmapped keys should not pass through when mapping is set")
	}
}

func TestTransformExecutor_PassThrough(t *testing.T) {
	executor := &TransformExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "transform",
		Payload: map[string]any{
			"key1": "value1",
			"key2": 42,
		},
	}

	result, err := executor.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data["key1"] != "value1" {
		t.Errorf("expected key1=value1, got %v", result.Data["key1"])
	}
	if result.Data["key2"] != 42 {
		t.Errorf("expected key2=42, got %v", result.Data["key2"])
	}
}

func TestTransformExecutor_NilPayload(t *testing.T) {
	executor := &TransformExecutor{}
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "transform",
	}

	result, err := executor.Execute(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data == nil {
		t.Error("data should be empty map, not nil")
	}
	if len(result.Data) != 0 {
		t.Errorf("expected empty data, got %d items", len(result.Data))
	}
}

// --- Registry Tests ---

func TestNewRegistry_DefaultExecutors(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"webhook", "transform", "noop"} {
		executor, err := r.Get(name)
		if err != nil {
			t.Errorf("expected executor for %s, got error: %v", name, err)
		}
		if executor == nil {
			t.Errorf("executor for %s should not be nil", name)
		}
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("unknown")
	if !errors.Is(err, ErrUnknownExecutor) {
		t.Errorf("expected ErrUnknownExecutor, got %v", err)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()

	err := r.Register("webhook", func() Executor { return &NoopExecutor{} })
	if !errors.Is(err, ErrDuplicateExecutor) {
		t.Errorf("expected ErrDuplicateExecutor, got %v", err)
	}

	// Исходный executor не перезаписан
	executor, err := r.Get("webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := executor.(*WebhookExecutor); !ok {
		t.Errorf("original webhook executor should survive, got %T", executor)
	}
}

func TestRegistry_FreshInstancePerGet(t *testing.T) {
	r := NewRegistry()

	first, err := r.Get("noop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Get("noop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Error("each Get should return a fresh instance")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()

	names := r.List()
	expected := []string{"noop", "transform", "webhook"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("expected sorted names %v, got %v", expected, names)
			break
		}
	}
}

// --- Handler Tests ---

type fakeResultStore struct {
	mu      sync.Mutex
	results map[string]*domain.ExecutionResult
	err     error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[string]*domain.ExecutionResult)}
}

func (s *fakeResultStore) Save(_ context.Context, requestID string, result *domain.ExecutionResult) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[requestID]; ok {
		return nil
	}
	s.results[requestID] = result
	return nil
}

type fakeCallbackPublisher struct {
	mu       sync.Mutex
	payloads []mq.CallbackPayload
	err      error
}

func (p *fakeCallbackPublisher) PublishCallback(_ context.Context, payload mq.CallbackPayload) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestProcessContext_UnknownExecutorFailsWithoutRetry(t *testing.T) {
	w := New(Config{Results: newFakeResultStore()})

	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "no-such-executor",
	}

	result, err := w.processContext(context.Background(), ec)
	if err != nil {
		t.Fatalf("unknown executor must not be an infrastructure error: %v", err)
	}
	if result.Success {
		t.Error("expected failed result for unknown executor")
	}
	if result.Error == "" {
		t.Error("failed result must carry an error")
	}
}

func TestFinishWork_PublishesCallback(t *testing.T) {
	store := newFakeResultStore()
	publisher := &fakeCallbackPublisher{}
	w := New(Config{Results: store, Dispatcher: publisher})

	executionID := uuid.New()
	workflowID := uuid.New()
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "noop",
		Payload: map[string]any{
			"execution_id": executionID.String(),
			"workflow_id":  workflowID.String(),
			"file_name":    "invoice.pdf",
			"cache_key":    "abc123",
		},
	}

	if err := w.finishWork(context.Background(), ec, domain.SuccessResult(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := store.results[ec.RequestID]; !ok {
		t.Error("result should be saved before callback")
	}

	if len(publisher.payloads) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(publisher.payloads))
	}
	cb := publisher.payloads[0]
	if cb.ExecutionID != executionID {
		t.Errorf("expected execution id %s, got %s", executionID, cb.ExecutionID)
	}
	if cb.WorkflowID != workflowID {
		t.Errorf("expected workflow id %s, got %s", workflowID, cb.WorkflowID)
	}
	if cb.FileName != "invoice.pdf" {
		t.Errorf("expected file name, got %q", cb.FileName)
	}
	if cb.Status != string(domain.FileStatusSuccess) {
		t.Errorf("expected SUCCESS status, got %s", cb.Status)
	}
}

func TestFinishWork_StandaloneSkipsCallback(t *testing.T) {
	store := newFakeResultStore()
	publisher := &fakeCallbackPublisher{}
	w := New(Config{Results: store, Dispatcher: publisher})

	// Без execution_id в payload — standalone-задача
	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "noop",
		Payload:      map[string]any{"key": "value"},
	}

	if err := w.finishWork(context.Background(), ec, domain.SuccessResult(nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.payloads) != 0 {
		t.Errorf("standalone work should not publish callback, got %d", len(publisher.payloads))
	}
}

func TestFinishWork_CallbackErrorDoesNotFail(t *testing.T) {
	store := newFakeResultStore()
	publisher := &fakeCallbackPublisher{err: errors.New("broker down")}
	w := New(Config{Results: store, Dispatcher: publisher})

	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "noop",
		Payload:      map[string]any{"execution_id": uuid.New().String()},
	}

	// Результат записан — ошибка публикации callback не должна вызвать redelivery
	if err := w.finishWork(context.Background(), ec, domain.FailedResult("boom")); err != nil {
		t.Fatalf("callback failure must not fail the handler: %v", err)
	}
	if _, ok := store.results[ec.RequestID]; !ok {
		t.Error("result should still be saved")
	}
}

func TestFinishWork_SaveErrorPropagates(t *testing.T) {
	store := newFakeResultStore()
	store.err = errors.New("db down")
	w := New(Config{Results: store})

	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "noop",
	}

	if err := w.finishWork(context.Background(), ec, domain.SuccessResult(nil)); err == nil {
		t.Error("save failure must propagate for redelivery")
	}
}

// --- Worker Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.prefetch != defaultPrefetch {
		t.Errorf("expected default prefetch %d, got %d", defaultPrefetch, w.prefetch)
	}
	if w.registry == nil {
		t.Error("registry should be initialized")
	}
}

func TestWorker_IsStopped(t *testing.T) {
	w := New(Config{})

	if w.IsStopped() {
		t.Error("should not be stopped initially")
	}

	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	if !w.IsStopped() {
		t.Error("should be stopped")
	}
}

func TestNew_CustomRegistry(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("custom", func() Executor { return &NoopExecutor{} })

	w := New(Config{Registry: r})

	executor, err := w.registry.Get("custom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if executor == nil {
		t.Error("custom executor should be available")
	}
}

func TestProcessContext_FailedResultCarriesErrorKind(t *testing.T) {
	w := New(Config{Results: newFakeResultStore()})

	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "webhook", // без url — валидный executor, неуспешный результат
	}

	result, err := w.processContext(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failed result")
	}
	if got := result.Metadata[domain.MetadataErrorKind]; got != string(domain.ErrorKindExecutorFailed) {
		t.Errorf("expected EXECUTOR_FAILED kind, got %v", got)
	}
}

func TestProcessContext_SuccessHasNoErrorKind(t *testing.T) {
	w := New(Config{Results: newFakeResultStore()})

	ec := &domain.ExecutionContext{
		RequestID:    uuid.New().String(),
		ExecutorName: "noop",
	}

	result, err := w.processContext(context.Background(), ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if _, ok := result.Metadata[domain.MetadataErrorKind]; ok {
		t.Error("successful result must not carry an error kind")
	}
}
