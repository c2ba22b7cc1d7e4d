package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// fakeStore — in-memory Store с семантикой ON CONFLICT DO NOTHING.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*domain.FileHistory
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*domain.FileHistory)}
}

func storeKey(workflowID uuid.UUID, cacheKey string) string {
	return workflowID.String() + "/" + cacheKey
}

func (s *fakeStore) Get(_ context.Context, workflowID uuid.UUID, cacheKey string) (*domain.FileHistory, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.entries[storeKey(workflowID, cacheKey)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

func (s *fakeStore) Insert(_ context.Context, h *domain.FileHistory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(h.WorkflowID, h.CacheKey)
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	copied := *h
	s.entries[key] = &copied
	return true, nil
}

// Supersede повторяет guard UPDATE-запроса: переписывается только
// истёкшая запись, интервал переобработки сохраняется.
func (s *fakeStore) Supersede(_ context.Context, h *domain.FileHistory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[storeKey(h.WorkflowID, h.CacheKey)]
	if !ok || !existing.ExpiredAt(h.CreatedAt) {
		return false, nil
	}
	existing.FileName = h.FileName
	existing.Status = h.Status
	existing.Result = h.Result
	existing.Metadata = h.Metadata
	existing.Error = h.Error
	existing.CreatedAt = h.CreatedAt
	existing.ModifiedAt = h.ModifiedAt
	return true, nil
}

func (s *fakeStore) DeleteForWorkflow(_ context.Context, workflowID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for key, h := range s.entries {
		if h.WorkflowID == workflowID {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) SyncInterval(_ context.Context, workflowID uuid.UUID, intervalDays *int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for _, h := range s.entries {
		if h.WorkflowID == workflowID {
			h.ReprocessingIntervalDays = intervalDays
			updated++
		}
	}
	return updated, nil
}

func newTestService(store Store) *Service {
	return NewService(store, nil)
}

// --- Lookup Tests ---

func TestLookup_EmptyCacheKey(t *testing.T) {
	svc := newTestService(newFakeStore())

	h, err := svc.Lookup(context.Background(), uuid.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != nil {
		t.Error("empty cache key must mean no dedup entry")
	}
}

func TestLookup_NotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	h, err := svc.Lookup(context.Background(), uuid.New(), "abc123")
	if err != nil {
		t.Fatalf("not found must not be an error: %v", err)
	}
	if h != nil {
		t.Error("expected nil for missing entry")
	}
}

func TestLookup_ActiveEntry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()
	original := &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		FileName:   "invoice.pdf",
		Status:     domain.FileStatusSuccess,
	}
	if _, err := svc.Record(context.Background(), original); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := svc.Lookup(context.Background(), workflowID, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatal("expected active entry")
	}
	if h.FileName != "invoice.pdf" {
		t.Errorf("expected invoice.pdf, got %s", h.FileName)
	}
}

func TestLookup_ExpiredEntry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()
	interval := 30

	// Запись создана 40 дней назад с интервалом 30 дней — истекла
	created := time.Now().AddDate(0, 0, -40)
	svc.now = func() time.Time { return created }
	if _, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID:               workflowID,
		CacheKey:                 "abc123",
		Status:                   domain.FileStatusSuccess,
		ReprocessingIntervalDays: &interval,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = time.Now
	h, err := svc.Lookup(context.Background(), workflowID, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != nil {
		t.Error("expired entry must not count for dedup")
	}

	// Но запись не удалена
	if _, err := store.Get(context.Background(), workflowID, "abc123"); err != nil {
		t.Error("expired entry should be retained in store")
	}
}

func TestLookup_EntryWithinInterval(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()
	interval := 30

	// Запись создана 10 дней назад с интервалом 30 дней — действует
	created := time.Now().AddDate(0, 0, -10)
	svc.now = func() time.Time { return created }
	if _, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID:               workflowID,
		CacheKey:                 "abc123",
		Status:                   domain.FileStatusSuccess,
		ReprocessingIntervalDays: &interval,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = time.Now
	h, err := svc.Lookup(context.Background(), workflowID, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Error("entry within interval must count for dedup")
	}
}

func TestLookup_NilIntervalNeverExpires(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()

	// Запись создана очень давно, интервал не задан — действует бессрочно
	svc.now = func() time.Time { return time.Now().AddDate(-5, 0, 0) }
	if _, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		Status:     domain.FileStatusSuccess,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = time.Now
	h, err := svc.Lookup(context.Background(), workflowID, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Error("entry without interval must never expire")
	}
}

func TestLookup_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("db down")
	svc := newTestService(store)

	_, err := svc.Lookup(context.Background(), uuid.New(), "abc123")
	if err == nil {
		t.Error("store error must propagate")
	}
}

// --- Record Tests ---

func TestRecord_AssignsIDAndTimestamps(t *testing.T) {
	svc := newTestService(newFakeStore())

	h, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: uuid.New(),
		CacheKey:   "abc123",
		Status:     domain.FileStatusSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID == uuid.Nil {
		t.Error("id should be assigned")
	}
	if h.CreatedAt.IsZero() || h.ModifiedAt.IsZero() {
		t.Error("timestamps should be assigned")
	}
}

func TestRecord_EmptyCacheKeyIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	h, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: uuid.New(),
		Status:     domain.FileStatusSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != nil {
		t.Error("empty cache key must not be recorded")
	}
	if len(store.entries) != 0 {
		t.Error("store should stay empty")
	}
}

func TestRecord_DuplicateReturnsWinner(t *testing.T) {
	svc := newTestService(newFakeStore())
	workflowID := uuid.New()

	first, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		FileName:   "first.pdf",
		Status:     domain.FileStatusSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		FileName:   "second.pdf",
		Status:     domain.FileStatusError,
		Error:      "boom",
	})
	if err != nil {
		t.Fatalf("duplicate record must not be an error: %v", err)
	}

	// Проигравший получает запись победителя
	if second.ID != first.ID {
		t.Errorf("expected winner id %s, got %s", first.ID, second.ID)
	}
	if second.FileName != "first.pdf" {
		t.Errorf("expected winner entry, got %s", second.FileName)
	}
}

func TestRecord_SupersedesExpiredEntry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()
	interval := 30

	// Запись с ошибкой создана 40 дней назад с интервалом 30 дней
	svc.now = func() time.Time { return time.Now().AddDate(0, 0, -40) }
	if _, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID:               workflowID,
		CacheKey:                 "abc123",
		Status:                   domain.FileStatusError,
		Error:                    "boom",
		ReprocessingIntervalDays: &interval,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Запись истекла — файл подлежит переобработке
	svc.now = time.Now
	if h, err := svc.Lookup(context.Background(), workflowID, "abc123"); err != nil || h != nil {
		t.Fatalf("expired entry must not count for dedup: h=%v err=%v", h, err)
	}

	// Переобработка вытесняет истёкшую запись свежим результатом
	recorded, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		Status:     domain.FileStatusSuccess,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorded.Status != domain.FileStatusSuccess {
		t.Errorf("expected fresh SUCCESS entry, got %s", recorded.Status)
	}
	if recorded.Error != "" {
		t.Errorf("stale error must be cleared, got %q", recorded.Error)
	}
	// Интервал переобработки переживает вытеснение
	if recorded.ReprocessingIntervalDays == nil || *recorded.ReprocessingIntervalDays != interval {
		t.Error("reprocessing interval must survive supersede")
	}

	// Запись снова действует: файл не переобрабатывается на каждом run
	h, err := svc.Lookup(context.Background(), workflowID, "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatal("superseded entry must count as fresh for dedup")
	}
	if h.Status != domain.FileStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", h.Status)
	}
}

func TestRecord_ActiveWinnerNotSuperseded(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	workflowID := uuid.New()
	interval := 30

	// Действующая запись (10 дней при интервале 30)
	svc.now = func() time.Time { return time.Now().AddDate(0, 0, -10) }
	if _, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID:               workflowID,
		CacheKey:                 "abc123",
		FileName:                 "first.pdf",
		Status:                   domain.FileStatusSuccess,
		ReprocessingIntervalDays: &interval,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc.now = time.Now
	second, err := svc.Record(context.Background(), &domain.FileHistory{
		WorkflowID: workflowID,
		CacheKey:   "abc123",
		FileName:   "second.pdf",
		Status:     domain.FileStatusError,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.FileName != "first.pdf" {
		t.Errorf("active winner must be kept, got %s", second.FileName)
	}
}

func TestRecord_ConcurrentDuplicates(t *testing.T) {
	svc := newTestService(newFakeStore())
	workflowID := uuid.New()

	const goroutines = 16
	results := make([]*domain.FileHistory, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Record(context.Background(), &domain.FileHistory{
				WorkflowID: workflowID,
				CacheKey:   "abc123",
				Status:     domain.FileStatusSuccess,
			})
		}(i)
	}
	wg.Wait()

	// Ни один вызов не падает, все видят одну и ту же запись
	winnerID := uuid.Nil
	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: unexpected error: %v", i, errs[i])
		}
		if results[i] == nil {
			t.Fatalf("goroutine %d: nil result", i)
		}
		if winnerID == uuid.Nil {
			winnerID = results[i].ID
		}
		if results[i].ID != winnerID {
			t.Errorf("goroutine %d: expected winner %s, got %s", i, winnerID, results[i].ID)
		}
	}
}

// --- ClearForWorkflow / SyncInterval Tests ---

func TestClearForWorkflow(t *testing.T) {
	svc := newTestService(newFakeStore())
	workflowID := uuid.New()
	otherID := uuid.New()

	for _, wf := range []uuid.UUID{workflowID, workflowID, otherID} {
		if _, err := svc.Record(context.Background(), &domain.FileHistory{
			WorkflowID: wf,
			CacheKey:   uuid.New().String(),
			Status:     domain.FileStatusSuccess,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deleted, err := svc.ClearForWorkflow(context.Background(), workflowID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
}

func TestSyncInterval_InvalidInterval(t *testing.T) {
	svc := newTestService(newFakeStore())

	zero := 0
	if _, err := svc.SyncInterval(context.Background(), uuid.New(), &zero); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval for 0, got %v", err)
	}

	negative := -5
	if _, err := svc.SyncInterval(context.Background(), uuid.New(), &negative); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval for -5, got %v", err)
	}
}

func TestSyncInterval_UpdatesAllEntries(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	workflowID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := svc.Record(context.Background(), &domain.FileHistory{
			WorkflowID: workflowID,
			CacheKey:   uuid.New().String(),
			Status:     domain.FileStatusSuccess,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	interval := 14
	updated, err := svc.SyncInterval(context.Background(), workflowID, &interval)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 3 {
		t.Errorf("expected 3 updated, got %d", updated)
	}

	for _, h := range store.entries {
		if h.ReprocessingIntervalDays == nil || *h.ReprocessingIntervalDays != 14 {
			t.Error("all entries should carry the new interval")
		}
	}
}

// --- FileCacheKey Tests ---

func TestFileCacheKey_Deterministic(t *testing.T) {
	cfg := map[string]any{"ocr": true, "language": "en"}

	key1 := domain.FileCacheKey("hash123", cfg)
	key2 := domain.FileCacheKey("hash123", map[string]any{"language": "en", "ocr": true})
	if key1 != key2 {
		t.Error("same content and config must give the same key")
	}
}

func TestFileCacheKey_ConfigChangesKey(t *testing.T) {
	key1 := domain.FileCacheKey("hash123", map[string]any{"ocr": true})
	key2 := domain.FileCacheKey("hash123", map[string]any{"ocr": false})
	if key1 == key2 {
		t.Error("config change must change the key")
	}
}

func TestFileCacheKey_EmptyContentHash(t *testing.T) {
	if key := domain.FileCacheKey("", map[string]any{"ocr": true}); key != "" {
		t.Errorf("empty content hash must give empty key, got %q", key)
	}
}
