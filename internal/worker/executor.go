package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Executor — интерфейс стратегии обработки одной единицы работы.
//
// Реализации: WebhookExecutor, TransformExecutor, NoopExecutor.
//
// ec.Payload содержит входные данные (файл, конфигурацию обработки).
// Инфраструктурные ошибки возвращаются через error; логические —
// через ExecutionResult с Success=false.
type Executor interface {
	Execute(ctx context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error)
}

// Factory создаёт новый экземпляр executor'а.
//
// Реестр хранит фабрики, а не экземпляры: каждая единица работы
// получает свежий executor и не может протечь состоянием в соседнюю.
type Factory func() Executor

// Registry — реестр executor'ов по имени стратегии.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry создаёт реестр с зарегистрированными executor'ами по умолчанию.
//
// Регистрирует: webhook, transform, noop.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.MustRegister("webhook", func() Executor { return &WebhookExecutor{} })
	r.MustRegister("transform", func() Executor { return &TransformExecutor{} })
	r.MustRegister("noop", func() Executor { return &NoopExecutor{} })
	return r
}

// Register добавляет фабрику executor'а под именем name.
//
// Повторная регистрация имени — ошибка конфигурации процесса:
// молчаливая перезапись подменила бы поведение всех задач этой стратегии.
func (r *Registry) Register(name string, factory Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateExecutor, name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister — Register с panic при ошибке. Для bootstrap-кода.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Get возвращает свежий экземпляр executor'а по имени.
func (r *Registry) Get(name string) (Executor, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, name)
	}
	return factory(), nil
}

// List возвращает отсортированные имена зарегистрированных executor'ов.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
