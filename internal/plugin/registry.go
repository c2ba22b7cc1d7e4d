package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Category — категория подключаемых стратегий.
type Category string

const (
	// CategoryAuth — backend аутентификации (single-slot).
	CategoryAuth Category = "authentication"

	// CategorySubscription — backend подписок/биллинга (single-slot).
	CategorySubscription Category = "subscription"

	// CategoryModifier — модификаторы payload перед диспетчеризацией.
	CategoryModifier Category = "modifier"

	// CategoryProcessor — процессоры извлечения текста.
	CategoryProcessor Category = "processor"

	// CategoryConnector — коннекторы хранилищ/БД/очередей.
	CategoryConnector Category = "connector"

	// CategoryNotification — провайдеры уведомлений.
	CategoryNotification Category = "notification"
)

// singleSlot — категории, где одновременно может быть активна
// не более одной стратегии.
var singleSlot = map[Category]bool{
	CategoryAuth:         true,
	CategorySubscription: true,
}

// IsSingleSlot возвращает true для категорий с единственным победителем.
func (c Category) IsSingleSlot() bool {
	return singleSlot[c]
}

// Plugin — подключаемая стратегия с метаданными.
// Конкретные возможности (Modifier, Processor, ...) выражаются
// дополнительными интерфейсами, которые проверяет вызывающий.
type Plugin interface {
	Descriptor() domain.PluginDescriptor
}

// Registry — реестр стратегий, заполняемый явными вызовами Register
// при старте процесса и замораживаемый вызовом Load.
//
// После Load реестр неизменяем и безопасен для несинхронизированных
// конкурентных чтений из любых воркеров. Повторное сканирование
// набора плагинов требует рестарта процесса.
type Registry struct {
	mu      sync.RWMutex
	entries map[Category][]Plugin
	loaded  bool
	logger  *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[Category][]Plugin),
		logger:  logger,
	}
}

// Register добавляет стратегию в категорию.
//
// Вызывается только при bootstrap'е процесса, до Load.
// Имя модуля уникально внутри категории; коллизия — ошибка конфигурации
// времени старта, а не runtime-ошибка пользователя.
func (r *Registry) Register(cat Category, p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, p.Descriptor().ModuleName)
	}

	name := p.Descriptor().ModuleName
	for _, existing := range r.entries[cat] {
		if existing.Descriptor().ModuleName == name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicatePlugin, cat, name)
		}
	}

	r.entries[cat] = append(r.entries[cat], p)
	return nil
}

// Load валидирует и замораживает реестр.
//
// Для single-slot категорий более одного активного модуля — фатальная
// ошибка конфигурации (fail closed). Ноль активных модулей — не ошибка
// ни для одной категории: вызывающий откатывается на встроенную
// стратегию, о чём пишется warning.
func (r *Registry) Load() (map[Category][]domain.PluginDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for cat, plugins := range r.entries {
		if !cat.IsSingleSlot() {
			continue
		}

		var active []string
		for _, p := range plugins {
			if p.Descriptor().IsActive {
				active = append(active, p.Descriptor().ModuleName)
			}
		}
		if len(active) > 1 {
			sort.Strings(active)
			return nil, fmt.Errorf("%w: %s: %v", ErrConflictingPlugins, cat, active)
		}
	}

	loaded := make(map[Category][]domain.PluginDescriptor, len(r.entries))
	for cat, plugins := range r.entries {
		descs := make([]domain.PluginDescriptor, 0, len(plugins))
		activeCount := 0
		for _, p := range plugins {
			d := p.Descriptor()
			descs = append(descs, d)
			if d.IsActive {
				activeCount++
			}
		}
		sort.Slice(descs, func(i, j int) bool { return descs[i].ModuleName < descs[j].ModuleName })
		loaded[cat] = descs

		if activeCount == 0 {
			r.logger.Warn("no active plugin in category, falling back to built-in",
				"category", cat,
				"registered", len(plugins),
			)
		}
	}

	r.loaded = true
	r.logger.Info("plugin registry loaded", "categories", len(r.entries))

	return loaded, nil
}

// IsAvailable возвращает true, если в категории есть активная стратегия.
func (r *Registry) IsAvailable(cat Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return false
	}
	for _, p := range r.entries[cat] {
		if p.Descriptor().IsActive {
			return true
		}
	}
	return false
}

// GetActive возвращает единственную активную стратегию single-slot категории.
func (r *Registry) GetActive(cat Category) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return nil, ErrRegistryNotLoaded
	}
	if !cat.IsSingleSlot() {
		return nil, fmt.Errorf("%w: %s", ErrNotSingleSlot, cat)
	}

	for _, p := range r.entries[cat] {
		if p.Descriptor().IsActive {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoActivePlugin, cat)
}

// GetAll возвращает все активные стратегии категории
// в порядке имени модуля.
func (r *Registry) GetAll(cat Category) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []Plugin
	for _, p := range r.entries[cat] {
		if p.Descriptor().IsActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Descriptor().ModuleName < active[j].Descriptor().ModuleName
	})
	return active
}

// Descriptors возвращает метаданные всех модулей категории,
// включая неактивные.
func (r *Registry) Descriptors(cat Category) []domain.PluginDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]domain.PluginDescriptor, 0, len(r.entries[cat]))
	for _, p := range r.entries[cat] {
		descs = append(descs, p.Descriptor())
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].ModuleName < descs[j].ModuleName })
	return descs
}

// Reset очищает реестр. Только для изоляции тестов,
// в production hot-reload не поддерживается.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Category][]Plugin)
	r.loaded = false
}
