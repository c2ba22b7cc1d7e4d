package plugin

import "errors"

// Ошибки реестра плагинов.
var (
	// ErrRegistryFrozen — регистрация после Load() запрещена.
	// Hot-reload не поддерживается: новый набор плагинов требует рестарта.
	ErrRegistryFrozen = errors.New("plugin registry is frozen")

	// ErrRegistryNotLoaded — чтение до Load().
	ErrRegistryNotLoaded = errors.New("plugin registry is not loaded")

	// ErrDuplicatePlugin — модуль с таким именем уже зарегистрирован в категории.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrConflictingPlugins — в single-slot категории активно более одного
	// модуля. Фатальная ошибка конфигурации: два активных auth backend'а —
	// угроза корректности, приоритетом она не разрешается.
	ErrConflictingPlugins = errors.New("multiple active plugins in single-slot category")

	// ErrNoActivePlugin — в категории нет активного модуля.
	ErrNoActivePlugin = errors.New("no active plugin")

	// ErrNotSingleSlot — GetActive применим только к single-slot категориям.
	ErrNotSingleSlot = errors.New("category is not single-slot")
)
