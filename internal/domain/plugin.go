package domain

// PluginDescriptor — метаданные подключаемой стратегии.
//
// Собираются один раз при старте процесса и неизменяемы до рестарта.
type PluginDescriptor struct {
	// ModuleName — уникальное имя модуля плагина.
	ModuleName string `json:"module_name"`

	// DisplayName — человекочитаемое имя.
	DisplayName string `json:"display_name"`

	// IsActive — объявил ли модуль себя активным.
	// Неактивные модули регистрируются, но не выбираются.
	IsActive bool `json:"is_active"`

	// ServiceName — имя сервисной реализации, которую предоставляет модуль.
	ServiceName string `json:"service_class"`
}
