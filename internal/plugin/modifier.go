package plugin

import (
	"context"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Modifier — стратегия модификации payload перед диспетчеризацией.
// Активные модификаторы применяются оркестратором по порядку имени модуля.
type Modifier interface {
	Plugin

	// Modify возвращает модифицированный payload.
	// Исходный payload не мутируется.
	Modify(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// StampModifier — встроенный модификатор, добавляющий в payload
// служебные поля организации и времени диспетчеризации.
type StampModifier struct {
	// OrganizationID — организация, проставляемая в payload.
	OrganizationID string

	// Active — объявляет ли модуль себя активным.
	Active bool
}

// Descriptor возвращает метаданные модуля.
func (m *StampModifier) Descriptor() domain.PluginDescriptor {
	return domain.PluginDescriptor{
		ModuleName:  "stamp",
		DisplayName: "Dispatch Stamp",
		IsActive:    m.Active,
		ServiceName: "StampModifier",
	}
}

// Modify добавляет organization_id и dispatched_at.
func (m *StampModifier) Modify(_ context.Context, payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	if m.OrganizationID != "" {
		out["organization_id"] = m.OrganizationID
	}
	out["dispatched_at"] = time.Now().UTC().Format(time.RFC3339)
	return out, nil
}
