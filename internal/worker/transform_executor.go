package worker

import (
	"context"

	"github.com/shaiso/Conveyor/internal/domain"
)

// TransformExecutor — executor стратегии "transform".
//
// Перекладывает поля payload согласно mapping (выход ← вход).
// Без mapping — pass-through: payload целиком становится data результата.
//
// Config (из ec.Payload):
//   - mapping (map[string]any): ключ результата → ключ payload.
//     Отсутствующие входные ключи молча пропускаются.
//
// Остальные поля payload (кроме mapping) при наличии mapping
// в результат не попадают.
type TransformExecutor struct{}

// Execute применяет mapping к payload.
func (e *TransformExecutor) Execute(_ context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error) {
	if ec.Payload == nil {
		return domain.SuccessResult(nil), nil
	}

	mapping, ok := ec.Payload["mapping"].(map[string]any)
	if !ok || len(mapping) == 0 {
		return domain.SuccessResult(ec.Payload), nil
	}

	data := make(map[string]any, len(mapping))
	for outKey, inKey := range mapping {
		srcKey, ok := inKey.(string)
		if !ok {
			continue
		}
		if val, ok := ec.Payload[srcKey]; ok {
			data[outKey] = val
		}
	}

	return domain.SuccessResult(data), nil
}
