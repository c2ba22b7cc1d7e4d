package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWork         MessageType = "work.execute"
	MessageTypeRunRequest   MessageType = "run.request"
	MessageTypeCallback     MessageType = "task.callback"
	MessageTypeNotification MessageType = "notify.deployment"
)

// Message — конверт сообщения для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт конверт с заданным payload.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunRequestPayload — запрос на выполнение run. Потребитель: Orchestrator.
type RunRequestPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
}

// CallbackPayload — результат завершённой задачи. Потребитель: Orchestrator.
type CallbackPayload struct {
	RequestID   string    `json:"request_id"`
	ExecutionID uuid.UUID `json:"execution_id"`
	WorkflowID  uuid.UUID `json:"workflow_id"`
	FileName    string    `json:"file_name,omitempty"`
	CacheKey    string    `json:"cache_key,omitempty"`
	Status      string    `json:"status"` // SUCCESS, ERROR или PARTIAL
	Error       string    `json:"error,omitempty"`
}

// DeploymentNoticePayload — уведомление о завершении run без pipeline
// (API deployment). Потребитель: notification worker.
type DeploymentNoticePayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	WorkflowID  uuid.UUID `json:"workflow_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload может быть уже распарсен как map или быть raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
