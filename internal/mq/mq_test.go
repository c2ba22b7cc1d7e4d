package mq

import (
	"encoding/json"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRoute_KnownQueues(t *testing.T) {
	for _, q := range KnownQueues() {
		exchange, key, err := Route(q)
		if err != nil {
			t.Errorf("queue %s: unexpected error: %v", q, err)
		}
		if exchange == "" || key == "" {
			t.Errorf("queue %s: empty route", q)
		}
	}
}

func TestRoute_UnknownQueueRejected(t *testing.T) {
	_, _, err := Route(Queue("celery"))
	if !errors.Is(err, ErrUnknownQueue) {
		t.Errorf("expected ErrUnknownQueue, got %v", err)
	}

	_, _, err = Route(Queue(""))
	if !errors.Is(err, ErrUnknownQueue) {
		t.Errorf("expected ErrUnknownQueue for empty name, got %v", err)
	}
}

func TestBackoff_GrowsAndRespectsCeiling(t *testing.T) {
	initial := time.Second
	max := 10 * time.Second

	for attempt := 1; attempt <= 8; attempt++ {
		d := Backoff(attempt, initial, max)
		if d > max {
			t.Errorf("attempt %d: delay %v exceeds max %v", attempt, d, max)
		}
		if d <= 0 {
			t.Errorf("attempt %d: non-positive delay %v", attempt, d)
		}
	}

	// Первая попытка с учётом jitter остаётся около initial
	d := Backoff(1, initial, max)
	if d < time.Duration(float64(initial)*0.7) || d > time.Duration(float64(initial)*1.3) {
		t.Errorf("first attempt delay %v too far from initial %v", d, initial)
	}

	// Поздняя попытка упирается в потолок
	d = Backoff(8, initial, max)
	if d < time.Duration(float64(max)*0.7) {
		t.Errorf("late attempt delay %v should be near max %v", d, max)
	}
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		ErrNoChannel,
		amqp.ErrClosed,
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		&amqp.Error{Code: 541, Reason: "internal error"},
	}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Errorf("%v should be transient", err)
		}
	}

	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(errors.New("validation failed")) {
		t.Error("application errors are not transient")
	}
}

func TestParsePayload_RoundTripThroughJSON(t *testing.T) {
	payload := RunRequestPayload{ExecutionID: uuid.New()}
	msg := NewMessage(MessageTypeRunRequest, payload)

	// Конверт проходит через брокер как JSON
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var received Message
	if err := json.Unmarshal(raw, &received); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := ParsePayload[RunRequestPayload](&received)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ExecutionID != payload.ExecutionID {
		t.Errorf("expected %s, got %s", payload.ExecutionID, parsed.ExecutionID)
	}
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := NewMessage(MessageTypeCallback, "not an object")
	if _, err := ParsePayload[CallbackPayload](msg); err == nil {
		t.Error("expected error for mismatched payload shape")
	}
}
