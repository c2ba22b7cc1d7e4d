package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

const defaultWebhookTimeout = 30 * time.Second

// WebhookExecutor — executor стратегии "webhook".
//
// Выполняет HTTP-запрос к внешнему сервису обработки на основе
// конфигурации из ec.Payload.
//
// Config (из ec.Payload):
//   - method (string): HTTP-метод (GET, POST, PUT, DELETE). Default: POST
//   - url (string): URL сервиса (обязательно)
//   - headers (map[string]any): HTTP-заголовки
//   - body (any): тело запроса (сериализуется в JSON)
//   - timeout_sec (number): таймаут запроса в секундах. Default: 30
//
// ec.AuthToken (если задан) уходит в Authorization: Bearer,
// не перетирая явно заданный заголовок.
//
// Data результата:
//   - status_code (int): HTTP-код ответа
//   - headers (map[string]string): заголовки ответа
//   - body (any): тело ответа (JSON или строка)
type WebhookExecutor struct{}

// Execute выполняет webhook-запрос.
func (e *WebhookExecutor) Execute(ctx context.Context, ec *domain.ExecutionContext) (*domain.ExecutionResult, error) {
	// Извлекаем конфигурацию
	method := getString(ec.Payload, "method", "POST")
	url := getString(ec.Payload, "url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrWebhookRequest)
	}

	timeout := getTimeout(ec.Payload)

	// Таймаут
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Подготавливаем body
	var bodyReader io.Reader
	if body, ok := ec.Payload["body"]; ok && body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrWebhookRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	// Создаём запрос
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrWebhookRequest, err)
	}

	// Устанавливаем заголовки
	setHeaders(req, ec.Payload)

	// Content-Type по умолчанию для запросов с body
	if bodyReader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	// Токен вызывающего
	if ec.AuthToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+ec.AuthToken)
	}

	// Выполняем запрос
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookRequest, err)
	}
	defer resp.Body.Close()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrWebhookRequest, err)
	}

	data := buildResponseData(resp, respBody)

	// HTTP >= 400 — логическая ошибка (data сохраняется для диагностики)
	if resp.StatusCode >= 400 {
		return &domain.ExecutionResult{
			Success: false,
			Data:    data,
			Error:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}, nil
	}

	return &domain.ExecutionResult{Success: true, Data: data}, nil
}

// buildResponseData формирует data результата из HTTP-ответа.
func buildResponseData(resp *http.Response, body []byte) map[string]any {
	// Парсим заголовки
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// Парсим body: пробуем JSON, иначе строка
	var parsedBody any
	if err := json.Unmarshal(body, &parsedBody); err != nil {
		parsedBody = string(body)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsedBody,
	}
}

// getString извлекает строку из map с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getTimeout извлекает таймаут из payload.
func getTimeout(payload map[string]any) time.Duration {
	if val, ok := payload["timeout_sec"]; ok {
		switch v := val.(type) {
		case float64:
			if v > 0 {
				return time.Duration(v * float64(time.Second))
			}
		case int:
			if v > 0 {
				return time.Duration(v) * time.Second
			}
		}
	}
	return defaultWebhookTimeout
}

// setHeaders устанавливает заголовки из payload.
func setHeaders(req *http.Request, payload map[string]any) {
	headers, ok := payload["headers"]
	if !ok || headers == nil {
		return
	}

	switch h := headers.(type) {
	case map[string]any:
		for key, val := range h {
			if s, ok := val.(string); ok {
				req.Header.Set(key, s)
			}
		}
	case map[string]string:
		for key, val := range h {
			req.Header.Set(key, val)
		}
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
