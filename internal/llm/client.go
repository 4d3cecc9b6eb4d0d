// Package llm — client.go оборачивает go-openai.
// Клиент сам переживает rate limit и ошибки провайдера (внутренний цикл
// повторов с фиксированной паузой); структурные повторы при битом JSON —
// уровнем выше, в сервисах историй и чата.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// ErrGenerationFailed — провайдер так и не ответил за отведённые попытки.
var ErrGenerationFailed = errors.New("провайдер не вернул ответ")

// ErrImageGenerationFailed — не удалось получить обложку.
var ErrImageGenerationFailed = errors.New("не удалось сгенерировать изображение")

// CallRecorder записывает каждый вызов модели в журнал llm_history.
// Журнал append-only, ошибки записи не должны ронять генерацию.
type CallRecorder interface {
	RecordCall(ctx context.Context, model, prompt, response string) error
}

// Generator — способность генерации, которую потребляют сервисы.
// Позволяет подменять клиента фейком в тестах.
type Generator interface {
	Generate(ctx context.Context, model string, messages []Message) (Result, error)
}

// Client — клиент OpenAI-совместимого API.
type Client struct {
	api        *openai.Client
	imageModel string
	maxRetries int
	backoff    time.Duration
	recorder   CallRecorder
}

// NewClient создаёт клиента. baseURL позволяет ходить через шлюзы,
// доступные из Ирана. recorder может быть nil (журнал отключён).
func NewClient(apiKey, baseURL, imageModel string, maxRetries, backoffSeconds int, recorder CallRecorder) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		imageModel: imageModel,
		maxRetries: maxRetries,
		backoff:    time.Duration(backoffSeconds) * time.Second,
		recorder:   recorder,
	}
}

// Generate отправляет транскрипт модели и возвращает текст ответа
// со счётчиками токенов. При rate limit и 5xx повторяет запрос
// с фиксированной паузой, максимум maxRetries раз.
func (c *Client) Generate(ctx context.Context, model string, messages []Message) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAI(messages),
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		log.WithFields(log.Fields{
			"model":   model,
			"attempt": attempt + 1,
			"max":     c.maxRetries,
		}).Debug("Запрос к LLM")

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			if !isRetryable(err) {
				return Result{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
			}
			log.WithError(err).WithField("model", model).
				Warnf("Провайдер недоступен, повтор через %s", c.backoff)
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return Result{}, fmt.Errorf("%w: пустой ответ", ErrGenerationFailed)
		}

		result := Result{
			Text:         strings.TrimSpace(resp.Choices[0].Message.Content),
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		c.record(ctx, model, messages, result.Text)
		return result, nil
	}

	log.WithField("model", model).Error("Достигнут максимум повторов к провайдеру")
	return Result{}, ErrGenerationFailed
}

// GenerateImage создаёт обложку по текстовому промпту и возвращает URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:          c.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", ErrImageGenerationFailed
	}
	c.record(ctx, c.imageModel, []Message{{Role: RoleUser, Content: prompt}}, resp.Data[0].URL)
	return resp.Data[0].URL, nil
}

// record пишет вызов в журнал. Ошибка журнала — только в лог.
func (c *Client) record(ctx context.Context, model string, messages []Message, response string) {
	if c.recorder == nil {
		return
	}
	prompt, err := json.Marshal(messages)
	if err != nil {
		log.WithError(err).Error("Не удалось сериализовать промпт для журнала")
		return
	}
	if err := c.recorder.RecordCall(ctx, model, string(prompt), response); err != nil {
		log.WithError(err).Error("Ошибка записи в llm_history")
	}
}

// isRetryable: 429 и 5xx ждём и повторяем, остальное — сразу наружу.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Сетевые ошибки без кода считаем временными
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == 0
	}
	return false
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
