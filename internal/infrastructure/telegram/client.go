package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/entity"
	"reminder-service/internal/domain/service"

	"github.com/cenkalti/backoff/v4"
)

// APIError is a failed Bot API call
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.StatusCode, e.Description)
}

// Retryable reports whether the call may succeed when repeated
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// Client is a Telegram Bot API client implementing service.Notifier
type Client struct {
	token           string
	baseURL         string
	httpClient      *http.Client
	retryMaxElapsed time.Duration
}

// NewClient creates a new Bot API client
func NewClient(cfg *config.TelegramConfig) *Client {
	return &Client{
		token:           cfg.BotToken,
		baseURL:         strings.TrimRight(cfg.APIURL, "/"),
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		retryMaxElapsed: cfg.RetryMaxElapsed,
	}
}

// Send delivers a message, as a photo with caption when it carries an image
func (c *Client) Send(ctx context.Context, chatID string, msg *service.Message) error {
	markup := keyboard(msg.Buttons)

	if msg.Image == "" {
		payload := map[string]any{
			"chat_id":                  chatID,
			"text":                     msg.Text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}
		if markup != nil {
			payload["reply_markup"] = markup
		}
		return c.call(ctx, "sendMessage", jsonBody(payload))
	}

	if entity.IsRemoteImage(msg.Image) {
		payload := map[string]any{
			"chat_id":    chatID,
			"photo":      msg.Image,
			"caption":    msg.Text,
			"parse_mode": "HTML",
		}
		if markup != nil {
			payload["reply_markup"] = markup
		}
		return c.call(ctx, "sendPhoto", jsonBody(payload))
	}

	fields := map[string]string{
		"chat_id":    chatID,
		"caption":    msg.Text,
		"parse_mode": "HTML",
	}
	if markup != nil {
		encoded, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("failed to encode keyboard: %w", err)
		}
		fields["reply_markup"] = string(encoded)
	}
	return c.call(ctx, "sendPhoto", photoUpload(fields, msg.Image))
}

// AnswerCallback shows a short toast for a button press
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	return c.call(ctx, "answerCallbackQuery", jsonBody(map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        false,
	}))
}

// bodyFunc builds a fresh request body for every attempt
type bodyFunc func() (io.Reader, string, error)

func (c *Client) call(ctx context.Context, method string, body bodyFunc) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	attempt := func() error {
		reader, contentType, err := body()
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build %s request: %w", method, err))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("telegram %s: failed to read response: %w", method, err)
		}

		var result apiResponse
		if err := json.Unmarshal(raw, &result); err != nil {
			result.Description = strings.TrimSpace(string(raw))
		}

		if resp.StatusCode < 300 && result.OK {
			return nil
		}

		apiErr := &APIError{Method: method, StatusCode: resp.StatusCode, Description: result.Description}
		if !apiErr.Retryable() {
			return backoff.Permanent(apiErr)
		}
		return apiErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = c.retryMaxElapsed

	return backoff.Retry(attempt, backoff.WithContext(policy, ctx))
}

func jsonBody(payload map[string]any) bodyFunc {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode payload: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func photoUpload(fields map[string]string, path string) bodyFunc {
	return func() (io.Reader, string, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open image: %w", err)
		}
		defer file.Close()

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for name, value := range fields {
			if err := writer.WriteField(name, value); err != nil {
				return nil, "", err
			}
		}

		part, err := writer.CreateFormFile("photo", filepath.Base(path))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, "", err
		}
		return &buf, writer.FormDataContentType(), nil
	}
}

func keyboard(buttons []service.Button) *replyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	row := make([]inlineButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, inlineButton{Text: b.Text, CallbackData: b.Data})
	}
	return &replyMarkup{InlineKeyboard: [][]inlineButton{row}}
}
