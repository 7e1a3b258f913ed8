package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig holds Telegram Bot API configuration.
type TelegramConfig struct {
	BotToken string
	// APIBaseURL overrides the Bot API endpoint.
	APIBaseURL string
	// MaxRetryElapsed caps the total retry time. The caller's context
	// deadline applies as well.
	MaxRetryElapsed time.Duration
}

// Validate validates the Telegram configuration.
func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}
	return nil
}

// TelegramNotifier sends milestone messages to the user's Telegram chat.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telegram config: %w", err)
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultTelegramAPI
	}
	config.APIBaseURL = strings.TrimRight(config.APIBaseURL, "/")
	if config.MaxRetryElapsed <= 0 {
		config.MaxRetryElapsed = 30 * time.Second
	}
	return &TelegramNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name returns "telegram".
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send delivers the message. Users without a chat id are skipped.
func (t *TelegramNotifier) Send(ctx context.Context, n *Notification) error {
	if n.ChatID == "" {
		logger.Debug("telegram: no chat id, skipping", zap.String("user_id", n.UserID))
		return nil
	}

	payload, err := json.Marshal(telegramMessage{ChatID: n.ChatID, Text: n.Message()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.config.APIBaseURL, t.config.BotToken)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			logger.Warn("telegram: transient failure, retrying", zap.Int("status", resp.StatusCode))
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = t.config.MaxRetryElapsed

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Close is a no-op for Telegram notifier.
func (t *TelegramNotifier) Close() error {
	return nil
}
