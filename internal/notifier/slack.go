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
)

// SlackConfig holds Slack webhook configuration.
type SlackConfig struct {
	WebhookURL string
}

// Validate validates the Slack configuration.
func (c *SlackConfig) Validate() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// SlackNotifier mirrors every milestone into one operator Slack channel.
type SlackNotifier struct {
	config     SlackConfig
	httpClient *http.Client
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(config SlackConfig) (*SlackNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid slack config: %w", err)
	}
	return &SlackNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name returns "slack".
func (s *SlackNotifier) Name() string {
	return "slack"
}

// Send posts the milestone to the webhook.
func (s *SlackNotifier) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(buildSlackPayload(n))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API error: status %d, body: %s", resp.StatusCode, string(msg))
	}
	return nil
}

// Close is a no-op for Slack notifier.
func (s *SlackNotifier) Close() error {
	return nil
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildSlackPayload(n *Notification) slackMessage {
	at := n.TriggeredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return slackMessage{
		Text: n.Message(),
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: "*" + n.Message() + "*"},
			},
			{
				Type: "section",
				Fields: []slackText{
					{Type: "mrkdwn", Text: fmt.Sprintf("*Profile:*\n%s @%s", n.Platform, n.Handle)},
					{Type: "mrkdwn", Text: fmt.Sprintf("*Followers:*\n%d (threshold %d)", n.Count, n.Threshold)},
				},
			},
			{
				Type: "context",
				Elements: []slackText{
					{Type: "mrkdwn", Text: fmt.Sprintf("alert %s at %s", n.AlertID, at.Format(time.RFC3339))},
				},
			},
		},
	}
}
