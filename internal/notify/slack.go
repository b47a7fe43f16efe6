package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/resilience"
)

// Slack posts to an incoming webhook.
type Slack struct {
	webhookURL string
	http       *http.Client
	retry      resilience.RetryConfig
}

// NewSlack creates a Slack sender.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 30 * time.Second},
		retry:      resilience.DeliveryRetryConfig(),
	}
}

// Configured reports whether a webhook URL is present.
func (s *Slack) Configured() bool {
	return s.webhookURL != ""
}

// Attachment is a rich block in a Slack message.
type Attachment struct {
	Color  string  `json:"color,omitempty"`
	Title  string  `json:"title,omitempty"`
	Text   string  `json:"text,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}

// Field is a short labeled value inside an attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SendText posts a plain-text message with retries.
func (s *Slack) SendText(ctx context.Context, text string) error {
	return s.post(ctx, map[string]any{"text": text})
}

// SendRich posts a message with attachments with retries.
func (s *Slack) SendRich(ctx context.Context, text string, attachments []Attachment) error {
	return s.post(ctx, map[string]any{
		"text":        text,
		"attachments": attachments,
	})
}

func (s *Slack) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "notify: marshal slack payload")
	}

	s.retry.OnRetry = resilience.RetryLogger("slack", "webhook")
	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "notify: create slack request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err != nil {
			return eris.Wrap(err, "notify: send slack request")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("notify: slack status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("slack message delivered")
	return nil
}
