// Package notify delivers digests to Telegram and Slack.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/resilience"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends messages through the bot API.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewTelegram creates a Telegram sender.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPIBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DeliveryRetryConfig(),
	}
}

// Configured reports whether credentials are present.
func (t *Telegram) Configured() bool {
	return t.token != "" && t.chatID != ""
}

// SendChunks delivers digest chunks in order. Delivery stops at the first
// chunk that fails all retries; the error reports how far it got.
func (t *Telegram) SendChunks(ctx context.Context, chunks []string) error {
	for i, chunk := range chunks {
		if err := t.Send(ctx, chunk); err != nil {
			return eris.Wrapf(err, "notify: telegram delivered %d/%d chunks", i, len(chunks))
		}
	}
	zap.L().Info("telegram digest delivered", zap.Int("chunks", len(chunks)))
	return nil
}

// Send delivers one message with retries.
func (t *Telegram) Send(ctx context.Context, text string) error {
	t.retry.OnRetry = resilience.RetryLogger("telegram", "sendMessage")
	return resilience.Do(ctx, t.retry, func(ctx context.Context) error {
		return t.sendOnce(ctx, text)
	})
}

// Me calls getMe as a connectivity and token check.
func (t *Telegram) Me(ctx context.Context) error {
	url := t.baseURL + "/bot" + t.token + "/getMe"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "notify: create telegram request")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: send telegram request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("notify: telegram status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (t *Telegram) sendOnce(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "notify: marshal telegram payload")
	}

	url := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: send telegram request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return eris.Errorf("notify: telegram status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
