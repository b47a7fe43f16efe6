// Package translate wraps the public Google Translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://translate.googleapis.com/translate_a/single"

// Client translates short texts between languages.
type Client interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a translation client. The public endpoint needs no key.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Translate converts text from one language to another. Texts over 4000
// bytes are truncated before the call.
func (c *httpClient) Translate(ctx context.Context, text, from, to string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if len(text) > 4000 {
		text = text[:4000]
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", to)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "translate: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "translate: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("translate: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "translate: read response")
	}

	out, err := parseResponse(body)
	if err != nil {
		return "", eris.Wrap(err, "translate: parse response")
	}
	return out, nil
}

// parseResponse unpacks the endpoint's nested-array payload: the first
// element is a list of [translatedSegment, originalSegment, ...] entries.
func parseResponse(body []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", eris.New("empty payload")
	}

	segments, ok := payload[0].([]any)
	if !ok {
		return "", eris.New("unexpected payload shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String(), nil
}
