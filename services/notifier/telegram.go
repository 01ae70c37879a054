package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	telegramTimeout = 5 * time.Second
	trelloTimeout   = 10 * time.Second

	// recorded when the request never got a response
	noResponseCode = http.StatusInternalServerError

	parseModeMarkdown = "Markdown"
)

type telegramClient struct {
	baseURL string
	http    *http.Client
}

func newTelegramClient(baseURL string) *telegramClient {
	return &telegramClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: telegramTimeout},
	}
}

// SendMessage posts to sendMessage. The returned code is noResponseCode when no
// HTTP response was received.
func (c *telegramClient) SendMessage(ctx context.Context, token, chatID, text, parseMode string) (int, map[string]any, error) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return noResponseCode, nil, errors.New(redact(err.Error(), token))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return doJSON(c.http, req, "telegram", token)
}

func doJSON(client *http.Client, req *http.Request, service string, secrets ...string) (int, map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		// the url carries credentials
		return noResponseCode, nil, errors.Errorf("%s request failed: %s", service, redact(err.Error(), secrets...))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "%s response could not be read", service)
	}

	body := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = map[string]any{"raw": string(raw)}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, errors.Errorf("%s responded with status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, body, nil
}

func redact(text string, secrets ...string) string {
	for _, secret := range secrets {
		if secret != "" {
			text = strings.ReplaceAll(text, secret, "***")
		}
	}
	return text
}
