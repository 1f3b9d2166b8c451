package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

// Telegram messages are capped at 4096 characters; stay under it with the
// byte length, which is never smaller.
const telegramLimit = 4000

// Telegram pushes digests through the Bot API using HTML formatting,
// splitting long digests into multiple messages.
type Telegram struct {
	client *http.Client
	api    string
	token  string
	chatID string
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		client: &http.Client{Timeout: 10 * time.Second},
		api:    "https://api.telegram.org",
		token:  token,
		chatID: chatID,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Push(ctx context.Context, d *digest.Digest) error {
	text := "<b>" + Title(d) + "</b>\n\n" + HTML(d)
	for _, batch := range SplitBatches(text, telegramLimit) {
		if err := t.send(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.api, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram: %s", result.Description)
	}
	return nil
}
