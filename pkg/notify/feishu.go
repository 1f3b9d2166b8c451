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

// Feishu pushes digests as interactive cards via a Feishu bot webhook.
type Feishu struct {
	client     *http.Client
	webhookURL string
}

// NewFeishu creates a Feishu notifier.
func NewFeishu(webhookURL string) *Feishu {
	return &Feishu{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (f *Feishu) Name() string { return "feishu" }

func (f *Feishu) Push(ctx context.Context, d *digest.Digest) error {
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": Title(d)},
				"template": "blue",
			},
			"elements": []map[string]any{
				{"tag": "markdown", "content": Markdown(d)},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal feishu payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create feishu request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send feishu webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu webhook status %d", resp.StatusCode)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 0 {
		return fmt.Errorf("feishu code %d: %s", result.Code, result.Msg)
	}
	return nil
}
