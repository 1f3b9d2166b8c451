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

// WeWork's markdown content is capped at 4096 bytes per message.
const weworkLimit = 4000

// WeWork pushes digests as markdown messages via a WeCom group bot webhook,
// batching when the rendered digest exceeds the per-message cap.
type WeWork struct {
	client     *http.Client
	webhookURL string
}

// NewWeWork creates a WeCom notifier.
func NewWeWork(webhookURL string) *WeWork {
	return &WeWork{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (w *WeWork) Name() string { return "wework" }

func (w *WeWork) Push(ctx context.Context, d *digest.Digest) error {
	text := "**" + Title(d) + "**\n\n" + Markdown(d)
	for _, batch := range SplitBatches(text, weworkLimit) {
		if err := w.send(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (w *WeWork) send(ctx context.Context, content string) error {
	payload := map[string]any{
		"msgtype":  "markdown",
		"markdown": map[string]any{"content": content},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal wework payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create wework request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send wework webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wework webhook status %d", resp.StatusCode)
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("wework errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
