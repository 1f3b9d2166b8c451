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

// Dingtalk pushes digests as markdown messages via a DingTalk bot webhook.
type Dingtalk struct {
	client     *http.Client
	webhookURL string
}

// NewDingtalk creates a DingTalk notifier.
func NewDingtalk(webhookURL string) *Dingtalk {
	return &Dingtalk{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (dt *Dingtalk) Name() string { return "dingtalk" }

func (dt *Dingtalk) Push(ctx context.Context, d *digest.Digest) error {
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]any{
			"title": Title(d),
			"text":  "## " + Title(d) + "\n\n" + Markdown(d),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dingtalk payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dt.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create dingtalk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dt.client.Do(req)
	if err != nil {
		return fmt.Errorf("send dingtalk webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk webhook status %d", resp.StatusCode)
	}

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("dingtalk errcode %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
