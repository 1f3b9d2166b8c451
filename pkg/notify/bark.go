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

// Bark pushes digests to an iOS device via a Bark server. The URL carries
// the device key (https://api.day.app/<key> or a self-hosted equivalent).
type Bark struct {
	client *http.Client
	url    string
}

// NewBark creates a Bark notifier.
func NewBark(url string) *Bark {
	return &Bark{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
	}
}

func (b *Bark) Name() string { return "bark" }

func (b *Bark) Push(ctx context.Context, d *digest.Digest) error {
	payload := map[string]any{
		"title": Title(d),
		"body":  Plain(d),
		"group": "trendwatch",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal bark payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create bark request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send bark push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bark status %d", resp.StatusCode)
	}

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 200 {
		return fmt.Errorf("bark code %d: %s", result.Code, result.Message)
	}
	return nil
}
