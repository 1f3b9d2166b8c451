package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

// discordLimit caps the embed description; Discord rejects anything past 4096 chars.
const discordLimit = 4000

// Discord pushes digests to a Discord channel via webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (dc *Discord) Name() string { return "discord" }

func (dc *Discord) Push(ctx context.Context, d *digest.Digest) error {
	description := Markdown(d)
	if len(description) > discordLimit {
		cut := discordLimit
		for cut > 0 && !utf8.RuneStart(description[cut]) {
			cut--
		}
		description = description[:cut] + "..."
	}

	embed := map[string]any{
		"title":       Title(d),
		"description": description,
		"color":       0xFF6600,
		"timestamp":   d.GeneratedAt.Format(time.RFC3339),
		"footer": map[string]any{
			"text": footer(d),
		},
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dc.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}

	return nil
}
