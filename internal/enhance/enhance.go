package enhance

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

const defaultModel = "gpt-4o-mini"

const overviewPrompt = `You are a news editor. Below are the trending stories selected in the latest monitoring pass, one per line with platform and rank.

%s

Write one short paragraph (two or three sentences, in the same language as most of the titles) that captures the main themes. Mention a platform only when a story trends on several of them. Return only the paragraph, no preamble.`

// Writer produces a short overview paragraph for a digest using an
// OpenAI-compatible chat API.
type Writer struct {
	client *openai.Client
	model  string
}

// Options configures the overview writer.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New creates an overview writer.
func New(opts Options) *Writer {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	return &Writer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Overview asks the model for a summary paragraph of the digest.
func (w *Writer) Overview(ctx context.Context, d *digest.Digest) (string, error) {
	entries := d.Entries()
	if len(entries) == 0 {
		return "", nil
	}

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(d)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(d *digest.Digest) string {
	var lines []string
	for _, sec := range d.Sections {
		for _, e := range sec.Entries {
			line := fmt.Sprintf("- [%s #%d] %s", e.Platform, e.Rank, e.Title)
			if e.New {
				line += " (new)"
			}
			lines = append(lines, line)
		}
	}
	return fmt.Sprintf(overviewPrompt, strings.Join(lines, "\n"))
}
