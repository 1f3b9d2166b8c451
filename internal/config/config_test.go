package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	groups := cfg.RuleGroups()
	if len(groups) != 1 || groups[0].Name != "all" {
		t.Errorf("RuleGroups() = %+v, want implicit catch-all", groups)
	}
	if got := cfg.Schedule.ParseInterval(); got != 30*time.Minute {
		t.Errorf("ParseInterval() = %v", got)
	}
	if got := cfg.State.ParseMaxAge(); got != 7*24*time.Hour {
		t.Errorf("ParseMaxAge() = %v", got)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: incremental
rank_threshold: 3
schedule:
  interval: 10m
platforms:
  - id: weibo
    name: 微博
    kind: api
    endpoint: https://example.com/api?id=weibo
  - id: hackernews
    kind: rss
    feed_url: https://hnrss.org/frontpage
rules:
  - name: ai
    words: [AI, 人工智能]
    filter: [advert]
server:
  listen: ":9180"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode != "incremental" || cfg.RankThreshold != 3 {
		t.Errorf("mode = %q threshold = %d", cfg.Mode, cfg.RankThreshold)
	}
	if cfg.Schedule.ParseInterval() != 10*time.Minute {
		t.Errorf("interval = %v", cfg.Schedule.ParseInterval())
	}
	if len(cfg.Platforms) != 2 || cfg.Platforms[1].ID != "hackernews" {
		t.Errorf("platforms = %+v", cfg.Platforms)
	}
	if cfg.Server.Listen != ":9180" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}

	// Untouched sections keep their defaults.
	if cfg.Timezone != "Asia/Shanghai" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.Archive.Path != "./trendwatch.db" {
		t.Errorf("archive path = %q", cfg.Archive.Path)
	}

	groups := cfg.RuleGroups()
	if len(groups) != 1 || groups[0].Name != "ai" || len(groups[0].Filter) != 1 {
		t.Errorf("RuleGroups() = %+v", groups)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEISHU_WEBHOOK_URL", "https://open.feishu.cn/hook/abc")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100500")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TRENDWATCH_STATE_PATH", "/tmp/state.json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Notify.Feishu.Enabled || cfg.Notify.Feishu.WebhookURL != "https://open.feishu.cn/hook/abc" {
		t.Errorf("feishu = %+v", cfg.Notify.Feishu)
	}
	if !cfg.Notify.Telegram.Enabled || cfg.Notify.Telegram.ChatID != "-100500" {
		t.Errorf("telegram = %+v", cfg.Notify.Telegram)
	}
	if !cfg.Enhance.Enabled || cfg.Enhance.APIKey != "sk-test" {
		t.Errorf("enhance = %+v", cfg.Enhance)
	}
	if cfg.State.Path != "/tmp/state.json" {
		t.Errorf("state path = %q", cfg.State.Path)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"unknown mode",
			func(c *Config) { c.Mode = "summary" },
			"mode",
		},
		{
			"negative threshold",
			func(c *Config) { c.RankThreshold = -1 },
			"rank_threshold",
		},
		{
			"bad interval",
			func(c *Config) { c.Schedule.Interval = "soon" },
			"schedule.interval",
		},
		{
			"duplicate platform",
			func(c *Config) { c.Platforms = append(c.Platforms, c.Platforms[0]) },
			"duplicate id",
		},
		{
			"unknown platform kind",
			func(c *Config) { c.Platforms[0].Kind = "scrape" },
			"unknown kind",
		},
		{
			"rss without feed url",
			func(c *Config) { c.Platforms[0] = PlatformConfig{ID: "hn", Kind: "rss"} },
			"missing feed_url",
		},
		{
			"slack without url",
			func(c *Config) { c.Notify.Slack.Enabled = true },
			"notify.slack",
		},
		{
			"telegram without chat id",
			func(c *Config) {
				c.Notify.Telegram.Enabled = true
				c.Notify.Telegram.BotToken = "123:abc"
			},
			"notify.telegram",
		},
		{
			"enhance without key",
			func(c *Config) { c.Enhance.Enabled = true },
			"enhance",
		},
		{
			"bad timezone",
			func(c *Config) { c.Timezone = "Mars/Olympus" },
			"timezone",
		},
		{
			"empty rule name",
			func(c *Config) { c.Rules = []RuleConfig{{Words: []string{"ai"}}} },
			"name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Mode = "summary"
	cfg.RankThreshold = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"mode", "rank_threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, want substring %q", err, want)
		}
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "mode: summary\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() accepted an unknown mode")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() accepted a missing file")
	}
}
