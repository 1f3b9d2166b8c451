package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // embedded zone database

	"gopkg.in/yaml.v3"

	"github.com/tidegraph/trendwatch/internal/state"
	"github.com/tidegraph/trendwatch/pkg/digest"
	"github.com/tidegraph/trendwatch/pkg/rule"
	"github.com/tidegraph/trendwatch/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Mode          string           `yaml:"mode"`
	RankThreshold int              `yaml:"rank_threshold"`
	Timezone      string           `yaml:"timezone"`
	Schedule      ScheduleConfig   `yaml:"schedule"`
	State         StateConfig      `yaml:"state"`
	Archive       ArchiveConfig    `yaml:"archive"`
	Platforms     []PlatformConfig `yaml:"platforms"`
	Rules         []RuleConfig     `yaml:"rules"`
	Notify        NotifyConfig     `yaml:"notify"`
	Enhance       EnhanceConfig    `yaml:"enhance"`
	Server        ServerConfig     `yaml:"server"`
	Log           LogConfig        `yaml:"log"`
}

// ScheduleConfig configures the polling loop.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the polling interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// StateConfig configures the sighting state file.
type StateConfig struct {
	Path    string `yaml:"path"`
	MaxAge  string `yaml:"max_age"`
	MaxRuns int    `yaml:"max_runs"`
}

// ParseMaxAge returns the state retention age as time.Duration.
func (s StateConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(s.MaxAge)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// Retention returns the retention policy for the state store.
func (s StateConfig) Retention() state.Retention {
	return state.Retention{MaxAge: s.ParseMaxAge(), MaxRuns: s.MaxRuns}
}

// ArchiveConfig configures SQLite run history. An empty path disables it.
type ArchiveConfig struct {
	Path     string `yaml:"path"`
	KeepDays int    `yaml:"keep_days"`
}

// PlatformConfig describes one trending list to poll.
type PlatformConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Endpoint      string `yaml:"endpoint"`
	FeedURL       string `yaml:"feed_url"`
	PageURL       string `yaml:"page_url"`
	ItemSelector  string `yaml:"item_selector"`
	TitleSelector string `yaml:"title_selector"`
	LinkSelector  string `yaml:"link_selector"`
	Limit         int    `yaml:"limit"`
}

// RuleConfig is one keyword group.
type RuleConfig struct {
	Name     string   `yaml:"name"`
	Words    []string `yaml:"words"`
	Required []string `yaml:"required"`
	Filter   []string `yaml:"filter"`
}

// NotifyConfig configures push destinations.
type NotifyConfig struct {
	Feishu   ChannelConfig  `yaml:"feishu"`
	DingTalk ChannelConfig  `yaml:"dingtalk"`
	WeWork   ChannelConfig  `yaml:"wework"`
	Slack    ChannelConfig  `yaml:"slack"`
	Discord  ChannelConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bark     BarkConfig     `yaml:"bark"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// ChannelConfig is a webhook-style push channel.
type ChannelConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// TelegramConfig for Telegram bot pushes.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// BarkConfig for Bark pushes.
type BarkConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// WebhookConfig for generic webhook pushes.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// EnhanceConfig configures the optional LLM overview.
type EnhanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig configures the status HTTP server. An empty listen
// address disables it.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Mode:          "current",
		RankThreshold: 5,
		Timezone:      "Asia/Shanghai",
		Schedule:      ScheduleConfig{Interval: "30m"},
		State: StateConfig{
			Path:    "./trendwatch.state.json",
			MaxAge:  "168h",
			MaxRuns: 50,
		},
		Archive: ArchiveConfig{
			Path:     "./trendwatch.db",
			KeepDays: 30,
		},
		Platforms: []PlatformConfig{
			{ID: "weibo", Name: "微博", Kind: "api", Endpoint: "https://newsnow.busiyi.world/api/s?id=weibo&latest"},
			{ID: "zhihu", Name: "知乎", Kind: "api", Endpoint: "https://newsnow.busiyi.world/api/s?id=zhihu&latest"},
			{ID: "baidu", Name: "百度热搜", Kind: "api", Endpoint: "https://newsnow.busiyi.world/api/s?id=baidu&latest"},
			{ID: "douyin", Name: "抖音", Kind: "api", Endpoint: "https://newsnow.busiyi.world/api/s?id=douyin&latest"},
			{ID: "toutiao", Name: "今日头条", Kind: "api", Endpoint: "https://newsnow.busiyi.world/api/s?id=toutiao&latest"},
		},
		Enhance: EnhanceConfig{Model: "gpt-4o-mini"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file, applies env var overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRENDWATCH_DB_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("TRENDWATCH_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("FEISHU_WEBHOOK_URL"); v != "" {
		cfg.Notify.Feishu.WebhookURL = v
		cfg.Notify.Feishu.Enabled = true
	}
	if v := os.Getenv("DINGTALK_WEBHOOK_URL"); v != "" {
		cfg.Notify.DingTalk.WebhookURL = v
		cfg.Notify.DingTalk.Enabled = true
	}
	if v := os.Getenv("WEWORK_WEBHOOK_URL"); v != "" {
		cfg.Notify.WeWork.WebhookURL = v
		cfg.Notify.WeWork.Enabled = true
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Slack.WebhookURL = v
		cfg.Notify.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Notify.Discord.WebhookURL = v
		cfg.Notify.Discord.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.Telegram.ChatID = v
	}
	if cfg.Notify.Telegram.BotToken != "" && cfg.Notify.Telegram.ChatID != "" {
		cfg.Notify.Telegram.Enabled = true
	}
	if v := os.Getenv("BARK_URL"); v != "" {
		cfg.Notify.Bark.URL = v
		cfg.Notify.Bark.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Enhance.APIKey = v
		cfg.Enhance.Enabled = true
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Enhance.BaseURL = v
	}
}

// RuleGroups converts the configured rules for the matcher. With no
// rules configured every title passes through one catch-all group.
func (c *Config) RuleGroups() []rule.Group {
	if len(c.Rules) == 0 {
		return []rule.Group{{Name: "all"}}
	}
	groups := make([]rule.Group, len(c.Rules))
	for i, rc := range c.Rules {
		groups[i] = rule.Group{
			Name:     rc.Name,
			Normal:   rc.Words,
			Required: rc.Required,
			Filter:   rc.Filter,
		}
	}
	return groups
}

// PlatformIDs lists the configured platform IDs in order.
func (c *Config) PlatformIDs() []string {
	ids := make([]string, len(c.Platforms))
	for i, p := range c.Platforms {
		ids[i] = p.ID
	}
	return ids
}

// PlatformNames maps platform IDs to display names. Platforms without a
// display name are omitted.
func (c *Config) PlatformNames() map[string]string {
	names := make(map[string]string, len(c.Platforms))
	for _, p := range c.Platforms {
		if p.Name != "" {
			names[p.ID] = p.Name
		}
	}
	return names
}

// Location returns the configured timezone, or UTC when unset.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := digest.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.RankThreshold < 0 {
		errs = append(errs, errors.New("rank_threshold must not be negative"))
	}
	if c.Schedule.Interval != "" {
		if _, err := time.ParseDuration(c.Schedule.Interval); err != nil {
			errs = append(errs, fmt.Errorf("parse schedule.interval: %w", err))
		}
	}
	if c.State.MaxAge != "" {
		if _, err := time.ParseDuration(c.State.MaxAge); err != nil {
			errs = append(errs, fmt.Errorf("parse state.max_age: %w", err))
		}
	}
	if c.Archive.KeepDays < 0 {
		errs = append(errs, errors.New("archive.keep_days must not be negative"))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("load timezone %q: %w", c.Timezone, err))
		}
	}

	if len(c.Platforms) == 0 {
		errs = append(errs, errors.New("no platforms configured"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Platforms {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("platform %d: missing id", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("platform %s: duplicate id", p.ID))
		}
		seen[p.ID] = true

		switch source.Kind(p.Kind) {
		case source.KindAPI:
			if p.Endpoint == "" {
				errs = append(errs, fmt.Errorf("platform %s: missing endpoint", p.ID))
			}
		case source.KindRSS:
			if p.FeedURL == "" {
				errs = append(errs, fmt.Errorf("platform %s: missing feed_url", p.ID))
			}
		case source.KindBoard:
			if p.PageURL == "" {
				errs = append(errs, fmt.Errorf("platform %s: missing page_url", p.ID))
			}
			if p.ItemSelector == "" {
				errs = append(errs, fmt.Errorf("platform %s: missing item_selector", p.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("platform %s: unknown kind %q", p.ID, p.Kind))
		}
	}

	if _, err := rule.NewSet(c.RuleGroups()); err != nil {
		errs = append(errs, err)
	}

	channels := []struct {
		name string
		ch   ChannelConfig
	}{
		{"feishu", c.Notify.Feishu},
		{"dingtalk", c.Notify.DingTalk},
		{"wework", c.Notify.WeWork},
		{"slack", c.Notify.Slack},
		{"discord", c.Notify.Discord},
	}
	for _, ch := range channels {
		if ch.ch.Enabled && ch.ch.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("notify.%s enabled without webhook_url", ch.name))
		}
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		errs = append(errs, errors.New("notify.telegram enabled without bot_token and chat_id"))
	}
	if c.Notify.Bark.Enabled && c.Notify.Bark.URL == "" {
		errs = append(errs, errors.New("notify.bark enabled without url"))
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		errs = append(errs, errors.New("notify.webhook enabled without url"))
	}
	if c.Enhance.Enabled && c.Enhance.APIKey == "" {
		errs = append(errs, errors.New("enhance enabled without api_key"))
	}

	return errors.Join(errs...)
}
