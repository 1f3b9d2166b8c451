package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tidegraph/trendwatch/internal/app"
	"github.com/tidegraph/trendwatch/internal/archive"
	"github.com/tidegraph/trendwatch/internal/config"
	"github.com/tidegraph/trendwatch/internal/enhance"
	"github.com/tidegraph/trendwatch/internal/logging"
	"github.com/tidegraph/trendwatch/internal/scheduler"
	"github.com/tidegraph/trendwatch/internal/state"
	"github.com/tidegraph/trendwatch/pkg/digest"
	"github.com/tidegraph/trendwatch/pkg/feed"
	"github.com/tidegraph/trendwatch/pkg/notify"
	"github.com/tidegraph/trendwatch/pkg/rule"
	"github.com/tidegraph/trendwatch/pkg/server"
	"github.com/tidegraph/trendwatch/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildProviders(cfg *config.Config) []source.Provider {
	providers := make([]source.Provider, 0, len(cfg.Platforms))
	for _, p := range cfg.Platforms {
		switch source.Kind(p.Kind) {
		case source.KindRSS:
			providers = append(providers, source.NewRSS(p.ID, p.FeedURL, p.Limit))
		case source.KindBoard:
			sel := source.Selectors{
				Item:  p.ItemSelector,
				Title: p.TitleSelector,
				Link:  p.LinkSelector,
			}
			providers = append(providers, source.NewBoard(p.ID, p.PageURL, sel, p.Limit))
		default:
			providers = append(providers, source.NewAPI(p.ID, p.Endpoint, p.Limit))
		}
	}
	return providers
}

func buildNotifiers(cfg *config.Config) *notify.Manager {
	var notifiers []notify.Notifier

	if cfg.Notify.Feishu.Enabled {
		notifiers = append(notifiers, notify.NewFeishu(cfg.Notify.Feishu.WebhookURL))
	}
	if cfg.Notify.DingTalk.Enabled {
		notifiers = append(notifiers, notify.NewDingtalk(cfg.Notify.DingTalk.WebhookURL))
	}
	if cfg.Notify.WeWork.Enabled {
		notifiers = append(notifiers, notify.NewWeWork(cfg.Notify.WeWork.WebhookURL))
	}
	if cfg.Notify.Slack.Enabled {
		notifiers = append(notifiers, notify.NewSlack(cfg.Notify.Slack.WebhookURL))
	}
	if cfg.Notify.Discord.Enabled {
		notifiers = append(notifiers, notify.NewDiscord(cfg.Notify.Discord.WebhookURL))
	}
	if cfg.Notify.Telegram.Enabled {
		notifiers = append(notifiers, notify.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Bark.Enabled {
		notifiers = append(notifiers, notify.NewBark(cfg.Notify.Bark.URL))
	}
	if cfg.Notify.Webhook.Enabled {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret))
	}

	return notify.NewManager(notifiers)
}

// buildDeps assembles everything a runner needs. The returned cleanup closes
// the archive when one was opened.
func buildDeps(cfg *config.Config) (app.Deps, func(), error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return app.Deps{}, nil, fmt.Errorf("init logging: %w", err)
	}

	rules, err := rule.NewSet(cfg.RuleGroups())
	if err != nil {
		return app.Deps{}, nil, fmt.Errorf("compile rules: %w", err)
	}

	deps := app.Deps{
		Config:    cfg,
		Log:       log,
		Providers: buildProviders(cfg),
		Rules:     rules,
		Store:     state.NewStore(cfg.State.Path, cfg.State.Retention()),
		Notify:    buildNotifiers(cfg),
	}

	cleanup := func() {}
	if cfg.Archive.Path != "" {
		arch, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return app.Deps{}, nil, fmt.Errorf("open archive: %w", err)
		}
		deps.Archive = arch
		cleanup = func() { arch.Close() }
	}

	if cfg.Enhance.Enabled {
		deps.Enhancer = enhance.New(enhance.Options{
			APIKey:  cfg.Enhance.APIKey,
			BaseURL: cfg.Enhance.BaseURL,
			Model:   cfg.Enhance.Model,
		})
	}

	return deps, cleanup, nil
}

func runOnce(mode string, jsonMode bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if mode != "" {
		if _, err := digest.ParseMode(mode); err != nil {
			return err
		}
		cfg.Mode = mode
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sum, d := app.New(deps).Run(ctx)

	if jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else {
		printSummary(sum, d)
	}

	return sum.Err()
}

func printSummary(sum *app.Summary, d *digest.Digest) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tITEMS\tERROR")
	for _, p := range sum.Platforms {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.ID, p.Items, p.Err)
	}
	w.Flush()

	fmt.Printf("\nrun %s (%s): %d seen, %d matched, %d selected\n",
		sum.Run, sum.Mode, sum.Seen, sum.Matched, sum.Selected)

	switch {
	case sum.Dispatched && sum.NotifyErr != "":
		fmt.Printf("push failed: %s\n", sum.NotifyErr)
	case sum.Dispatched:
		fmt.Println("digest pushed")
	case sum.Selected > 0:
		fmt.Println("no notifiers configured, nothing pushed")
	default:
		fmt.Println("nothing to push")
	}

	if sum.Selected > 0 {
		fmt.Println()
		fmt.Println(notify.Plain(d))
	}
}

func runWatch(listen string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	deps, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := app.New(deps)

	var srv *server.Server
	if cfg.Server.Listen != "" {
		srv = server.New(cfg.Server.Listen, deps.Archive, deps.Log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				deps.Log.Error("status server failed", "err", err)
			}
		}()
	}

	sched := scheduler.New(cfg.Schedule.ParseInterval(), deps.Log, func(ctx context.Context) {
		sum, d := runner.Run(ctx)
		if srv != nil {
			srv.SetResult(sum, d)
		}
	})

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runDigest(modeStr string, jsonMode bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mode, err := digest.ParseMode(modeStr)
	if err != nil {
		return err
	}

	rules, err := rule.NewSet(cfg.RuleGroups())
	if err != nil {
		return fmt.Errorf("compile rules: %w", err)
	}

	st, err := state.NewStore(cfg.State.Path, cfg.State.Retention()).Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	// Replay the latest recorded run so current and incremental previews
	// show exactly what that poll produced.
	runID := "preview"
	if len(st.Runs) > 0 {
		runID = st.Runs[len(st.Runs)-1]
	}
	items := itemsFromRun(st, runID)
	matches := make(map[string][]string)
	for _, it := range items {
		if groups := rules.Match(it.Title); len(groups) > 0 {
			matches[it.Key] = groups
		}
	}

	loc := cfg.Location()
	now := time.Now().In(loc)
	opts := digest.Options{
		Mode:          mode,
		RankThreshold: cfg.RankThreshold,
		PeriodStart:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc),
		Matcher:       rules.Match,
		Priority:      cfg.PlatformIDs(),
		Names:         cfg.PlatformNames(),
	}

	entries := digest.Select(items, matches, st, runID, opts)

	platforms := make(map[string]bool)
	for _, e := range entries {
		platforms[e.Platform] = true
	}
	stats := digest.Stats{
		PlatformsPolled: len(platforms),
		ItemsSeen:       len(items),
		ItemsMatched:    len(matches),
		Selected:        len(entries),
	}

	d := digest.Build(runID, entries, stats, opts)

	if jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Println(notify.Title(d))
	fmt.Println()
	fmt.Println(notify.Markdown(d))
	return nil
}

// itemsFromRun reconstructs the items a past run observed, using each
// record's observation for that run.
func itemsFromRun(st *state.State, run string) []feed.Item {
	var items []feed.Item
	for _, rec := range st.Records {
		for i := len(rec.Observations) - 1; i >= 0; i-- {
			if rec.Observations[i].Run != run {
				continue
			}
			items = append(items, feed.Item{
				Key:        rec.Key,
				Platform:   rec.Platform,
				Title:      rec.Title,
				URL:        rec.URL,
				Rank:       rec.Observations[i].Rank,
				ObservedAt: rec.Observations[i].At,
			})
			break
		}
	}
	return items
}

func runHistory(days int, jsonMode bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Archive.Path == "" {
		return fmt.Errorf("archive disabled, set archive.path to enable run history")
	}

	arch, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer arch.Close()

	since := time.Now().UTC().AddDate(0, 0, -days)
	rep, err := arch.Stats(context.Background(), since)
	if err != nil {
		return fmt.Errorf("archive stats: %w", err)
	}

	if jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("last %d days: %d runs (%d pushed), %d items, %d stories, %d digest entries\n",
		days, rep.Runs, rep.Dispatched, rep.Items, rep.Stories, rep.Pushed)

	if len(rep.ByPlatform) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tITEMS\tSTORIES\tBEST RANK")
		for _, p := range rep.ByPlatform {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", p.Platform, p.Items, p.Stories, p.BestRank)
		}
		w.Flush()
	}

	if len(rep.TopStories) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEEN\tBEST\tTITLE")
		for _, s := range rep.TopStories {
			fmt.Fprintf(w, "%d\t%d\t%s\n", s.Appearances, s.BestRank, s.Title)
		}
		w.Flush()
	}

	if len(rep.RecentRuns) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tMODE\tSTARTED\tITEMS\tSELECTED\tPUSHED")
		for _, r := range rep.RecentRuns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%v\n",
				r.ID, r.Mode, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Items, r.Selected, r.Dispatched)
		}
		w.Flush()
	}

	return nil
}
