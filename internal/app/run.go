package app

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tidegraph/trendwatch/internal/archive"
	"github.com/tidegraph/trendwatch/internal/config"
	"github.com/tidegraph/trendwatch/internal/state"
	"github.com/tidegraph/trendwatch/pkg/digest"
	"github.com/tidegraph/trendwatch/pkg/feed"
	"github.com/tidegraph/trendwatch/pkg/notify"
	"github.com/tidegraph/trendwatch/pkg/rule"
	"github.com/tidegraph/trendwatch/pkg/source"
)

// Enhancer produces an overview paragraph for a digest.
type Enhancer interface {
	Overview(ctx context.Context, d *digest.Digest) (string, error)
}

// Deps carries everything a Runner needs.
type Deps struct {
	Config    *config.Config
	Log       *slog.Logger
	Providers []source.Provider
	Rules     *rule.Set
	Store     *state.Store
	Archive   *archive.Archive // nil disables run history
	Notify    *notify.Manager
	Enhancer  Enhancer // nil disables the overview
}

// PlatformResult is the fetch outcome for one platform.
type PlatformResult struct {
	ID    string `json:"id"`
	Items int    `json:"items"`
	Err   string `json:"err,omitempty"`
}

// Summary is the outcome of one polling run.
type Summary struct {
	Run          string           `json:"run"`
	Mode         digest.Mode      `json:"mode"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	Platforms    []PlatformResult `json:"platforms"`
	Seen         int              `json:"seen"`
	Matched      int              `json:"matched"`
	Selected     int              `json:"selected"`
	Duplicates   int              `json:"duplicates"`
	StateReset   bool             `json:"state_reset,omitempty"`
	Dispatched   bool             `json:"dispatched"`
	NotifyErr    string           `json:"notify_err,omitempty"`
	ArchiveErr   string           `json:"archive_err,omitempty"`
	StateSaveErr string           `json:"state_save_err,omitempty"`
}

// Err returns the error that should fail a one-shot run. Only a state
// save failure qualifies; platform, notify and archive failures are
// recorded in the summary instead.
func (s *Summary) Err() error {
	if s.StateSaveErr != "" {
		return errors.New(s.StateSaveErr)
	}
	return nil
}

// Runner executes the poll, match, select, push pipeline.
type Runner struct {
	deps     Deps
	mode     digest.Mode
	loc      *time.Location
	names    map[string]string
	priority []string
	entropy  io.Reader
}

// New creates a Runner from validated dependencies.
func New(deps Deps) *Runner {
	mode, _ := digest.ParseMode(deps.Config.Mode)

	return &Runner{
		deps:     deps,
		mode:     mode,
		loc:      deps.Config.Location(),
		names:    deps.Config.PlatformNames(),
		priority: deps.Config.PlatformIDs(),
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// Run executes one full pipeline pass. It never aborts midway: failures
// are recorded in the summary and the remaining stages still run.
func (r *Runner) Run(ctx context.Context) (*Summary, *digest.Digest) {
	started := time.Now()
	runID := ulid.MustNew(ulid.Now(), r.entropy).String()
	log := r.deps.Log.With("run", runID)

	sum := &Summary{Run: runID, Mode: r.mode, StartedAt: started}

	feeds := make([]feed.PlatformFeed, 0, len(r.deps.Providers))
	raw := 0
	for _, p := range r.deps.Providers {
		items, err := p.Fetch(ctx)
		res := PlatformResult{ID: p.Platform(), Items: len(items)}
		if err != nil {
			res.Err = err.Error()
			log.Warn("fetch failed", "platform", p.Platform(), "err", err)
		}
		sum.Platforms = append(sum.Platforms, res)
		feeds = append(feeds, feed.PlatformFeed{Platform: p.Platform(), Items: items, Err: err})
		raw += len(items)
	}

	items, _ := feed.Normalize(feeds)
	sum.Seen = raw
	sum.Duplicates = raw - len(items)

	st, err := r.deps.Store.Load()
	if err != nil {
		sum.StateReset = true
		log.Warn("starting with reset history", "err", err)
	}

	// Every sighting is recorded, matched or not, so rank deltas work
	// for stories that only later match a rule.
	for _, it := range items {
		st.Observe(runID, it, it.ObservedAt)
	}

	matches := make(map[string][]string)
	for _, it := range items {
		if groups := r.deps.Rules.Match(it.Title); len(groups) > 0 {
			matches[it.Key] = groups
		}
	}
	sum.Matched = len(matches)

	opts := digest.Options{
		Mode:          r.mode,
		RankThreshold: r.deps.Config.RankThreshold,
		PeriodStart:   dayStart(started, r.loc),
		Matcher:       r.deps.Rules.Match,
		Priority:      r.priority,
		Names:         r.names,
	}
	entries := digest.Select(items, matches, st, runID, opts)
	sum.Selected = len(entries)

	stats := digest.Stats{
		PlatformsPolled: len(r.deps.Providers),
		PlatformsFailed: countFailed(sum.Platforms),
		ItemsSeen:       sum.Seen,
		ItemsMatched:    sum.Matched,
		Selected:        len(entries),
		Duplicates:      sum.Duplicates,
		CrossPlatform:   feed.CrossPlatformCount(items),
		HistoryReset:    sum.StateReset,
	}
	d := digest.Build(runID, entries, stats, opts)

	if r.deps.Enhancer != nil && len(entries) > 0 {
		overview, err := r.deps.Enhancer.Overview(ctx, d)
		if err != nil {
			log.Warn("overview failed", "err", err)
		} else {
			d.Overview = overview
		}
	}

	if r.deps.Notify != nil && len(entries) > 0 && r.deps.Notify.HasNotifiers() {
		sum.Dispatched = true
		if err := r.deps.Notify.Broadcast(ctx, d); err != nil {
			sum.NotifyErr = err.Error()
			log.Error("push failed", "err", err)
		} else {
			log.Info("digest pushed", "channels", r.deps.Notify.Names(), "entries", len(entries))
		}
	}

	if r.deps.Archive != nil {
		if err := r.recordRun(ctx, sum, items, d); err != nil {
			sum.ArchiveErr = err.Error()
			log.Warn("archive failed", "err", err)
		}
	}

	if err := r.deps.Store.Save(st); err != nil {
		sum.StateSaveErr = err.Error()
		log.Error("save state failed", "err", err)
	}

	sum.FinishedAt = time.Now()
	log.Info("run finished",
		"mode", r.mode,
		"platforms", len(r.deps.Providers),
		"failed", stats.PlatformsFailed,
		"seen", sum.Seen,
		"matched", sum.Matched,
		"selected", sum.Selected,
		"dispatched", sum.Dispatched,
		"took", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond),
	)
	return sum, d
}

func (r *Runner) recordRun(ctx context.Context, sum *Summary, items []feed.Item, d *digest.Digest) error {
	run := &archive.Run{
		ID:         sum.Run,
		Mode:       string(r.mode),
		StartedAt:  sum.StartedAt,
		FinishedAt: time.Now(),
		Platforms:  len(sum.Platforms),
		Failed:     countFailed(sum.Platforms),
		Items:      sum.Seen,
		Matched:    sum.Matched,
		Selected:   sum.Selected,
		Dispatched: sum.Dispatched,
	}
	if err := r.deps.Archive.RecordRun(ctx, run); err != nil {
		return err
	}

	day := sum.StartedAt.In(r.loc).Format("2006-01-02")
	if err := r.deps.Archive.RecordObservations(ctx, sum.Run, day, items); err != nil {
		return err
	}
	if sum.Dispatched {
		if err := r.deps.Archive.RecordDigest(ctx, d); err != nil {
			return err
		}
	}

	if keep := r.deps.Config.Archive.KeepDays; keep > 0 {
		cutoff := time.Now().AddDate(0, 0, -keep)
		if _, err := r.deps.Archive.PurgeOlderThan(ctx, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func countFailed(results []PlatformResult) int {
	n := 0
	for _, res := range results {
		if res.Err != "" {
			n++
		}
	}
	return n
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
