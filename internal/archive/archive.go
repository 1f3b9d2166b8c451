package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tidegraph/trendwatch/pkg/digest"
	"github.com/tidegraph/trendwatch/pkg/feed"
)

// Run is the archived outcome of one polling run.
type Run struct {
	ID         string    `db:"id" json:"id"`
	Mode       string    `db:"mode" json:"mode"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
	Platforms  int       `db:"platforms" json:"platforms"`
	Failed     int       `db:"failed" json:"failed"`
	Items      int       `db:"items" json:"items"`
	Matched    int       `db:"matched" json:"matched"`
	Selected   int       `db:"selected" json:"selected"`
	Dispatched bool      `db:"dispatched" json:"dispatched"`
}

// PlatformStat aggregates archived observations for one platform.
type PlatformStat struct {
	Platform string `db:"platform" json:"platform"`
	Items    int    `db:"items" json:"items"`
	Stories  int    `db:"stories" json:"stories"`
	BestRank int    `db:"best_rank" json:"best_rank"`
}

// DayStat aggregates archived observations for one calendar day.
type DayStat struct {
	Day     string `db:"day" json:"day"`
	Items   int    `db:"items" json:"items"`
	Stories int    `db:"stories" json:"stories"`
}

// StoryStat describes how often one story was observed.
type StoryStat struct {
	Key         string `db:"key" json:"key"`
	Platform    string `db:"platform" json:"platform"`
	Title       string `db:"title" json:"title"`
	Appearances int    `db:"appearances" json:"appearances"`
	BestRank    int    `db:"best_rank" json:"best_rank"`
}

// Report is the aggregate view over the archive since a point in time.
type Report struct {
	Since      time.Time      `json:"since"`
	Runs       int            `json:"runs"`
	Dispatched int            `json:"dispatched"`
	Items      int            `json:"items"`
	Stories    int            `json:"stories"`
	Pushed     int            `json:"pushed"`
	ByPlatform []PlatformStat `json:"by_platform"`
	ByDay      []DayStat      `json:"by_day"`
	TopStories []StoryStat    `json:"top_stories"`
	RecentRuns []Run          `json:"recent_runs"`
}

// Archive persists run history in SQLite.
type Archive struct {
	db *sqlx.DB
}

// Open opens the archive database and runs migrations.
func Open(path string) (*Archive, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// RecordRun stores the outcome of one run.
func (a *Archive) RecordRun(ctx context.Context, r *Run) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, started_at, finished_at, platforms, failed, items, matched, selected, dispatched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Mode, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Platforms, r.Failed, r.Items, r.Matched, r.Selected, r.Dispatched)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// RecordObservations stores every item seen during a run. The day string
// carries the run's calendar day in the configured timezone so daily
// aggregates do not depend on how the driver encodes timestamps.
func (a *Archive) RecordObservations(ctx context.Context, runID, day string, items []feed.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin observations tx: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO observations (run_id, key, platform, title, url, rank, day, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, it.Key, it.Platform, it.Title, it.URL, it.Rank, day, it.ObservedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert observation %s: %w", it.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	return nil
}

// RecordDigest stores the entries that made it into a pushed digest.
func (a *Archive) RecordDigest(ctx context.Context, d *digest.Digest) error {
	entries := d.Entries()
	if len(entries) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin digest tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		groupsJSON, _ := json.Marshal(e.Groups)
		var delta any
		if e.Delta != nil {
			delta = *e.Delta
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO digest_entries (run_id, key, platform, title, url, rank, delta, is_new, rule_groups, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.Run, e.Key, e.Platform, e.Title, e.URL, e.Rank, delta, e.New,
			string(groupsJSON), d.GeneratedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert digest entry %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit digest entries: %w", err)
	}
	return nil
}

// Stats builds the aggregate report for everything archived since the
// given time.
func (a *Archive) Stats(ctx context.Context, since time.Time) (*Report, error) {
	rep := &Report{Since: since}

	query, args, err := sq.Select("COUNT(*) AS runs", "COALESCE(SUM(dispatched), 0) AS dispatched").
		From("runs").
		Where(sq.GtOrEq{"started_at": since.UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}
	var runTotals struct {
		Runs       int `db:"runs"`
		Dispatched int `db:"dispatched"`
	}
	if err := a.db.GetContext(ctx, &runTotals, query, args...); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	rep.Runs = runTotals.Runs
	rep.Dispatched = runTotals.Dispatched

	obsSince := sq.GtOrEq{"observed_at": since.UTC()}

	query, args, err = sq.Select("COUNT(*) AS items", "COUNT(DISTINCT key) AS stories").
		From("observations").
		Where(obsSince).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build observations query: %w", err)
	}
	var obsTotals struct {
		Items   int `db:"items"`
		Stories int `db:"stories"`
	}
	if err := a.db.GetContext(ctx, &obsTotals, query, args...); err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	rep.Items = obsTotals.Items
	rep.Stories = obsTotals.Stories

	query, args, err = sq.Select("COUNT(*) AS pushed").
		From("digest_entries").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digest entries query: %w", err)
	}
	if err := a.db.GetContext(ctx, &rep.Pushed, query, args...); err != nil {
		return nil, fmt.Errorf("count digest entries: %w", err)
	}

	query, args, err = sq.Select("platform", "COUNT(*) AS items", "COUNT(DISTINCT key) AS stories", "MIN(rank) AS best_rank").
		From("observations").
		Where(obsSince).
		GroupBy("platform").
		OrderBy("items DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build platform query: %w", err)
	}
	if err := a.db.SelectContext(ctx, &rep.ByPlatform, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate by platform: %w", err)
	}

	query, args, err = sq.Select("day", "COUNT(*) AS items", "COUNT(DISTINCT key) AS stories").
		From("observations").
		Where(obsSince).
		GroupBy("day").
		OrderBy("day").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build day query: %w", err)
	}
	if err := a.db.SelectContext(ctx, &rep.ByDay, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate by day: %w", err)
	}

	query, args, err = sq.Select("key", "platform", "title", "COUNT(*) AS appearances", "MIN(rank) AS best_rank").
		From("observations").
		Where(obsSince).
		GroupBy("key").
		OrderBy("appearances DESC", "best_rank").
		Limit(10).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top stories query: %w", err)
	}
	if err := a.db.SelectContext(ctx, &rep.TopStories, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate top stories: %w", err)
	}

	query, args, err = sq.Select("*").
		From("runs").
		Where(sq.GtOrEq{"started_at": since.UTC()}).
		OrderBy("started_at DESC").
		Limit(10).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent runs query: %w", err)
	}
	if err := a.db.SelectContext(ctx, &rep.RecentRuns, query, args...); err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}

	return rep, nil
}

// PurgeOlderThan deletes runs that started before the cutoff, along with
// their observations and digest entries. It returns the number of runs
// removed.
func (a *Archive) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM observations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
		cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("purge observations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM digest_entries WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
		cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("purge digest entries: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return removed, nil
}
