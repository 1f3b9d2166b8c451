package digest

import (
	"testing"
	"time"

	"github.com/tidegraph/trendwatch/internal/state"
	"github.com/tidegraph/trendwatch/pkg/feed"
)

func item(platform, title string, rank int) feed.Item {
	return feed.Item{
		Key:      feed.Key(platform, title),
		Platform: platform,
		Title:    title,
		URL:      "https://example.com",
		Rank:     rank,
	}
}

func matchAll(items []feed.Item) map[string][]string {
	m := make(map[string][]string)
	for _, it := range items {
		m[it.Key] = []string{"all"}
	}
	return m
}

// observe records the items for a run, honoring the contract that selection
// only happens after the current run has been observed.
func observe(st *state.State, run string, at time.Time, items ...feed.Item) {
	for _, it := range items {
		st.Observe(run, it, at)
	}
}

func TestSelectIncrementalThreshold(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	opts := Options{Mode: ModeIncremental, RankThreshold: 3}

	tests := []struct {
		name     string
		prevRank int
		curRank  int
		want     bool
		delta    int
	}{
		{"climb beyond threshold", 10, 6, true, 4},
		{"climb within threshold", 10, 8, false, 0},
		{"unchanged rank", 5, 5, false, 0},
		{"drop beyond threshold", 2, 9, true, -7},
		{"exactly threshold", 10, 7, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.New()
			prev := item("weibo", "Story", tt.prevRank)
			observe(st, "run-1", base, prev)

			cur := item("weibo", "Story", tt.curRank)
			observe(st, "run-2", base.Add(time.Hour), cur)

			items := []feed.Item{cur}
			entries := Select(items, matchAll(items), st, "run-2", opts)

			if tt.want {
				if len(entries) != 1 {
					t.Fatalf("Select() = %d entries, want 1", len(entries))
				}
				if entries[0].Delta == nil || *entries[0].Delta != tt.delta {
					t.Errorf("delta = %v, want %d", entries[0].Delta, tt.delta)
				}
				if entries[0].New {
					t.Error("entry marked new despite history")
				}
			} else if len(entries) != 0 {
				t.Fatalf("Select() = %+v, want suppressed", entries)
			}
		})
	}
}

func TestSelectIncrementalNewKey(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	st := state.New()

	it := item("weibo", "Brand new", 40)
	observe(st, "run-1", base, it)

	items := []feed.Item{it}
	entries := Select(items, matchAll(items), st, "run-1", Options{Mode: ModeIncremental, RankThreshold: 3})
	if len(entries) != 1 {
		t.Fatalf("Select() = %d entries, want 1", len(entries))
	}
	if !entries[0].New {
		t.Error("first sighting not marked new")
	}
	if entries[0].Delta != nil {
		t.Errorf("delta = %v, want nil for new story", *entries[0].Delta)
	}
}

func TestSelectIncrementalUnmatchedExcluded(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	st := state.New()
	it := item("weibo", "Unmatched", 1)
	observe(st, "run-1", base, it)

	entries := Select([]feed.Item{it}, map[string][]string{}, st, "run-1", Options{Mode: ModeIncremental})
	if len(entries) != 0 {
		t.Fatalf("Select() = %+v, want none for unmatched item", entries)
	}
}

func TestSelectCurrent(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	st := state.New()

	old := item("weibo", "Veteran", 9)
	observe(st, "run-1", base, old)

	cur := item("weibo", "Veteran", 8)
	fresh := item("weibo", "Newcomer", 1)
	observe(st, "run-2", base.Add(time.Hour), cur, fresh)

	items := []feed.Item{fresh, cur}
	entries := Select(items, matchAll(items), st, "run-2", Options{Mode: ModeCurrent})
	if len(entries) != 2 {
		t.Fatalf("Select() = %d entries, want 2", len(entries))
	}

	// Small moves are kept in current mode; the delta is informational.
	if entries[1].Delta == nil || *entries[1].Delta != 1 {
		t.Errorf("veteran delta = %v, want 1", entries[1].Delta)
	}
	if !entries[0].New {
		t.Error("newcomer not marked new")
	}
}

func TestSelectDailyBestRank(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := state.New()

	// The same story ranked 5, then 2, then 8 over the day's runs.
	observe(st, "run-1", day.Add(8*time.Hour), item("weibo", "Big story", 5))
	observe(st, "run-2", day.Add(10*time.Hour), item("weibo", "Big story", 2))
	cur := item("weibo", "Big story", 8)
	observe(st, "run-3", day.Add(12*time.Hour), cur)

	// A story from an earlier run that has dropped off the current list.
	observe(st, "run-1", day.Add(8*time.Hour), item("weibo", "Morning story", 10))

	// A story from yesterday only.
	observe(st, "run-0", day.Add(-2*time.Hour), item("weibo", "Yesterday", 1))

	items := []feed.Item{cur}
	opts := Options{
		Mode:        ModeDaily,
		PeriodStart: day,
		Matcher:     func(string) []string { return []string{"all"} },
	}
	entries := Select(items, matchAll(items), st, "run-3", opts)

	if len(entries) != 2 {
		t.Fatalf("Select() = %d entries, want 2", len(entries))
	}
	byTitle := make(map[string]Entry)
	for _, e := range entries {
		byTitle[e.Title] = e
	}
	if e := byTitle["Big story"]; e.Rank != 2 {
		t.Errorf("big story rank = %d, want best rank 2", e.Rank)
	}
	if _, ok := byTitle["Morning story"]; !ok {
		t.Error("story from an earlier run today missing from daily digest")
	}
	if _, ok := byTitle["Yesterday"]; ok {
		t.Error("yesterday's story leaked into today's digest")
	}
}

func TestSelectDailyRespectsRules(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := state.New()
	observe(st, "run-1", day.Add(time.Hour),
		item("weibo", "AI story", 1), item("weibo", "Sports story", 2))

	opts := Options{
		Mode:        ModeDaily,
		PeriodStart: day,
		Matcher: func(title string) []string {
			if title == "AI story" {
				return []string{"ai"}
			}
			return nil
		},
	}
	entries := Select(nil, nil, st, "run-1", opts)
	if len(entries) != 1 || entries[0].Title != "AI story" {
		t.Fatalf("Select() = %+v, want only the AI story", entries)
	}
	if got := entries[0].Groups; len(got) != 1 || got[0] != "ai" {
		t.Errorf("groups = %v, want [ai]", got)
	}
}

func TestSelectNoDuplicateKeys(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := state.New()

	it := item("weibo", "Story", 4)
	observe(st, "run-1", day.Add(time.Hour), it)
	observe(st, "run-2", day.Add(2*time.Hour), it)

	for _, mode := range []Mode{ModeDaily, ModeCurrent, ModeIncremental} {
		opts := Options{
			Mode:          mode,
			RankThreshold: 0,
			PeriodStart:   day,
			Matcher:       func(string) []string { return []string{"all"} },
		}
		items := []feed.Item{it}
		entries := Select(items, matchAll(items), st, "run-2", opts)

		seen := make(map[string]bool)
		for _, e := range entries {
			if seen[e.Key] {
				t.Errorf("mode %s: duplicate key %s in digest", mode, e.Key)
			}
			seen[e.Key] = true
		}
	}
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"daily", "current", "incremental"} {
		if _, err := ParseMode(valid); err != nil {
			t.Errorf("ParseMode(%q) error = %v", valid, err)
		}
	}
	if _, err := ParseMode("summary"); err == nil {
		t.Error("ParseMode(summary) error = nil, want error")
	}
}
