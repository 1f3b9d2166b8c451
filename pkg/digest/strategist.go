package digest

import (
	"fmt"
	"sort"
	"time"

	"github.com/tidegraph/trendwatch/internal/state"
	"github.com/tidegraph/trendwatch/pkg/feed"
)

// Mode selects which matched stories a run reports.
type Mode string

const (
	// ModeDaily reports every matched story observed during the current
	// reporting day, including stories present only in earlier runs.
	ModeDaily Mode = "daily"
	// ModeCurrent reports the matched stories on the lists right now.
	ModeCurrent Mode = "current"
	// ModeIncremental reports only new stories and stories whose rank moved
	// by more than the configured threshold since the previous run.
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a mode name from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDaily, ModeCurrent, ModeIncremental:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown report mode %q (want daily, current, or incremental)", s)
}

// Options control selection and digest assembly.
type Options struct {
	Mode          Mode
	RankThreshold int
	// PeriodStart is the beginning of the reporting day; only daily mode
	// consults it.
	PeriodStart time.Time
	// Matcher evaluates stored titles when daily mode synthesizes entries
	// from history records absent from the current run.
	Matcher func(title string) []string
	// Priority lists platform IDs in display order; platforms not listed
	// follow in order of first appearance.
	Priority []string
	// Names maps platform IDs to display names.
	Names map[string]string
}

// Entry is one story selected for the digest.
type Entry struct {
	Key       string   `json:"key"`
	Platform  string   `json:"platform"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	MobileURL string   `json:"mobile_url,omitempty"`
	Rank      int      `json:"rank"`
	Delta     *int     `json:"delta,omitempty"`
	New       bool     `json:"new,omitempty"`
	Groups    []string `json:"groups,omitempty"`
}

// Select picks the entries the active mode wants. It reads state but never
// mutates it; observations for the current run must already be recorded.
// matches maps item keys to the rule groups they matched. The result never
// contains one key twice.
func Select(items []feed.Item, matches map[string][]string, st *state.State, run string, opts Options) []Entry {
	switch opts.Mode {
	case ModeDaily:
		return selectDaily(st, opts)
	case ModeIncremental:
		return selectIncremental(items, matches, st, run, opts)
	default:
		return selectCurrent(items, matches, st, run)
	}
}

// selectCurrent keeps every matched item on the current lists. Rank deltas
// against prior history are attached when available, purely informational.
func selectCurrent(items []feed.Item, matches map[string][]string, st *state.State, run string) []Entry {
	var entries []Entry
	for _, it := range items {
		groups := matches[it.Key]
		if len(groups) == 0 {
			continue
		}
		e := entryFor(it, groups)
		if rec := st.Records[it.Key]; rec != nil {
			if prev, ok := rec.PrevRank(run); ok {
				d := prev - it.Rank
				e.Delta = &d
			} else {
				e.New = true
			}
		} else {
			e.New = true
		}
		entries = append(entries, e)
	}
	return entries
}

// selectIncremental keeps matched items that are new this run or whose rank
// moved by more than the threshold since the previous observation. A
// positive delta means the story climbed.
func selectIncremental(items []feed.Item, matches map[string][]string, st *state.State, run string, opts Options) []Entry {
	var entries []Entry
	for _, it := range items {
		groups := matches[it.Key]
		if len(groups) == 0 {
			continue
		}

		var prev int
		var hasPrev bool
		if rec := st.Records[it.Key]; rec != nil {
			prev, hasPrev = rec.PrevRank(run)
		}

		e := entryFor(it, groups)
		if hasPrev {
			d := prev - it.Rank
			if abs(d) <= opts.RankThreshold {
				continue
			}
			e.Delta = &d
		} else {
			e.New = true
		}
		entries = append(entries, e)
	}
	return entries
}

// selectDaily reports every story observed since the period start whose
// title matches, at the best rank it reached in the window. Since the
// current run was observed before selection, this covers both live items
// and stories that already dropped off the lists today.
func selectDaily(st *state.State, opts Options) []Entry {
	if opts.Matcher == nil {
		return nil
	}

	var entries []Entry
	for _, rec := range st.Records {
		best, seen := rec.BestRankSince(opts.PeriodStart)
		if !seen {
			continue
		}
		groups := opts.Matcher(rec.Title)
		if len(groups) == 0 {
			continue
		}
		entries = append(entries, Entry{
			Key:      rec.Key,
			Platform: rec.Platform,
			Title:    rec.Title,
			URL:      rec.URL,
			Rank:     best,
			New:      !rec.FirstSeen.Before(opts.PeriodStart),
			Groups:   groups,
		})
	}

	// Records come out of a map; order them for deterministic output.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Platform != entries[j].Platform {
			return entries[i].Platform < entries[j].Platform
		}
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].Title < entries[j].Title
	})
	return entries
}

func entryFor(it feed.Item, groups []string) Entry {
	return Entry{
		Key:       it.Key,
		Platform:  it.Platform,
		Title:     it.Title,
		URL:       it.URL,
		MobileURL: it.MobileURL,
		Rank:      it.Rank,
		Groups:    groups,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
