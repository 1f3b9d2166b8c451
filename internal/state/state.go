package state

import (
	"time"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

// Observation is one sighting of a story during a specific run.
type Observation struct {
	Run  string    `json:"run"`
	Rank int       `json:"rank"`
	At   time.Time `json:"at"`
}

// Record tracks a single story across runs. FirstSeen and FirstRun are set
// once when the record is created and never change; observations are
// appended in run order.
type Record struct {
	Key          string        `json:"key"`
	Platform     string        `json:"platform"`
	Title        string        `json:"title"`
	URL          string        `json:"url"`
	FirstSeen    time.Time     `json:"first_seen"`
	FirstRun     string        `json:"first_run"`
	LastSeen     time.Time     `json:"last_seen"`
	Observations []Observation `json:"observations"`
}

// State is the cross-run story history. Runs holds the distinct run IDs
// that contributed observations, oldest first.
type State struct {
	Records   map[string]*Record `json:"records"`
	Runs      []string           `json:"runs,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// New returns an empty state.
func New() *State {
	return &State{Records: make(map[string]*Record)}
}

// Observe records a sighting of the item, creating its record on first
// sight. Recording happens every run regardless of the active report mode.
func (s *State) Observe(run string, item feed.Item, at time.Time) {
	if s.Records == nil {
		s.Records = make(map[string]*Record)
	}

	rec, ok := s.Records[item.Key]
	if !ok {
		rec = &Record{
			Key:       item.Key,
			Platform:  item.Platform,
			Title:     item.Title,
			URL:       item.URL,
			FirstSeen: at,
			FirstRun:  run,
		}
		s.Records[item.Key] = rec
	}
	if item.URL != "" {
		rec.URL = item.URL
	}
	rec.LastSeen = at
	rec.Observations = append(rec.Observations, Observation{Run: run, Rank: item.Rank, At: at})

	if n := len(s.Runs); n == 0 || s.Runs[n-1] != run {
		s.Runs = append(s.Runs, run)
	}
	s.UpdatedAt = at
}

// PrevRank returns the most recent rank recorded in a run other than the
// given one, or false when the story has no earlier history.
func (r *Record) PrevRank(run string) (int, bool) {
	for i := len(r.Observations) - 1; i >= 0; i-- {
		if r.Observations[i].Run != run {
			return r.Observations[i].Rank, true
		}
	}
	return 0, false
}

// BestRankSince returns the best (lowest) rank among observations at or
// after t, or false when none fall in the window.
func (r *Record) BestRankSince(t time.Time) (int, bool) {
	best := 0
	found := false
	for _, o := range r.Observations {
		if o.At.Before(t) {
			continue
		}
		if !found || o.Rank < best {
			best = o.Rank
			found = true
		}
	}
	return best, found
}
