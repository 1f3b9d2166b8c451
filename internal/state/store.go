package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt marks a state file that could not be parsed. The broken file
// is preserved next to the original for diagnosis.
var ErrCorrupt = errors.New("state file corrupt")

// Retention bounds how much history Save keeps.
type Retention struct {
	MaxAge  time.Duration
	MaxRuns int
}

// Store persists State as a JSON document, replaced atomically on save.
type Store struct {
	path      string
	retention Retention
}

// NewStore creates a store writing to path.
func NewStore(path string, retention Retention) *Store {
	return &Store{path: path, retention: retention}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty state. A file
// that fails to parse is moved aside to <path>.broken-<timestamp> and an
// empty state is returned together with an error wrapping ErrCorrupt, so
// callers can proceed with reset history.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return New(), fmt.Errorf("read state %s: %w", s.path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		broken := fmt.Sprintf("%s.broken-%s", s.path, time.Now().UTC().Format("20060102T150405"))
		_ = os.Rename(s.path, broken)
		return New(), fmt.Errorf("parse state %s (moved to %s): %w", s.path, filepath.Base(broken), errors.Join(ErrCorrupt, err))
	}
	if st.Records == nil {
		st.Records = make(map[string]*Record)
	}
	return &st, nil
}

// Save prunes the state per the configured retention and writes it through
// a temp file rename, so a crash mid-write never corrupts the previous
// file. A failed save leaves the prior state intact on disk.
func (s *Store) Save(st *State) error {
	s.prune(st, time.Now().UTC())

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *Store) prune(st *State, now time.Time) {
	if s.retention.MaxAge > 0 {
		cutoff := now.Add(-s.retention.MaxAge)
		for key, rec := range st.Records {
			if rec.LastSeen.Before(cutoff) {
				delete(st.Records, key)
				continue
			}
			rec.Observations = trimOld(rec.Observations, cutoff)
		}
	}

	if s.retention.MaxRuns > 0 && len(st.Runs) > s.retention.MaxRuns {
		st.Runs = st.Runs[len(st.Runs)-s.retention.MaxRuns:]
		kept := make(map[string]bool, len(st.Runs))
		for _, run := range st.Runs {
			kept[run] = true
		}
		for key, rec := range st.Records {
			obs := rec.Observations[:0]
			for _, o := range rec.Observations {
				if kept[o.Run] {
					obs = append(obs, o)
				}
			}
			if len(obs) == 0 {
				delete(st.Records, key)
				continue
			}
			rec.Observations = obs
		}
	}
}

// trimOld drops observations before cutoff but always keeps the latest one,
// so a surviving record never loses its most recent rank.
func trimOld(obs []Observation, cutoff time.Time) []Observation {
	if len(obs) <= 1 {
		return obs
	}
	kept := obs[:0]
	for i, o := range obs {
		if i == len(obs)-1 || !o.At.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	return kept
}
