package digest

import (
	"sort"
	"time"
)

// Stats summarizes a run so partial failure is always distinguishable from
// full success in the rendered digest.
type Stats struct {
	PlatformsPolled int  `json:"platforms_polled"`
	PlatformsFailed int  `json:"platforms_failed"`
	ItemsSeen       int  `json:"items_seen"`
	ItemsMatched    int  `json:"items_matched"`
	Selected        int  `json:"selected"`
	Duplicates      int  `json:"duplicates"`
	CrossPlatform   int  `json:"cross_platform"`
	HistoryReset    bool `json:"history_reset,omitempty"`
}

// Section groups the entries of one platform.
type Section struct {
	Platform string  `json:"platform"`
	Name     string  `json:"name"`
	Entries  []Entry `json:"entries"`
}

// Digest is the assembled report for one run.
type Digest struct {
	Run         string    `json:"run"`
	Mode        Mode      `json:"mode"`
	GeneratedAt time.Time `json:"generated_at"`
	Overview    string    `json:"overview,omitempty"`
	Sections    []Section `json:"sections"`
	Stats       Stats     `json:"stats"`
}

// Entries returns all entries across sections in display order.
func (d *Digest) Entries() []Entry {
	var all []Entry
	for _, s := range d.Sections {
		all = append(all, s.Entries...)
	}
	return all
}

// Build assembles selected entries into a platform-ordered digest.
// Platforms listed in opts.Priority come first in that order; the rest
// follow by first appearance. Entries within a platform sort by rank
// ascending, ties broken by title.
func Build(run string, entries []Entry, stats Stats, opts Options) *Digest {
	byPlatform := make(map[string][]Entry)
	var order []string
	listed := make(map[string]bool)

	for _, p := range opts.Priority {
		listed[p] = true
	}
	for _, e := range entries {
		if _, ok := byPlatform[e.Platform]; !ok && !listed[e.Platform] {
			order = append(order, e.Platform)
		}
		byPlatform[e.Platform] = append(byPlatform[e.Platform], e)
	}

	d := &Digest{
		Run:         run,
		Mode:        opts.Mode,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
	}

	appendSection := func(platform string) {
		list := byPlatform[platform]
		if len(list) == 0 {
			return
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Rank != list[j].Rank {
				return list[i].Rank < list[j].Rank
			}
			return list[i].Title < list[j].Title
		})
		name := opts.Names[platform]
		if name == "" {
			name = platform
		}
		d.Sections = append(d.Sections, Section{Platform: platform, Name: name, Entries: list})
	}

	for _, p := range opts.Priority {
		appendSection(p)
	}
	for _, p := range order {
		appendSection(p)
	}

	return d
}
