package feed

import (
	"strings"
	"time"
)

// RawItem is one entry of a platform's trending list as fetched, before
// identity normalization. Rank is the 1-based position in the list.
type RawItem struct {
	Platform   string    `json:"platform"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	MobileURL  string    `json:"mobile_url,omitempty"`
	Rank       int       `json:"rank"`
	ObservedAt time.Time `json:"observed_at"`
}

// PlatformFeed is the fetch result for a single platform.
type PlatformFeed struct {
	Platform string
	Items    []RawItem
	Err      error
}

// Item is a normalized trending entry carrying its cross-run identity key.
type Item struct {
	Key        string    `json:"key"`
	Platform   string    `json:"platform"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	MobileURL  string    `json:"mobile_url,omitempty"`
	Rank       int       `json:"rank"`
	ObservedAt time.Time `json:"observed_at"`
}

// Normalize flattens per-platform feeds into items with identity keys.
// Platforms that errored or yielded nothing are skipped and returned in the
// second value; a skipped platform never fails the run. When the same key
// appears twice within a run the best (lowest) rank wins.
func Normalize(feeds []PlatformFeed) ([]Item, []string) {
	var items []Item
	var skipped []string
	index := make(map[string]int)

	for _, f := range feeds {
		if f.Err != nil || len(f.Items) == 0 {
			skipped = append(skipped, f.Platform)
			continue
		}
		for _, raw := range f.Items {
			title := strings.TrimSpace(raw.Title)
			if title == "" {
				continue
			}
			key := Key(f.Platform, title)
			if i, ok := index[key]; ok {
				if raw.Rank < items[i].Rank {
					items[i].Rank = raw.Rank
				}
				continue
			}
			observed := raw.ObservedAt
			if observed.IsZero() {
				observed = time.Now().UTC()
			}
			index[key] = len(items)
			items = append(items, Item{
				Key:        key,
				Platform:   f.Platform,
				Title:      title,
				URL:        raw.URL,
				MobileURL:  raw.MobileURL,
				Rank:       raw.Rank,
				ObservedAt: observed,
			})
		}
	}

	return items, skipped
}

// CrossPlatformCount reports how many distinct stories appear on more than
// one platform within the same run.
func CrossPlatformCount(items []Item) int {
	platforms := make(map[string]map[string]struct{})
	for _, it := range items {
		hash := strings.TrimPrefix(it.Key, it.Platform+":")
		set, ok := platforms[hash]
		if !ok {
			set = make(map[string]struct{})
			platforms[hash] = set
		}
		set[it.Platform] = struct{}{}
	}

	count := 0
	for _, set := range platforms {
		if len(set) > 1 {
			count++
		}
	}
	return count
}
