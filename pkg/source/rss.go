package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

// RSS treats an RSS/Atom feed as a ranked list: the item's position in the
// feed is its rank.
type RSS struct {
	client   *http.Client
	parser   *gofeed.Parser
	platform string
	feedURL  string
	limit    int
}

// NewRSS creates an RSS provider for one platform.
func NewRSS(platform, feedURL string, limit int) *RSS {
	return &RSS{
		client:   newClient(),
		parser:   gofeed.NewParser(),
		platform: platform,
		feedURL:  feedURL,
		limit:    capLimit(limit, 50),
	}
}

func (r *RSS) Platform() string { return r.platform }

func (r *RSS) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", r.platform, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status %d", r.platform, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", r.platform, err)
	}

	now := time.Now().UTC()
	items := make([]feed.RawItem, 0, len(parsed.Items))
	for i, entry := range parsed.Items {
		if i >= r.limit {
			break
		}
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		items = append(items, feed.RawItem{
			Platform:   r.platform,
			Title:      entry.Title,
			URL:        link,
			Rank:       i + 1,
			ObservedAt: now,
		})
	}
	return items, nil
}
