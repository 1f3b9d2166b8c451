package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

// Selectors locate list entries on an HTML board page. Item selects one
// entry; Title and Link are resolved within it. An empty Title selector
// takes the entry's own text; an empty Link selector takes the entry's
// first anchor.
type Selectors struct {
	Item  string
	Title string
	Link  string
}

// Board scrapes an HTML trending board. Document order is the rank.
type Board struct {
	client   *http.Client
	platform string
	pageURL  string
	sel      Selectors
	limit    int
}

// NewBoard creates a Board provider for one platform.
func NewBoard(platform, pageURL string, sel Selectors, limit int) *Board {
	return &Board{
		client:   newClient(),
		platform: platform,
		pageURL:  pageURL,
		sel:      sel,
		limit:    capLimit(limit, 50),
	}
}

func (b *Board) Platform() string { return b.platform }

func (b *Board) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", b.platform, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status %d", b.platform, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s page: %w", b.platform, err)
	}

	base, err := url.Parse(b.pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s page url: %w", b.platform, err)
	}

	now := time.Now().UTC()
	var items []feed.RawItem

	doc.Find(b.sel.Item).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(items) >= b.limit {
			return false
		}

		title := s.Text()
		if b.sel.Title != "" {
			title = s.Find(b.sel.Title).First().Text()
		}
		title = strings.Join(strings.Fields(title), " ")
		if title == "" {
			return true
		}

		link := s.Find("a").First()
		if b.sel.Link != "" {
			link = s.Find(b.sel.Link).First()
		}
		href, _ := link.Attr("href")
		if href == "" {
			if h, ok := s.Attr("href"); ok {
				href = h
			}
		}
		if href != "" {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}

		items = append(items, feed.RawItem{
			Platform:   b.platform,
			Title:      title,
			URL:        href,
			Rank:       len(items) + 1,
			ObservedAt: now,
		})
		return true
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("%s selector %q matched nothing", b.platform, b.sel.Item)
	}
	return items, nil
}
