package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

// API fetches a JSON trending-list endpoint. The endpoint returns a status
// plus an ordered item list; position in the list is the rank.
type API struct {
	client   *http.Client
	platform string
	endpoint string
	limit    int
}

// NewAPI creates an API provider for one platform.
func NewAPI(platform, endpoint string, limit int) *API {
	return &API{
		client:   newClient(),
		platform: platform,
		endpoint: endpoint,
		limit:    capLimit(limit, 50),
	}
}

func (a *API) Platform() string { return a.platform }

type apiResponse struct {
	Status string `json:"status"`
	Items  []struct {
		Title     string `json:"title"`
		URL       string `json:"url"`
		MobileURL string `json:"mobileUrl"`
	} `json:"items"`
}

func (a *API) Fetch(ctx context.Context) ([]feed.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", a.platform, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status %d", a.platform, resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", a.platform, err)
	}
	// Upstream serves "cache" when its own refresh is pending; the list is
	// still usable.
	if parsed.Status != "success" && parsed.Status != "cache" {
		return nil, fmt.Errorf("%s status %q", a.platform, parsed.Status)
	}

	now := time.Now().UTC()
	items := make([]feed.RawItem, 0, len(parsed.Items))
	for i, entry := range parsed.Items {
		if i >= a.limit {
			break
		}
		items = append(items, feed.RawItem{
			Platform:   a.platform,
			Title:      entry.Title,
			URL:        entry.URL,
			MobileURL:  entry.MobileURL,
			Rank:       i + 1,
			ObservedAt: now,
		})
	}
	return items, nil
}
