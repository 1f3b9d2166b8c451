package source

import (
	"context"
	"net/http"
	"time"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

const userAgent = "trendwatch/1.0"

// Kind identifies how a platform's trending list is fetched.
type Kind string

const (
	KindAPI   Kind = "api"
	KindRSS   Kind = "rss"
	KindBoard Kind = "board"
)

// Kinds returns all known provider kinds.
func Kinds() []Kind {
	return []Kind{KindAPI, KindRSS, KindBoard}
}

// Provider fetches one platform's current trending list. Fetch failures are
// per-platform; callers skip the platform and keep the run alive.
type Provider interface {
	Platform() string
	Fetch(ctx context.Context) ([]feed.RawItem, error)
}

func newClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func capLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
