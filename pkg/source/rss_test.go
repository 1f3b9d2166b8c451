package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <link>https://example.com</link>
    <item><title>First headline</title><link>https://example.com/1</link></item>
    <item><title>Second headline</title><link>https://example.com/2</link></item>
    <item><title>Third headline</title><link>https://example.com/3</link></item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	p := NewRSS("hn", srv.URL, 2)
	items, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Fetch() = %d items, want limit 2", len(items))
	}
	if items[0].Rank != 1 || items[1].Rank != 2 {
		t.Errorf("ranks = %d,%d, want 1,2", items[0].Rank, items[1].Rank)
	}
	if items[0].Title != "First headline" || items[0].URL != "https://example.com/1" {
		t.Errorf("item = %+v", items[0])
	}
	if items[0].Platform != "hn" {
		t.Errorf("platform = %q, want hn", items[0].Platform)
	}
}

func TestRSSFetchErrors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		if _, err := NewRSS("hn", srv.URL, 10).Fetch(context.Background()); err == nil {
			t.Error("Fetch() error = nil, want http error")
		}
	})

	t.Run("bad xml", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not a feed"))
		}))
		defer srv.Close()

		if _, err := NewRSS("hn", srv.URL, 10).Fetch(context.Background()); err == nil {
			t.Error("Fetch() error = nil, want parse error")
		}
	})
}
