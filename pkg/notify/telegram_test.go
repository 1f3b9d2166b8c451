package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

type telegramCall struct {
	path    string
	payload map[string]any
}

func newTelegramServer(t *testing.T, calls *[]telegramCall) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*calls = append(*calls, telegramCall{path: r.URL.Path, payload: payload})
		fmt.Fprint(w, `{"ok": true}`)
	}))
}

func TestTelegramPush(t *testing.T) {
	var calls []telegramCall
	srv := newTelegramServer(t, &calls)
	defer srv.Close()

	tg := NewTelegram("token123", "-100500")
	tg.api = srv.URL

	if err := tg.Push(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	call := calls[0]
	if call.path != "/bottoken123/sendMessage" {
		t.Errorf("path = %q", call.path)
	}
	if call.payload["chat_id"] != "-100500" {
		t.Errorf("chat_id = %v", call.payload["chat_id"])
	}
	if call.payload["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v", call.payload["parse_mode"])
	}
	text, _ := call.payload["text"].(string)
	if !strings.HasPrefix(text, "<b>TrendWatch movers: 3 stories</b>") {
		t.Errorf("text = %q", text)
	}
}

func TestTelegramSplitsLongDigest(t *testing.T) {
	var calls []telegramCall
	srv := newTelegramServer(t, &calls)
	defer srv.Close()

	sec := digest.Section{Platform: "weibo", Name: "weibo"}
	for i := 0; i < 200; i++ {
		sec.Entries = append(sec.Entries, digest.Entry{
			Platform: "weibo",
			Title:    fmt.Sprintf("story %03d %s", i, strings.Repeat("x", 60)),
			Rank:     i + 1,
		})
	}
	d := &digest.Digest{Run: "01HLONG", Mode: digest.ModeCurrent, Sections: []digest.Section{sec}}

	tg := NewTelegram("token123", "42")
	tg.api = srv.URL

	if err := tg.Push(context.Background(), d); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if len(calls) < 2 {
		t.Fatalf("got %d calls, want several", len(calls))
	}
	for i, call := range calls {
		text, _ := call.payload["text"].(string)
		if len(text) > telegramLimit {
			t.Errorf("batch %d is %d bytes", i, len(text))
		}
	}
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": false, "description": "Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram("token123", "42")
	tg.api = srv.URL

	err := tg.Push(context.Background(), sampleDigest())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Push() error = %v, want chat not found", err)
	}
}
