package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/tidegraph/trendwatch/pkg/digest"
)

// Title builds the push headline for a digest.
func Title(d *digest.Digest) string {
	return fmt.Sprintf("TrendWatch %s: %d stories", modeLabel(d.Mode), len(d.Entries()))
}

func modeLabel(m digest.Mode) string {
	switch m {
	case digest.ModeDaily:
		return "daily digest"
	case digest.ModeIncremental:
		return "movers"
	default:
		return "trending now"
	}
}

// deltaMark renders the rank movement of an entry: "new" for first
// sightings, ↑n/↓n for movement, nothing for an unchanged rank.
func deltaMark(e digest.Entry) string {
	switch {
	case e.New:
		return "new"
	case e.Delta == nil || *e.Delta == 0:
		return ""
	case *e.Delta > 0:
		return fmt.Sprintf("↑%d", *e.Delta)
	default:
		return fmt.Sprintf("↓%d", -*e.Delta)
	}
}

// Markdown renders the digest for markdown-capable channels.
func Markdown(d *digest.Digest) string {
	var b strings.Builder
	if d.Overview != "" {
		b.WriteString("> " + d.Overview + "\n\n")
	}

	for _, sec := range d.Sections {
		fmt.Fprintf(&b, "**%s**\n", sec.Name)
		for i, e := range sec.Entries {
			if e.URL != "" {
				fmt.Fprintf(&b, "%d. [%s](%s)", i+1, e.Title, e.URL)
			} else {
				fmt.Fprintf(&b, "%d. %s", i+1, e.Title)
			}
			b.WriteString(entrySuffix(e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(footer(d))
	return b.String()
}

// HTML renders the digest for Telegram's HTML parse mode.
func HTML(d *digest.Digest) string {
	var b strings.Builder
	if d.Overview != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n\n", html.EscapeString(d.Overview))
	}

	for _, sec := range d.Sections {
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(sec.Name))
		for i, e := range sec.Entries {
			if e.URL != "" {
				fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>", i+1, html.EscapeString(e.URL), html.EscapeString(e.Title))
			} else {
				fmt.Fprintf(&b, "%d. %s", i+1, html.EscapeString(e.Title))
			}
			b.WriteString(entrySuffix(e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(footer(d))
	return b.String()
}

// Plain renders the digest without markup for plain-text channels.
func Plain(d *digest.Digest) string {
	var b strings.Builder
	if d.Overview != "" {
		b.WriteString(d.Overview + "\n\n")
	}

	for _, sec := range d.Sections {
		b.WriteString(sec.Name + "\n")
		for i, e := range sec.Entries {
			fmt.Fprintf(&b, "%d. %s", i+1, e.Title)
			b.WriteString(entrySuffix(e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(footer(d))
	return b.String()
}

func entrySuffix(e digest.Entry) string {
	s := fmt.Sprintf(" #%d", e.Rank)
	if mark := deltaMark(e); mark != "" {
		s += " " + mark
	}
	if len(e.Groups) > 0 {
		s += " (" + strings.Join(e.Groups, ", ") + ")"
	}
	return s
}

func footer(d *digest.Digest) string {
	s := d.Stats
	line := fmt.Sprintf("%d stories from %d platforms", s.Selected, s.PlatformsPolled-s.PlatformsFailed)
	if s.PlatformsFailed > 0 {
		line += fmt.Sprintf(" (%d failed)", s.PlatformsFailed)
	}
	line += fmt.Sprintf(" | %d seen, %d matched", s.ItemsSeen, s.ItemsMatched)
	if s.Duplicates > 0 {
		line += fmt.Sprintf(", %d duplicates removed", s.Duplicates)
	}
	if s.CrossPlatform > 0 {
		line += fmt.Sprintf(", %d on multiple platforms", s.CrossPlatform)
	}
	if s.HistoryReset {
		line += " | history was reset"
	}
	return line
}

// SplitBatches splits text into chunks of at most limit bytes, breaking on
// line boundaries. A single line longer than the limit is hard-split at a
// rune boundary.
func SplitBatches(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var batches []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			batches = append(batches, strings.TrimSuffix(cur.String(), "\n"))
			cur.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			batches = append(batches, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line)+1 > limit {
			flush()
		}
		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush()
	return batches
}
