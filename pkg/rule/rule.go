package rule

import (
	"fmt"
	"strings"

	"github.com/tidegraph/trendwatch/pkg/feed"
)

// Group is one keyword rule. A title matches the group when it contains no
// filter word, contains every required word, and contains at least one
// normal word (an empty normal set is satisfied by anything). A group with
// no words at all matches every title.
type Group struct {
	Name     string
	Normal   []string
	Required []string
	Filter   []string
}

type compiled struct {
	name     string
	normal   []string
	required []string
	filter   []string
}

// Set evaluates titles against every group independently; matches are
// additive across groups.
type Set struct {
	groups []compiled
}

// NewSet validates and compiles rule groups. Words are normalized with the
// same function applied to titles, so matching ignores case, punctuation,
// and whitespace drift.
func NewSet(groups []Group) (*Set, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no rule groups defined")
	}

	seen := make(map[string]bool)
	set := &Set{groups: make([]compiled, 0, len(groups))}
	for i, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return nil, fmt.Errorf("rule group %d: empty name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("rule group %q: duplicate name", name)
		}
		seen[name] = true

		c := compiled{name: name}
		var err error
		if c.normal, err = normalizeWords(name, g.Normal); err != nil {
			return nil, err
		}
		if c.required, err = normalizeWords(name, g.Required); err != nil {
			return nil, err
		}
		if c.filter, err = normalizeWords(name, g.Filter); err != nil {
			return nil, err
		}
		set.groups = append(set.groups, c)
	}

	return set, nil
}

func normalizeWords(group string, words []string) ([]string, error) {
	out := make([]string, 0, len(words))
	for _, w := range words {
		norm := feed.NormalizeTitle(w)
		if norm == "" {
			return nil, fmt.Errorf("rule group %q: word %q normalizes to nothing", group, w)
		}
		out = append(out, norm)
	}
	return out, nil
}

// Match returns the names of every group the title matches, in group order.
func (s *Set) Match(title string) []string {
	norm := feed.NormalizeTitle(title)

	var names []string
	for _, g := range s.groups {
		if g.matches(norm) {
			names = append(names, g.name)
		}
	}
	return names
}

// Names lists the configured group names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.groups))
	for i, g := range s.groups {
		names[i] = g.name
	}
	return names
}

func (g compiled) matches(norm string) bool {
	for _, w := range g.filter {
		if strings.Contains(norm, w) {
			return false
		}
	}
	for _, w := range g.required {
		if !strings.Contains(norm, w) {
			return false
		}
	}
	if len(g.normal) == 0 {
		return true
	}
	for _, w := range g.normal {
		if strings.Contains(norm, w) {
			return true
		}
	}
	return false
}
