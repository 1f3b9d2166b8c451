package rule

import (
	"reflect"
	"testing"
)

func TestNewSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		groups  []Group
		wantErr bool
	}{
		{"no groups", nil, true},
		{"empty name", []Group{{Name: "  "}}, true},
		{"duplicate name", []Group{{Name: "ai"}, {Name: "ai"}}, true},
		{"word normalizes to nothing", []Group{{Name: "ai", Normal: []string{"!!!"}}}, true},
		{"catch-all group is valid", []Group{{Name: "all"}}, false},
		{"normal groups", []Group{{Name: "ai", Normal: []string{"AI", "LLM"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.groups)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSet() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetMatch(t *testing.T) {
	set, err := NewSet([]Group{
		{Name: "ai", Normal: []string{"AI", "model"}},
		{Name: "ai-china", Required: []string{"AI", "China"}},
		{Name: "clean-ai", Normal: []string{"AI"}, Filter: []string{"crypto"}},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	tests := []struct {
		title string
		want  []string
	}{
		{"AI breakthrough announced", []string{"ai", "clean-ai"}},
		{"New AI model ships", []string{"ai", "clean-ai"}},
		{"Sports final tonight", nil},
		{"China launches AI lab", []string{"ai", "ai-china", "clean-ai"}},
		{"AI lab opens", []string{"ai", "clean-ai"}},
		{"AI crypto scheme exposed", []string{"ai"}},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := set.Match(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.title, got, tt.want)
			}
		})
	}
}

func TestMatchFilterVetoes(t *testing.T) {
	set, err := NewSet([]Group{
		{Name: "ai", Normal: []string{"AI"}, Required: []string{"launch"}, Filter: []string{"rumor"}},
	})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	if got := set.Match("AI launch confirmed"); len(got) != 1 {
		t.Errorf("Match() = %v, want one group", got)
	}
	// Filter word wins even when normal and required words are present.
	if got := set.Match("Rumor: AI launch next week"); got != nil {
		t.Errorf("Match() = %v, want none", got)
	}
	// Required word missing.
	if got := set.Match("AI is everywhere"); got != nil {
		t.Errorf("Match() = %v, want none", got)
	}
}

func TestMatchCatchAll(t *testing.T) {
	set, err := NewSet([]Group{{Name: "all"}})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	for _, title := range []string{"anything", "马斯克发布新模型", "!!!"} {
		if got := set.Match(title); len(got) != 1 || got[0] != "all" {
			t.Errorf("Match(%q) = %v, want [all]", title, got)
		}
	}
}

func TestMatchNormalizedContainment(t *testing.T) {
	set, err := NewSet([]Group{{Name: "gpt", Normal: []string{"GPT-5"}}})
	if err != nil {
		t.Fatalf("NewSet() error = %v", err)
	}

	// "GPT-5" and "gpt5" normalize identically, so punctuation drift on
	// either side still matches.
	if got := set.Match("gpt5 正式发布"); len(got) != 1 {
		t.Errorf("Match() = %v, want [gpt]", got)
	}
	if got := set.Match("GPT-5 launch day"); len(got) != 1 {
		t.Errorf("Match() = %v, want [gpt]", got)
	}
}
