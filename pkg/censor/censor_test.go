package censor

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCensor_Check(t *testing.T) {
	c := New()

	jsonPath := filepath.Join("test_data", "words.json")
	if err := c.LoadFromJSON(jsonPath); err != nil {
		t.Fatalf("failed to load words: %v", err)
	}

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"No match", "a quote worth rereading", false},
		{"Match single word", "damn", true},
		{"Match inside sentence", "What a damn good ending", true},
		{"Derivative", "goddamned chapter three", true},
		{"Punctuation around word", "CRAP!", true},
		{"Exception word", "the crappie fishing chapter", false},
		{"Exception compound", "a badass heroine", false},
		{"Compound", "he is a jackass", true},
		{"Substring not matched", "this passage is an assassin's tale", false},
		{"Homograph attack (cyrillic a)", "dаmn", true},
		{"Leet attack", "what an idi0t", true},
		{"Leet attack with symbols", "c@sino bonus", true},
		{"Numbers alone", "1984 is a classic", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Check(tt.text)
			if got != tt.want {
				t.Errorf("Check(%q) = %v; want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCensor_Empty(t *testing.T) {
	c := New()
	if c.Check("damn") {
		t.Error("want empty censor to allow everything")
	}
}

func TestCensor_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"Invalid JSON", `[{"text": "x"`},
		{"Invalid pattern", `[{"text": "x", "pattern": "(x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if err := c.Load(strings.NewReader(tt.json)); err == nil {
				t.Error("want error, got nil")
			}
			if c.Len() != 0 {
				t.Errorf("want no words loaded, got %d", c.Len())
			}
		})
	}

	if err := New().LoadFromJSON(filepath.Join("test_data", "missing.json")); err == nil {
		t.Error("want error for missing file, got nil")
	}
}
