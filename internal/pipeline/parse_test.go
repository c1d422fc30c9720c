package pipeline

import (
	"errors"
	"testing"

	"github.com/mvamarnath1/interview/internal/models"
)

func TestParseCompletion(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		score    int
		category models.Category
	}{
		{"plain", `{"answer":"a","score":7,"category":"technical"}`, 7, models.CategoryTechnical},
		{"fenced", "```json\n{\"answer\":\"a\",\"score\":3,\"category\":\"Behavioral\"}\n```", 3, models.CategoryBehavioral},
		{"prose around", `Here you go: {"answer":"a","score":"9","category":"general"} good luck`, 9, models.CategoryGeneral},
		{"float score", `{"answer":"a","score":6.6,"category":"technical"}`, 7, models.CategoryTechnical},
		{"clamped high", `{"answer":"a","score":42,"category":"technical"}`, 10, models.CategoryTechnical},
		{"clamped low", `{"answer":"a","score":0,"category":"technical"}`, 1, models.CategoryTechnical},
		{"unknown category", `{"answer":"a","score":5,"category":"situational"}`, 5, models.CategoryGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry, err := ParseCompletion(tc.raw)
			if err != nil {
				t.Fatalf("ParseCompletion returned error: %v", err)
			}
			if entry.Answer != "a" || entry.Score != tc.score || entry.Category != tc.category {
				t.Fatalf("unexpected entry %+v", entry)
			}
		})
	}
}

func TestParseCompletionMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"no json at all",
		`{"answer":"a","score":5`,
		`{"answer":"   ","score":5,"category":"general"}`,
		`{"answer":"a","category":"general"}`,
		`{"answer":"a","score":"ten","category":"general"}`,
	} {
		if _, err := ParseCompletion(raw); !errors.Is(err, models.ErrUpstreamMalformed) {
			t.Fatalf("ParseCompletion(%q): expected ErrUpstreamMalformed, got %v", raw, err)
		}
	}
}
