package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("includes content and reference date", func(t *testing.T) {
		system, user := buildPrompt("Week 3: problem set due Friday", "2026-09-01")

		assert.Contains(t, system, "JSON array")
		assert.Contains(t, system, `"title"`)
		assert.Contains(t, system, `"deadline"`)
		assert.Contains(t, system, `"estimated_hours"`)
		assert.Contains(t, system, `"important"`)

		assert.Contains(t, user, "Reference date: 2026-09-01")
		assert.Contains(t, user, "problem set due Friday")
	})

	t.Run("system prompt specifies date format", func(t *testing.T) {
		system, _ := buildPrompt("content", "2026-09-01")
		assert.Contains(t, system, "YYYY-MM-DD")
	})
}

func TestBuildPromptContent(t *testing.T) {
	content := strings.Repeat("x", 10000)
	_, user := buildPrompt(content, "2026-09-01")
	assert.Contains(t, user, content)
}

func TestStripFencing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fencing", `[{"title":"a"}]`, `[{"title":"a"}]`},
		{"plain fence", "```\n[]\n```", "[]"},
		{"json fence", "```json\n[{\"title\":\"a\"}]\n```", `[{"title":"a"}]`},
		{"surrounding whitespace", "  \n```json\n[]\n```\n ", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFencing(tt.in))
		})
	}
}
