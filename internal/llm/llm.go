package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ExtractedTask holds a single task extracted from free-form text.
type ExtractedTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Deadline       string  `json:"deadline"` // "2006-01-02"
	EstimatedHours float64 `json:"estimated_hours"`
	Important      bool    `json:"important"`
}

// Client wraps the Anthropic API for task extraction.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildPrompt constructs the system and user prompts for task extraction.
func buildPrompt(content, today string) (system string, user string) {
	system = `You extract study tasks from free-form text such as syllabus excerpts, assignment lists, or notes. Return ONLY a JSON array of objects with these fields:
- "title": concise task title
- "description": brief description (can be empty string if the title is self-explanatory)
- "deadline": due date in YYYY-MM-DD format
- "estimated_hours": estimated hours of work as a number (infer from scope; default 2 when nothing suggests otherwise)
- "important": true if the text marks the task as high-stakes (exams, graded work, "important", "critical"), false otherwise

Rules:
- Each distinct assignment, reading, or deliverable is one task
- Resolve relative dates ("next Friday", "in two weeks") against the reference date given in the input
- When no due date is stated, use the reference date plus seven days
- If the text contains no tasks, return an empty array. Never create placeholder tasks
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Reference date: ")
	sb.WriteString(today)
	sb.WriteString("\n\nExtract tasks from this text:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// ExtractTasks sends free-form text to the LLM and returns structured
// tasks. today anchors relative due dates, "2006-01-02".
func (c *Client) ExtractTasks(ctx context.Context, content, today string) ([]ExtractedTask, error) {
	systemPrompt, userPrompt := buildPrompt(content, today)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	text = stripFencing(text)

	var tasks []ExtractedTask
	if err := json.Unmarshal([]byte(text), &tasks); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return tasks, nil
}

// stripFencing removes markdown code fencing if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
