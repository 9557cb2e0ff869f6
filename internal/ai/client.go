package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a task time-behavior classifier.
Your Goal: Map natural-language tasks to workload patterns and break them down into concrete, actionable chunks (max 5).
Output: Strict JSON matching the schema below. No chatter.

Schema:
{
  "suggested_chunks": [
    { "title": "string", "description": "string", "estimated_duration_min": integer }
  ]
}

Scale calibration for skill_level %q:
- beginner/total_novice: Multiply generic durations by 1.5x. Provide more granular chunks.
- intermediate/average: Baselines.
- advanced/master/expert: Multiply generic durations by 0.7x. Chunks can be broader.

Constraints:
- suggested_chunks: Min 1, Max 5.`

// complete posts one chat-completions request and returns the raw message
// content of the first choice.
func (s *Service) complete(ctx context.Context, req Request) (string, error) {
	skill := req.SkillLevel
	if skill == "" {
		skill = "intermediate"
	}
	body, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, skill)},
			{Role: "user", Content: fmt.Sprintf("Task: %s\nSkill Level: %s", req.Description, skill)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions: status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("chat completions: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return cr.Choices[0].Message.Content, nil
}
