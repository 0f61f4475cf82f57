package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"storyvox/internal/providers"
)

// characterSampleSize bounds how much chapter text the detector sends to the
// model per call.
const characterSampleSize = 15000

var characterSchema = json.RawMessage(`{
	"type": "object",
	"required": ["characters"],
	"properties": {
		"characters": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "gender", "age"],
				"properties": {
					"name":        {"type": "string"},
					"gender":      {"type": "string", "enum": ["male", "female", "unknown"]},
					"age":         {"type": "string", "enum": ["child", "young", "adult", "elderly"]},
					"personality": {"type": "string"}
				}
			}
		}
	}
}`)

const characterSystemPrompt = `You identify speaking characters in book text for audiobook casting.
Return every named character who has attributed quoted dialogue in the sample.
Exclude characters who are mentioned but never speak.
For each, give gender (male/female/unknown), age bracket
(child/young/adult/elderly), and a short personality descriptor.
Return JSON: {"characters": [{"name": "...", "gender": "...", "age": "...", "personality": "..."}]}.`

type characterResponse struct {
	Characters []Character `json:"characters"`
}

// DetectCharacters asks the model for the speaking characters in a chapter.
// On any error it returns an empty list; the pipeline then narrates
// everything with the default voice rather than blocking.
func DetectCharacters(ctx context.Context, llm providers.LLMClient, chapterText string, logger *slog.Logger) []Character {
	if logger == nil {
		logger = slog.Default()
	}
	if llm == nil || strings.TrimSpace(chapterText) == "" {
		return nil
	}

	sample := chapterText
	if len(sample) > characterSampleSize {
		sample = sample[:characterSampleSize]
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: characterSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Identify the speaking characters:\n\n%s", sample)},
		},
		Temperature: 0.1,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: characterSchema,
		},
	}

	result, err := llm.Chat(ctx, req)
	if err != nil {
		logger.Warn("character detection failed", "error", err)
		return nil
	}

	var resp characterResponse
	if err := json.Unmarshal(result.ParsedJSON, &resp); err != nil {
		logger.Warn("unparseable character response", "error", err)
		return nil
	}

	characters := resp.Characters[:0:0]
	for _, c := range resp.Characters {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Gender == "" {
			c.Gender = "unknown"
		}
		if c.Age == "" {
			c.Age = "adult"
		}
		characters = append(characters, c)
	}

	logger.Info("detected characters", "count", len(characters))
	return characters
}
