package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkTagRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkTags removes reasoning-model think blocks from the response.
func StripThinkTags(text string) string {
	return strings.TrimSpace(thinkTagRegex.ReplaceAllString(text, ""))
}

// ParseAdvice accepts a bare JSON object, a one-element array, code fences,
// or an object embedded in prose.
func ParseAdvice(text string) (Advice, error) {
	cleaned := StripThinkTags(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return Advice{}, fmt.Errorf("empty AI response")
	}

	var single Advice
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil {
		return normalize(single)
	}

	var list []Advice
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		if len(list) == 0 {
			return Advice{Action: "HOLD", Reasoning: "no opinion"}, nil
		}
		return normalize(list[0])
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &single); err == nil {
			return normalize(single)
		}
	}

	return Advice{}, fmt.Errorf("failed to parse AI response as JSON: %.200s", cleaned)
}

func normalize(a Advice) (Advice, error) {
	a.Action = strings.ToUpper(strings.TrimSpace(a.Action))
	switch a.Action {
	case "BUY", "SELL", "HOLD":
	default:
		return Advice{}, fmt.Errorf("unknown action %q", a.Action)
	}
	a.Confidence = min(max(a.Confidence, 0), 100)
	return a, nil
}
