package outline

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/models"
)

// Parse decodes an LLM outline response into outline nodes, tolerating the
// usual model output damage: markdown code fences, prose before and after
// the JSON, and trailing commas. A response that still fails after repair
// surfaces a PARSE error with the offending payload noted.
func Parse(raw string) ([]models.OutlineNode, error) {
	candidate := StripFences(raw)
	candidate = sliceJSONArray(candidate)
	if candidate == "" {
		return nil, models.NewAppError(models.ErrCodeParse, "outline response contains no JSON array")
	}

	nodes, err := decode(candidate)
	if err == nil {
		return nodes, nil
	}

	repaired := removeTrailingCommas(candidate)
	nodes, repairErr := decode(repaired)
	if repairErr == nil {
		return nodes, nil
	}

	return nil, models.WrapError(models.ErrCodeParse, err,
		"outline response is not valid JSON (%d bytes)", len(raw))
}

func decode(candidate string) ([]models.OutlineNode, error) {
	var nodes []models.OutlineNode
	if err := json.Unmarshal([]byte(candidate), &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// StripFences removes a leading/trailing markdown code fence, with or
// without a language tag.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:nl])
		if len(first) <= 8 {
			s = s[nl+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// sliceJSONArray cuts the substring from the first '[' to the matching last
// ']' so prose around the array is discarded.
func sliceJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

func removeTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}
