package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/utils"
)

const (
	minScore = 1
	maxScore = 10
)

type completionPayload struct {
	Answer   string          `json:"answer"`
	Score    json.RawMessage `json:"score"`
	Category string          `json:"category"`
}

// ParseCompletion extracts {answer, score, category} from raw model output.
// Code fences and prose around the JSON object are tolerated. Scores are
// clamped into [1, 10] and unknown categories fold into general; a missing
// answer or a non-numeric score is ErrUpstreamMalformed.
func ParseCompletion(raw string) (models.CacheEntry, error) {
	body := utils.ExtractJSONObject(utils.StripFences(raw))
	if body == "" {
		return models.CacheEntry{}, fmt.Errorf("%w: no JSON object in completion", models.ErrUpstreamMalformed)
	}

	var payload completionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return models.CacheEntry{}, fmt.Errorf("%w: %v", models.ErrUpstreamMalformed, err)
	}

	answer := strings.TrimSpace(payload.Answer)
	if answer == "" {
		return models.CacheEntry{}, fmt.Errorf("%w: empty answer", models.ErrUpstreamMalformed)
	}

	score, err := parseScore(payload.Score)
	if err != nil {
		return models.CacheEntry{}, err
	}

	category, ok := models.ParseCategory(payload.Category)
	if !ok {
		category = models.CategoryGeneral
	}

	return models.CacheEntry{Answer: answer, Score: score, Category: category}, nil
}

func parseScore(raw json.RawMessage) (int, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" {
		return 0, fmt.Errorf("%w: missing score", models.ErrUpstreamMalformed)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: score %q is not a number", models.ErrUpstreamMalformed, text)
	}
	score := int(math.Round(f))
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score, nil
}
