package document

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lfmartins/carteira/internal/models"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	fencedAnyPattern  = regexp.MustCompile("(?s)```\\s*(.*?)```")
)

// decodeJSON unmarshals LLM output that may be wrapped in markdown fences.
// Strict parse first, then the first ```json block, then any ``` block.
func decodeJSON(text string, v any) error {
	candidates := []string{strings.TrimSpace(text)}
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := fencedAnyPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("empty response")
	}
	return fmt.Errorf("%w: no JSON document found: %v", models.ErrParseFailed, lastErr)
}
