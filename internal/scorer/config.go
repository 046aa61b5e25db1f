// Package scorer extracts heuristic signals from submissions and turns them
// into a confidence score and a dedupe key.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/michojekunle/amala-atlas/internal/config"
)

// DefaultScoringConfig returns a config.ScoringConfig with the stock
// vocabulary and weights.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Keywords:      []string{"amala", "abula", "gbegiri", "ewedu", "buka"},
		KeywordWeight: 0.35,
		PhotoWeight:   0.10,
		CoordsWeight:  0.10,
	}
}

// WeightSum returns the sum of all signal weights. Scores are clamped, so a
// sum above 1 is allowed.
func WeightSum(c config.ScoringConfig) float64 {
	return c.KeywordWeight + c.PhotoWeight + c.CoordsWeight
}

// ValidateConfig checks that a ScoringConfig is usable.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"keyword_weight", c.KeywordWeight},
		{"photo_weight", c.PhotoWeight},
		{"coords_weight", c.CoordsWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	for i, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Sprintf("keywords[%d] must not be blank", i))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
