package scorer

import (
	"math"
	"strings"

	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/model"
)

// Score combines signals into a confidence value in [0, 1], rounded to
// three decimals to match the stored precision.
func Score(s model.Signals, cfg config.ScoringConfig) float64 {
	var score float64
	if s.KeywordHits >= 1 {
		score += cfg.KeywordWeight
	}
	if s.HasPhoto {
		score += cfg.PhotoWeight
	}
	if s.HasCoords {
		score += cfg.CoordsWeight
	}
	return math.Round(clamp(score)*1000) / 1000
}

// DedupeKey builds the key used to spot likely duplicates. Coordinates do not
// participate in the key yet.
func DedupeKey(name string, lat, lng *float64) string {
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
