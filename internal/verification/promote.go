package verification

import (
	"time"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// SpotFromCandidate builds the spot published when a candidate reaches the
// approval quorum. Missing coordinates become 0.
func SpotFromCandidate(c *model.Candidate, now time.Time) *model.Spot {
	spot := &model.Spot{
		Name:      c.Name,
		Address:   c.RawAddress,
		City:      c.City,
		Country:   c.Country,
		PriceBand: c.PriceBand,
		Tags:      []string{},
		Photos:    []model.Photo{},
		OpenHours: c.OpenHours,
		Source:    model.SpotSourceVerified,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Lat != nil {
		spot.Lat = *c.Lat
	}
	if c.Lng != nil {
		spot.Lng = *c.Lng
	}
	if c.PhotoURL != "" {
		at := now.UTC()
		spot.Photos = append(spot.Photos, model.Photo{URL: c.PhotoURL, At: &at})
	}
	return spot
}
