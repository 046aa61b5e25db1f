package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// seedFile is the YAML layout accepted by ParseSpotSeed.
type seedFile struct {
	Spots []seedSpot `yaml:"spots"`
}

type seedSpot struct {
	Name      string         `yaml:"name"`
	Lat       float64        `yaml:"lat"`
	Lng       float64        `yaml:"lng"`
	Address   string         `yaml:"address"`
	City      string         `yaml:"city"`
	State     string         `yaml:"state"`
	Country   string         `yaml:"country"`
	Zipcode   string         `yaml:"zipcode"`
	PriceBand string         `yaml:"price_band"`
	Tags      []string       `yaml:"tags"`
	Photos    []model.Photo  `yaml:"photos"`
	OpenHours map[string]any `yaml:"open_hours"`
	Source    string         `yaml:"source"`
}

// ParseSpotSeed reads a YAML list of spots for bulk import. Every entry must
// have a name and coordinates in range.
func ParseSpotSeed(r io.Reader, defaultCountry string) ([]model.Spot, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Spot{}, nil
		}
		return nil, eris.Wrap(err, "places: decode spot seed")
	}

	var problems []string
	out := make([]model.Spot, 0, len(f.Spots))
	for i, s := range f.Spots {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("spots[%d].name is required", i))
		}
		if s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
			problems = append(problems, fmt.Sprintf("spots[%d] coordinates out of range", i))
		}

		spot := model.Spot{
			Name:      name,
			Lat:       s.Lat,
			Lng:       s.Lng,
			Address:   strings.TrimSpace(s.Address),
			City:      strings.TrimSpace(s.City),
			State:     strings.TrimSpace(s.State),
			Country:   strings.TrimSpace(s.Country),
			Zipcode:   strings.TrimSpace(s.Zipcode),
			PriceBand: strings.TrimSpace(s.PriceBand),
			Tags:      s.Tags,
			Photos:    s.Photos,
			Source:    s.Source,
		}
		if spot.Country == "" {
			spot.Country = defaultCountry
		}
		if len(s.OpenHours) > 0 {
			b, err := json.Marshal(s.OpenHours)
			if err != nil {
				problems = append(problems, fmt.Sprintf("spots[%d].open_hours: %v", i, err))
			} else {
				spot.OpenHours = b
			}
		}
		out = append(out, spot)
	}

	if len(problems) > 0 {
		return nil, eris.Errorf("places: invalid spot seed: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// Import bulk-loads spots and returns how many were written.
func (d *Directory) Import(ctx context.Context, spots []model.Spot) (int64, error) {
	n, err := d.store.ImportSpots(ctx, spots)
	if err != nil {
		return 0, eris.Wrap(err, "places: import spots")
	}
	zap.L().Info("spots imported", zap.Int64("count", n))
	return n, nil
}
