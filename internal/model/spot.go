package model

import (
	"encoding/json"
	"time"
)

// SpotSourceVerified marks spots promoted through the verification quorum.
const SpotSourceVerified = "verified"

// Photo is an image attached to a spot.
type Photo struct {
	URL string     `json:"url" yaml:"url"`
	By  string     `json:"by,omitempty" yaml:"by,omitempty"`
	At  *time.Time `json:"at,omitempty" yaml:"at,omitempty"`
}

// Spot is a verified, publicly listed place.
type Spot struct {
	ID        int64           `json:"id"`
	PublicID  string          `json:"public_id"`
	Name      string          `json:"name"`
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	Address   string          `json:"address"`
	City      string          `json:"city"`
	State     string          `json:"state"`
	Country   string          `json:"country"`
	Zipcode   string          `json:"zipcode"`
	PriceBand string          `json:"price_band"`
	Tags      []string        `json:"tags"`
	Photos    []Photo         `json:"photos"`
	OpenHours json.RawMessage `json:"open_hours,omitempty"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
