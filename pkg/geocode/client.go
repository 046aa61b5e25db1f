// Package geocode resolves submitted addresses to coordinates.
package geocode

import (
	"context"

	"github.com/rotisserie/eris"
)

// Precision describes how closely a result pins the place.
const (
	PrecisionAddress = "address"
	PrecisionPOI     = "poi"
	PrecisionCity    = "city"
)

// Client geocodes addresses.
type Client interface {
	// Geocode resolves a single address. An unresolved address is not an
	// error; the result carries nil coordinates and city precision.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput represents an address to geocode, with any coordinates the
// submitter already supplied.
type AddressInput struct {
	Street  string
	City    string
	State   string
	Country string
	Lat     *float64
	Lng     *float64
}

// Result holds the geocoding output for an address.
type Result struct {
	Lat       *float64
	Lng       *float64
	Precision string
	Source    string // "submitter" or "none"
}

// Matched reports whether the result carries coordinates.
func (r *Result) Matched() bool {
	return r != nil && r.Lat != nil && r.Lng != nil
}

// NewClient returns the geocoder registered under provider.
func NewClient(provider string) (Client, error) {
	switch provider {
	case "", "passthrough":
		return Passthrough{}, nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", provider)
	}
}
