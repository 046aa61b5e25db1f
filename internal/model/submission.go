package model

import (
	"encoding/json"
	"time"
)

// SubmissionKind distinguishes human submissions from automated agent ones.
type SubmissionKind string

const (
	SubmissionKindManual  SubmissionKind = "manual"
	SubmissionKindAgentic SubmissionKind = "agentic"
)

// Valid reports whether k is a known submission kind.
func (k SubmissionKind) Valid() bool {
	return k == SubmissionKindManual || k == SubmissionKindAgentic
}

// Submission is the raw, append-only record of what a user or agent sent.
// Lat and Lng are either both set or both nil.
type Submission struct {
	ID          int64           `json:"id"`
	PublicID    string          `json:"public_id"`
	Kind        SubmissionKind  `json:"kind"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	City        string          `json:"city"`
	State       string          `json:"state,omitempty"`
	Country     string          `json:"country"`
	Lat         *float64        `json:"lat"`
	Lng         *float64        `json:"lng"`
	PriceBand   string          `json:"price_band,omitempty"`
	Tags        []string        `json:"tags"`
	HoursText   string          `json:"hours_text,omitempty"`
	Email       string          `json:"email,omitempty"`
	PhotoURL    string          `json:"photo_url,omitempty"`
	SubmittedBy *int64          `json:"submitted_by,omitempty"`
	Transcript  string          `json:"transcript,omitempty"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HasCoords reports whether both coordinates are present.
func (s *Submission) HasCoords() bool {
	return s.Lat != nil && s.Lng != nil
}
