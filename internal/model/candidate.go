package model

import (
	"encoding/json"
	"time"
)

// CandidateStatus represents where a candidate is in the verification lifecycle.
type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "pending_verification"
	CandidateStatusApproved CandidateStatus = "approved"
	CandidateStatusRejected CandidateStatus = "rejected"
)

// Terminal reports whether the status can no longer change.
func (s CandidateStatus) Terminal() bool {
	return s == CandidateStatusApproved || s == CandidateStatusRejected
}

// SourceKind names where a candidate came from.
type SourceKind string

const (
	SourceKindUser      SourceKind = "user"
	SourceKindAgent     SourceKind = "agent"
	SourceKindBlog      SourceKind = "blog"
	SourceKindDirectory SourceKind = "directory"
	SourceKindSocial    SourceKind = "social"
)

// GeoPrecision describes how trustworthy a candidate's coordinates are.
type GeoPrecision string

const (
	GeoPrecisionAddress GeoPrecision = "address"
	GeoPrecisionPOI     GeoPrecision = "poi"
	GeoPrecisionCity    GeoPrecision = "city"
)

// Evidence is one supporting artifact attached to a candidate.
type Evidence struct {
	Kind      string `json:"kind"`
	PhotoURL  string `json:"photo_url,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Signals holds the heuristic features extracted from a submission.
type Signals struct {
	KeywordHits int  `json:"keyword_hits"`
	HasPhoto    bool `json:"has_photo"`
	HasCoords   bool `json:"has_coords"`
}

// Candidate is a proposed place awaiting verification.
type Candidate struct {
	ID               int64           `json:"id"`
	PublicID         string          `json:"public_id"`
	Name             string          `json:"name"`
	RawAddress       string          `json:"raw_address"`
	Lat              *float64        `json:"lat"`
	Lng              *float64        `json:"lng"`
	City             string          `json:"city"`
	Country          string          `json:"country"`
	SourceURL        string          `json:"source_url,omitempty"`
	SourceKind       SourceKind      `json:"source_kind"`
	PriceBand        string          `json:"price_band,omitempty"`
	PhotoURL         string          `json:"photo_url,omitempty"`
	OpenHours        json.RawMessage `json:"open_hours,omitempty"`
	SubmittedByEmail string          `json:"submitted_by_email,omitempty"`
	Evidence         []Evidence      `json:"evidence"`
	Signals          Signals         `json:"signals"`
	Score            float64         `json:"score"`
	DedupeKey        string          `json:"dedupe_key"`
	GeoPrecision     GeoPrecision    `json:"geo_precision"`
	Status           CandidateStatus `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
