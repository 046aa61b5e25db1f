package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/michojekunle/amala-atlas/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// timeDest adapts a *time.Time to whatever the driver scans timestamps into.
type timeDest func(*time.Time) any

var candidateColumns = []string{
	"id", "public_id", "name", "raw_address", "lat", "lng", "city", "country",
	"source_url", "source_kind", "price_band", "photo_url", "open_hours",
	"submitted_by_email", "evidence", "signals", "score", "dedupe_key",
	"geo_precision", "status", "created_at", "updated_at",
}

var spotColumns = []string{
	"id", "public_id", "name", "lat", "lng", "address", "city", "state",
	"country", "zipcode", "price_band", "tags", "photos", "open_hours",
	"source", "created_at", "updated_at",
}

var verificationColumns = []string{
	"id", "public_id", "candidate_id", "voter_key", "by_user", "action",
	"notes", "merge_into_spot_id", "revision", "created_at", "updated_at",
}

func columnList(cols []string) string {
	return strings.Join(cols, ", ")
}

func scanCandidate(row scannable, ts timeDest) (*model.Candidate, error) {
	var (
		c                         model.Candidate
		sourceKind, prec, status  string
		openHours, evidence, sigs []byte
	)
	err := row.Scan(
		&c.ID, &c.PublicID, &c.Name, &c.RawAddress, &c.Lat, &c.Lng, &c.City, &c.Country,
		&c.SourceURL, &sourceKind, &c.PriceBand, &c.PhotoURL, &openHours,
		&c.SubmittedByEmail, &evidence, &sigs, &c.Score, &c.DedupeKey,
		&prec, &status, ts(&c.CreatedAt), ts(&c.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}

	c.SourceKind = model.SourceKind(sourceKind)
	c.GeoPrecision = model.GeoPrecision(prec)
	c.Status = model.CandidateStatus(status)
	c.OpenHours = rawJSON(openHours)
	if err := unmarshalJSON(evidence, &c.Evidence); err != nil {
		return nil, eris.Wrap(err, "unmarshal evidence")
	}
	if err := unmarshalJSON(sigs, &c.Signals); err != nil {
		return nil, eris.Wrap(err, "unmarshal signals")
	}
	if c.Evidence == nil {
		c.Evidence = []model.Evidence{}
	}
	return &c, nil
}

func scanSpot(row scannable, ts timeDest) (*model.Spot, error) {
	var (
		s                       model.Spot
		tags, photos, openHours []byte
	)
	err := row.Scan(
		&s.ID, &s.PublicID, &s.Name, &s.Lat, &s.Lng, &s.Address, &s.City, &s.State,
		&s.Country, &s.Zipcode, &s.PriceBand, &tags, &photos, &openHours,
		&s.Source, ts(&s.CreatedAt), ts(&s.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}

	s.OpenHours = rawJSON(openHours)
	if err := unmarshalJSON(tags, &s.Tags); err != nil {
		return nil, eris.Wrap(err, "unmarshal tags")
	}
	if err := unmarshalJSON(photos, &s.Photos); err != nil {
		return nil, eris.Wrap(err, "unmarshal photos")
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Photos == nil {
		s.Photos = []model.Photo{}
	}
	return &s, nil
}

func scanVerification(row scannable, ts timeDest) (*model.Verification, error) {
	var (
		v      model.Verification
		action string
	)
	err := row.Scan(
		&v.ID, &v.PublicID, &v.CandidateID, &v.VoterKey, &v.ByUser, &action,
		&v.Notes, &v.MergeIntoSpotID, &v.Revision, ts(&v.CreatedAt), ts(&v.UpdatedAt),
	)
	if err != nil {
		return nil, err
	}
	v.Action = model.Action(action)
	return &v, nil
}

// candidateRow holds the encoded column values shared by both drivers.
type candidateRow struct {
	evidence []byte
	signals  []byte
}

func encodeCandidate(c *model.Candidate) (candidateRow, error) {
	evidence := c.Evidence
	if evidence == nil {
		evidence = []model.Evidence{}
	}
	ev, err := json.Marshal(evidence)
	if err != nil {
		return candidateRow{}, eris.Wrap(err, "marshal evidence")
	}
	sigs, err := json.Marshal(c.Signals)
	if err != nil {
		return candidateRow{}, eris.Wrap(err, "marshal signals")
	}
	return candidateRow{evidence: ev, signals: sigs}, nil
}

type spotRow struct {
	tags   []byte
	photos []byte
}

func encodeSpot(s *model.Spot) (spotRow, error) {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	photos := s.Photos
	if photos == nil {
		photos = []model.Photo{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return spotRow{}, eris.Wrap(err, "marshal tags")
	}
	p, err := json.Marshal(photos)
	if err != nil {
		return spotRow{}, eris.Wrap(err, "marshal photos")
	}
	return spotRow{tags: t, photos: p}, nil
}

// prepareSubmission fills the generated fields a new submission row needs
// and returns its tags and raw payload encoded as JSON.
func prepareSubmission(sub *model.Submission, now time.Time) (tags, payload []byte, err error) {
	if sub.PublicID == "" {
		sub.PublicID = newPublicID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.CreatedAt = normalizeTime(sub.CreatedAt)
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	tags, err = json.Marshal(sub.Tags)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal tags")
	}
	payload = sub.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		return nil, nil, eris.New("raw payload is not valid JSON")
	}
	return tags, payload, nil
}

func prepareCandidate(c *model.Candidate, now time.Time) {
	if c.PublicID == "" {
		c.PublicID = newPublicID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.CreatedAt = normalizeTime(c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = model.CandidateStatusPending
	}
}

func prepareSpot(s *model.Spot, now time.Time) {
	if s.PublicID == "" {
		s.PublicID = newPublicID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.CreatedAt = normalizeTime(s.CreatedAt)
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	s.UpdatedAt = normalizeTime(s.UpdatedAt)
	if s.Source == "" {
		s.Source = model.SpotSourceVerified
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	if s.Photos == nil {
		s.Photos = []model.Photo{}
	}
}

func newPublicID() string {
	return uuid.NewString()
}

// normalizeTime drops precision neither database keeps.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.RawMessage(b)
}

// nullJSON returns nil for an empty document so the column stores NULL.
func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// nullJSONText is nullJSON for drivers that keep JSON in TEXT columns.
func nullJSONText(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
