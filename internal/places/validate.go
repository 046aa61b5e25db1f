package places

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// Field limits for submissions.
const (
	maxNameLen      = 200
	maxRegionLen    = 120
	maxPriceBandLen = 8
	maxHoursLen     = 200
	maxURLLen       = 500
	maxTagLen       = 40
	maxTags         = 20
)

// NormalizeSubmission trims text fields and applies defaults in place.
func NormalizeSubmission(sub *model.Submission, defaultCountry string) {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Address = strings.TrimSpace(sub.Address)
	sub.City = strings.TrimSpace(sub.City)
	sub.State = strings.TrimSpace(sub.State)
	sub.Country = strings.TrimSpace(sub.Country)
	sub.PriceBand = strings.TrimSpace(sub.PriceBand)
	sub.HoursText = strings.TrimSpace(sub.HoursText)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.PhotoURL = strings.TrimSpace(sub.PhotoURL)

	if sub.Kind == "" {
		sub.Kind = model.SubmissionKindManual
	}
	if sub.Country == "" {
		sub.Country = defaultCountry
	}

	tags := make([]string, 0, len(sub.Tags))
	seen := make(map[string]bool, len(sub.Tags))
	for _, t := range sub.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	sub.Tags = tags
}

// ValidateSubmission reports every problem with sub. Call
// NormalizeSubmission first.
func ValidateSubmission(sub *model.Submission) error {
	fe := model.FieldErrors{}

	if sub.Name == "" {
		fe.Add("name", model.MsgRequired)
	}
	maxLen(fe, "name", sub.Name, maxNameLen)
	if !sub.Kind.Valid() {
		fe.Add("kind", fmt.Sprintf("%q is not a valid choice.", sub.Kind))
	}
	maxLen(fe, "city", sub.City, maxRegionLen)
	maxLen(fe, "state", sub.State, maxRegionLen)
	maxLen(fe, "country", sub.Country, maxRegionLen)
	maxLen(fe, "price_band", sub.PriceBand, maxPriceBandLen)
	maxLen(fe, "hours_text", sub.HoursText, maxHoursLen)

	switch {
	case sub.Lat == nil && sub.Lng == nil:
	case sub.Lat == nil:
		fe.Add("lat", "Provide both lat and lng.")
	case sub.Lng == nil:
		fe.Add("lng", "Provide both lat and lng.")
	default:
		if *sub.Lat < -90 || *sub.Lat > 90 {
			fe.Add("lat", "Must be between -90 and 90.")
		}
		if *sub.Lng < -180 || *sub.Lng > 180 {
			fe.Add("lng", "Must be between -180 and 180.")
		}
	}

	if sub.Email != "" {
		if addr, err := mail.ParseAddress(sub.Email); err != nil || addr.Address != sub.Email {
			fe.Add("email", "Enter a valid email address.")
		}
	}

	if sub.PhotoURL != "" {
		if !validHTTPURL(sub.PhotoURL) {
			fe.Add("photo_url", "Enter a valid URL.")
		}
		maxLen(fe, "photo_url", sub.PhotoURL, maxURLLen)
	}

	if len(sub.RawPayload) > 0 && !isJSONObject(sub.RawPayload) {
		fe.Add("raw_payload", "Must be a JSON object.")
	}

	if len(sub.Tags) > maxTags {
		fe.Add("tags", fmt.Sprintf("Ensure this field has no more than %d elements.", maxTags))
	}
	for _, t := range sub.Tags {
		if utf8.RuneCountInString(t) > maxTagLen {
			fe.Add("tags", fmt.Sprintf("Tag %q is longer than %d characters.", t, maxTagLen))
		}
	}

	return fe.Err()
}

func maxLen(fe model.FieldErrors, field, v string, limit int) {
	if utf8.RuneCountInString(v) > limit {
		fe.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", limit))
	}
}

func isJSONObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
