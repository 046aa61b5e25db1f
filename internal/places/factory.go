// Package places turns submissions into scored candidates and serves the
// published spot directory.
package places

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/scorer"
	"github.com/michojekunle/amala-atlas/internal/store"
	"github.com/michojekunle/amala-atlas/pkg/geocode"
)

// EvidenceUserSubmit tags evidence attached directly by the submitter.
const EvidenceUserSubmit = "user_submit"

// DefaultCountry is used when neither the submission nor configuration
// names one.
const DefaultCountry = "Nigeria"

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithGeocoder replaces the passthrough geocoder.
func WithGeocoder(g geocode.Client) FactoryOption {
	return func(f *Factory) { f.geocoder = g }
}

// WithScoring sets the keyword vocabulary and signal weights.
func WithScoring(cfg config.ScoringConfig) FactoryOption {
	return func(f *Factory) { f.scoring = cfg }
}

// WithDefaultCountry sets the country applied to submissions without one.
func WithDefaultCountry(country string) FactoryOption {
	return func(f *Factory) {
		if country != "" {
			f.defaultCountry = country
		}
	}
}

// WithFactoryClock overrides the submission timestamp source.
func WithFactoryClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

// Factory builds candidates from submissions and persists both.
type Factory struct {
	store          store.Store
	geocoder       geocode.Client
	scoring        config.ScoringConfig
	defaultCountry string
	now            func() time.Time
}

// NewFactory creates a Factory writing to st.
func NewFactory(st store.Store, opts ...FactoryOption) *Factory {
	f := &Factory{
		store:          st,
		geocoder:       geocode.Passthrough{},
		scoring:        scorer.DefaultScoringConfig(),
		defaultCountry: DefaultCountry,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFactoryFromConfig wires a Factory from application configuration.
func NewFactoryFromConfig(st store.Store, cfg *config.Config) (*Factory, error) {
	if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
		return nil, eris.Wrap(err, "places: scoring config")
	}
	g, err := geocode.NewClient(cfg.Places.Geocoder)
	if err != nil {
		return nil, eris.Wrap(err, "places: geocoder")
	}
	return NewFactory(st,
		WithGeocoder(g),
		WithScoring(cfg.Scoring),
		WithDefaultCountry(cfg.Places.DefaultCountry),
	), nil
}

// BuildCandidate derives a pending candidate from sub without storing
// anything.
func (f *Factory) BuildCandidate(ctx context.Context, sub *model.Submission) (*model.Candidate, error) {
	geo, err := f.geocoder.Geocode(ctx, geocode.AddressInput{
		Street:  sub.Address,
		City:    sub.City,
		State:   sub.State,
		Country: sub.Country,
		Lat:     sub.Lat,
		Lng:     sub.Lng,
	})
	if err != nil {
		return nil, eris.Wrap(err, "places: geocode")
	}

	signals := scorer.ExtractSignals(scorer.SignalInput{
		Name:     sub.Name,
		Address:  sub.Address,
		PhotoURL: sub.PhotoURL,
		Lat:      sub.Lat,
		Lng:      sub.Lng,
	}, f.scoring.Keywords)

	country := sub.Country
	if country == "" {
		country = f.defaultCountry
	}

	cand := &model.Candidate{
		Name:             sub.Name,
		RawAddress:       sub.Address,
		City:             sub.City,
		Country:          country,
		SourceKind:       sourceKindFor(sub.Kind),
		PriceBand:        sub.PriceBand,
		PhotoURL:         sub.PhotoURL,
		SubmittedByEmail: sub.Email,
		Evidence:         []model.Evidence{},
		Signals:          signals,
		Score:            scorer.Score(signals, f.scoring),
		DedupeKey:        scorer.DedupeKey(sub.Name, sub.Lat, sub.Lng),
		GeoPrecision:     model.GeoPrecisionCity,
		Status:           model.CandidateStatusPending,
	}
	if geo != nil {
		cand.Lat, cand.Lng = geo.Lat, geo.Lng
		if geo.Precision != "" {
			cand.GeoPrecision = model.GeoPrecision(geo.Precision)
		}
	}
	if sub.PhotoURL != "" {
		cand.Evidence = append(cand.Evidence, model.Evidence{Kind: EvidenceUserSubmit, PhotoURL: sub.PhotoURL})
	}
	return cand, nil
}

func sourceKindFor(kind model.SubmissionKind) model.SourceKind {
	if kind == model.SubmissionKindAgentic {
		return model.SourceKindAgent
	}
	return model.SourceKindUser
}

// Submit validates sub, builds its candidate, and stores the submission and
// candidate together.
func (f *Factory) Submit(ctx context.Context, sub *model.Submission) (*model.Candidate, error) {
	NormalizeSubmission(sub, f.defaultCountry)
	if err := ValidateSubmission(sub); err != nil {
		return nil, err
	}

	cand, err := f.BuildCandidate(ctx, sub)
	if err != nil {
		return nil, err
	}

	now := f.now()
	sub.CreatedAt = now
	cand.CreatedAt = now
	if err := f.store.CreateSubmission(ctx, sub, cand); err != nil {
		return nil, eris.Wrap(err, "places: submit")
	}

	zap.L().Info("candidate submitted",
		zap.Int64("candidate_id", cand.ID),
		zap.String("kind", string(sub.Kind)),
		zap.Float64("score", cand.Score),
		zap.String("geo_precision", string(cand.GeoPrecision)),
	)
	return cand, nil
}
