package store

import (
	"context"
	"errors"
	"time"

	"github.com/twpayne/go-geom"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// QueueFilter narrows the verification queue.
type QueueFilter struct {
	City       string `json:"city,omitempty"`
	SourceKind string `json:"source_kind,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SpotFilter narrows spot listings. String filters are case-insensitive
// exact matches except Query, which is a substring match on name, city and
// address. Every tag in Tags must be present on the spot.
type SpotFilter struct {
	BBox      *geom.Bounds `json:"-"`
	City      string       `json:"city,omitempty"`
	PriceBand string       `json:"price_band,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
	Query     string       `json:"query,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for submissions, candidates,
// verifications and spots.
type Store interface {
	// Submissions and candidates
	CreateSubmission(ctx context.Context, sub *model.Submission, cand *model.Candidate) error
	GetCandidate(ctx context.Context, id int64) (*model.Candidate, error)
	ListVerifications(ctx context.Context, candidateID int64) ([]model.Verification, error)
	ListQueue(ctx context.Context, filter QueueFilter) ([]model.Candidate, error)

	// InTx runs fn in a single write transaction. fn's error rolls it back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Spots
	GetSpot(ctx context.Context, id int64) (*model.Spot, error)
	ListSpots(ctx context.Context, filter SpotFilter) ([]model.Spot, error)
	CountSpots(ctx context.Context, filter SpotFilter) (int, error)
	ImportSpots(ctx context.Context, spots []model.Spot) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the set of operations a vote needs while it holds the candidate lock.
type Tx interface {
	// LockCandidate reads the candidate and holds its row lock until the
	// transaction ends.
	LockCandidate(ctx context.Context, id int64) (*model.Candidate, error)

	// UpsertVerification inserts the voter's vote or overwrites their
	// previous one. ID, PublicID, Revision and CreatedAt are filled in.
	UpsertVerification(ctx context.Context, v *model.Verification) error

	TallyVerifications(ctx context.Context, candidateID int64) (model.Tally, error)
	InsertSpot(ctx context.Context, spot *model.Spot) error
	SetCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus, at time.Time) error
}
