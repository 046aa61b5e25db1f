// Package verification implements the reviewer quorum that turns pending
// candidates into spots or rejects them.
package verification

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/resilience"
	"github.com/michojekunle/amala-atlas/internal/store"
)

// ErrUnknownAction is returned when a vote names an action the engine does
// not recognize.
var ErrUnknownAction = errors.New("unknown action")

// Thresholds are the vote counts at which a candidate changes state.
type Thresholds struct {
	Approve int
	Reject  int
}

// DefaultThresholds returns the standard quorum: two approvals or three
// rejections.
func DefaultThresholds() Thresholds {
	return Thresholds{Approve: 2, Reject: 3}
}

// ThresholdsFromConfig reads thresholds from configuration, falling back to
// defaults for unset values.
func ThresholdsFromConfig(cfg config.VerificationConfig) Thresholds {
	return Thresholds{Approve: cfg.ApproveThreshold, Reject: cfg.RejectThreshold}.withDefaults()
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.Approve < 1 {
		t.Approve = def.Approve
	}
	if t.Reject < 1 {
		t.Reject = def.Reject
	}
	return t
}

// VoteRequest is one reviewer's action on a candidate.
type VoteRequest struct {
	CandidateID     int64        `json:"candidate_id"`
	Action          model.Action `json:"action"`
	Notes           string       `json:"notes,omitempty"`
	MergeIntoSpotID *int64       `json:"merge_into_spot_id,omitempty"`
	Voter           model.Voter  `json:"-"`
}

// Validate checks the request without touching storage.
func (r VoteRequest) Validate() error {
	fe := model.FieldErrors{}
	if r.CandidateID <= 0 {
		fe.Add("candidate_id", model.MsgRequired)
	}
	if r.Action == "" {
		fe.Add("action", model.MsgRequired)
	}
	if err := fe.Err(); err != nil {
		return err
	}
	if !r.Action.Valid() {
		return eris.Wrapf(ErrUnknownAction, "verification: action %q", r.Action)
	}
	return nil
}

// VoteResult reports the candidate's state after a vote.
type VoteResult struct {
	CandidateID  int64                 `json:"candidate_id"`
	Status       model.CandidateStatus `json:"status"`
	Approvals    int                   `json:"approvals"`
	Rejections   int                   `json:"rejections"`
	Tally        model.Tally           `json:"tally"`
	Transitioned bool                  `json:"transitioned"`
	SpotID       *int64                `json:"spot_id,omitempty"`
	// VoteCreated is false when the voter replaced an earlier vote.
	VoteCreated  bool                `json:"vote_created"`
	Verification *model.Verification `json:"verification"`
}

// SpotCreated reports whether this vote promoted the candidate to a spot.
func (r *VoteResult) SpotCreated() bool {
	return r.SpotID != nil
}

// Message is a short human-readable summary of the outcome.
func (r *VoteResult) Message() string {
	switch {
	case r.Transitioned && r.Status == model.CandidateStatusApproved:
		return "candidate approved and published as a spot"
	case r.Transitioned && r.Status == model.CandidateStatusRejected:
		return "candidate rejected"
	default:
		return "vote recorded"
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetry sets the retry policy applied to each vote transaction.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// WithClock overrides the time source used for spot and status timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine applies votes and enforces the quorum rules.
type Engine struct {
	store      store.Store
	thresholds Thresholds
	retry      resilience.RetryConfig
	now        func() time.Time
}

// NewEngine creates an Engine backed by st.
func NewEngine(st store.Store, th Thresholds, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		thresholds: th.withDefaults(),
		retry:      resilience.DefaultRetryConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.retry.OnRetry == nil {
		e.retry.OnRetry = resilience.RetryLogger("verification", "cast_vote")
	}
	return e
}

// Thresholds returns the engine's effective thresholds.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// CastVote records req and applies any resulting state transition in a
// single transaction that holds the candidate's row lock. Transient
// storage failures retry the whole transaction.
func (e *Engine) CastVote(ctx context.Context, req VoteRequest) (*VoteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*VoteResult, error) {
		return e.castOnce(ctx, req)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "verification: cast vote on candidate %d", req.CandidateID)
	}

	log := zap.L().With(
		zap.Int64("candidate_id", res.CandidateID),
		zap.String("action", string(req.Action)),
		zap.String("voter", req.Voter.Key()),
	)
	if res.Transitioned {
		fields := []zap.Field{zap.String("status", string(res.Status))}
		if res.SpotID != nil {
			fields = append(fields, zap.Int64("spot_id", *res.SpotID))
		}
		log.Info("candidate transitioned", fields...)
	} else {
		log.Debug("vote recorded",
			zap.Int("approvals", res.Approvals),
			zap.Int("rejections", res.Rejections),
			zap.Bool("vote_created", res.VoteCreated),
		)
	}
	return res, nil
}

func (e *Engine) castOnce(ctx context.Context, req VoteRequest) (*VoteResult, error) {
	var res *VoteResult
	err := e.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cand, err := tx.LockCandidate(ctx, req.CandidateID)
		if err != nil {
			return err
		}

		vote := &model.Verification{
			CandidateID:     cand.ID,
			Action:          req.Action,
			Notes:           req.Notes,
			ByUser:          req.Voter.UserID,
			VoterKey:        req.Voter.Key(),
			MergeIntoSpotID: req.MergeIntoSpotID,
		}
		if err := tx.UpsertVerification(ctx, vote); err != nil {
			return err
		}

		tally, err := tx.TallyVerifications(ctx, cand.ID)
		if err != nil {
			return err
		}

		r := &VoteResult{
			CandidateID:  cand.ID,
			Status:       cand.Status,
			Approvals:    tally.Approvals,
			Rejections:   tally.Rejections,
			Tally:        tally,
			VoteCreated:  vote.Revision <= 1,
			Verification: vote,
		}

		next, ok := nextStatus(req.Action, cand.Status, tally, e.thresholds)
		if !ok {
			res = r
			return nil
		}

		now := e.now()
		if next == model.CandidateStatusApproved {
			spot := SpotFromCandidate(cand, now)
			if err := tx.InsertSpot(ctx, spot); err != nil {
				return err
			}
			r.SpotID = &spot.ID
		}
		if err := tx.SetCandidateStatus(ctx, cand.ID, next, now); err != nil {
			return err
		}
		r.Status = next
		r.Transitioned = true
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// nextStatus decides whether the vote just cast moves the candidate out of
// pending. Only the action being cast is considered, and terminal candidates
// never move.
func nextStatus(action model.Action, current model.CandidateStatus, tally model.Tally, th Thresholds) (model.CandidateStatus, bool) {
	if current.Terminal() {
		return current, false
	}
	switch action {
	case model.ActionApprove:
		if tally.Approvals >= th.Approve {
			return model.CandidateStatusApproved, true
		}
	case model.ActionReject:
		if tally.Rejections >= th.Reject {
			return model.CandidateStatusRejected, true
		}
	}
	return current, false
}

// Queue returns pending candidates for review, best first.
func (e *Engine) Queue(ctx context.Context, filter store.QueueFilter) ([]model.Candidate, error) {
	out, err := e.store.ListQueue(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "verification: queue")
	}
	return out, nil
}

// Candidate returns a candidate together with its current votes.
func (e *Engine) Candidate(ctx context.Context, id int64) (*model.Candidate, []model.Verification, error) {
	cand, err := e.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, nil, eris.Wrap(err, "verification: get candidate")
	}
	votes, err := e.store.ListVerifications(ctx, id)
	if err != nil {
		return nil, nil, eris.Wrap(err, "verification: list votes")
	}
	return cand, votes, nil
}
