package model

import (
	"strconv"
	"time"
)

// Action is a reviewer's verdict on a candidate.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionMerge   Action = "merge"
	ActionEdit    Action = "edit"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionMerge, ActionEdit:
		return true
	}
	return false
}

// AnonymousVoterKey is the single vote slot shared by all unauthenticated reviewers.
const AnonymousVoterKey = "anonymous"

// Voter identifies who cast a vote. A nil UserID means anonymous.
type Voter struct {
	UserID *int64
}

// Key returns the identity a vote is deduplicated on.
func (v Voter) Key() string {
	if v.UserID == nil {
		return AnonymousVoterKey
	}
	return "user:" + strconv.FormatInt(*v.UserID, 10)
}

// Verification is one reviewer's current vote on a candidate. Re-voting
// updates the row in place and bumps Revision.
type Verification struct {
	ID              int64     `json:"id"`
	PublicID        string    `json:"public_id"`
	CandidateID     int64     `json:"candidate_id"`
	Action          Action    `json:"action"`
	Notes           string    `json:"notes,omitempty"`
	ByUser          *int64    `json:"by_user,omitempty"`
	VoterKey        string    `json:"-"`
	MergeIntoSpotID *int64    `json:"merge_into_spot_id,omitempty"`
	Revision        int       `json:"revision"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Tally counts the current votes on a candidate by action.
type Tally struct {
	Approvals  int `json:"approvals"`
	Rejections int `json:"rejections"`
	Merges     int `json:"merges"`
	Edits      int `json:"edits"`
}

// Add increments the counter for action by n.
func (t *Tally) Add(action Action, n int) {
	switch action {
	case ActionApprove:
		t.Approvals += n
	case ActionReject:
		t.Rejections += n
	case ActionMerge:
		t.Merges += n
	case ActionEdit:
		t.Edits += n
	}
}
