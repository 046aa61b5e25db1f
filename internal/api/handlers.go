package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/store"
	"github.com/michojekunle/amala-atlas/internal/verification"
)

type submitRequest struct {
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Address    string          `json:"address"`
	City       string          `json:"city"`
	State      string          `json:"state"`
	Country    string          `json:"country"`
	Lat        *float64        `json:"lat"`
	Lng        *float64        `json:"lng"`
	PriceBand  string          `json:"price_band"`
	Tags       []string        `json:"tags"`
	HoursText  string          `json:"hours_text"`
	Email      string          `json:"email"`
	PhotoURL   string          `json:"photo_url"`
	Transcript string          `json:"transcript"`
	RawPayload json.RawMessage `json:"raw_payload"`
}

type submitResponse struct {
	OK          bool                  `json:"ok"`
	CandidateID int64                 `json:"candidate_id"`
	PublicID    string                `json:"public_id"`
	Status      model.CandidateStatus `json:"status"`
	Score       float64               `json:"score"`
}

func (h *handler) submitCandidate(w http.ResponseWriter, r *http.Request) {
	voter, err := voterFromRequest(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	sub := &model.Submission{
		Kind:        model.SubmissionKind(strings.TrimSpace(req.Kind)),
		Name:        req.Name,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
		Lat:         req.Lat,
		Lng:         req.Lng,
		PriceBand:   req.PriceBand,
		Tags:        req.Tags,
		HoursText:   req.HoursText,
		Email:       req.Email,
		PhotoURL:    req.PhotoURL,
		SubmittedBy: voter.UserID,
		Transcript:  req.Transcript,
		RawPayload:  req.RawPayload,
	}
	cand, err := h.Factory.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		OK:          true,
		CandidateID: cand.ID,
		PublicID:    cand.PublicID,
		Status:      cand.Status,
		Score:       cand.Score,
	})
}

// queueItem is the reviewer-facing view of a pending candidate.
type queueItem struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	City       string           `json:"city"`
	Score      float64          `json:"score"`
	SourceKind model.SourceKind `json:"source_kind"`
	Evidence   []model.Evidence `json:"evidence"`
	Signals    model.Signals    `json:"signals"`
	Lat        *float64         `json:"lat"`
	Lng        *float64         `json:"lng"`
	RawAddress string           `json:"raw_address"`
}

func (h *handler) verifyQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.QueueFilter{
		City:       strings.TrimSpace(q.Get("city")),
		SourceKind: strings.TrimSpace(q.Get("source_kind")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, model.FieldErrors{"limit": {"A valid positive integer is required."}}, "")
			return
		}
		filter.Limit = n
	}

	cands, err := h.Engine.Queue(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	items := make([]queueItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, queueItem{
			ID:         c.ID,
			Name:       c.Name,
			City:       c.City,
			Score:      c.Score,
			SourceKind: c.SourceKind,
			Evidence:   c.Evidence,
			Signals:    c.Signals,
			Lat:        c.Lat,
			Lng:        c.Lng,
			RawAddress: c.RawAddress,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type candidateDetail struct {
	*model.Candidate
	Verifications []model.Verification `json:"verifications"`
}

func (h *handler) verifyCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	cand, votes, err := h.Engine.Candidate(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "candidate not found")
		return
	}
	writeJSON(w, http.StatusOK, candidateDetail{Candidate: cand, Verifications: votes})
}

type actionRequest struct {
	CandidateID     int64  `json:"candidate_id"`
	Action          string `json:"action"`
	Notes           string `json:"notes"`
	MergeIntoSpotID *int64 `json:"merge_into_spot_id"`
}

type actionResponse struct {
	OK         bool                  `json:"ok"`
	Status     model.CandidateStatus `json:"status"`
	Approvals  int                   `json:"approvals"`
	Rejections int                   `json:"rejections"`
	Message    string                `json:"message"`
	SpotID     *int64                `json:"spot_id,omitempty"`
}

func (h *handler) verifyAction(w http.ResponseWriter, r *http.Request) {
	voter, err := voterFromRequest(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	var req actionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	res, err := h.Engine.CastVote(r.Context(), verification.VoteRequest{
		CandidateID:     req.CandidateID,
		Action:          model.Action(strings.ToLower(strings.TrimSpace(req.Action))),
		Notes:           req.Notes,
		MergeIntoSpotID: req.MergeIntoSpotID,
		Voter:           voter,
	})
	if err != nil {
		writeError(w, r, err, "candidate not found")
		return
	}

	status := http.StatusOK
	if res.SpotCreated() {
		status = http.StatusCreated
	}
	writeJSON(w, status, actionResponse{
		OK:         true,
		Status:     res.Status,
		Approvals:  res.Approvals,
		Rejections: res.Rejections,
		Message:    res.Message(),
		SpotID:     res.SpotID,
	})
}

func (h *handler) listSpots(w http.ResponseWriter, r *http.Request) {
	q, err := h.Directory.ParseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	if q.Paginate {
		page, err := h.Directory.Page(r.Context(), q.Filter, q.Page, q.PageSize)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	spots, err := h.Directory.List(r.Context(), q.Filter)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

func (h *handler) getSpot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	spot, err := h.Directory.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "spot not found")
		return
	}
	writeJSON(w, http.StatusOK, spot)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}
