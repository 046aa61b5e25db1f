package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/michojekunle/amala-atlas/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeClock returns a clock that advances one second per call.
func fakeClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func f64(v float64) *float64 { return &v }

func seedCandidate(t *testing.T, st Store, name, city string, score float64, kind model.SourceKind) *model.Candidate {
	t.Helper()
	sub := &model.Submission{Kind: model.SubmissionKindManual, Name: name, City: city, Country: "Nigeria"}
	cand := &model.Candidate{
		Name:         name,
		City:         city,
		Country:      "Nigeria",
		SourceKind:   kind,
		Score:        score,
		DedupeKey:    "name:" + name,
		GeoPrecision: model.GeoPrecisionCity,
		Status:       model.CandidateStatusPending,
	}
	require.NoError(t, st.CreateSubmission(context.Background(), sub, cand))
	return cand
}

// --- Submissions & candidates ---

func TestSQLite_CreateSubmission_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	sub := &model.Submission{
		Kind:       model.SubmissionKindManual,
		Name:       "Iya Basira Amala",
		Address:    "12 Ibadan Rd",
		City:       "Ibadan",
		Country:    "Nigeria",
		Lat:        f64(7.38),
		Lng:        f64(3.93),
		Tags:       []string{"amala", "ewedu"},
		PhotoURL:   "http://x/p.jpg",
		RawPayload: json.RawMessage(`{"source":"form"}`),
	}
	cand := &model.Candidate{
		Name:         sub.Name,
		RawAddress:   sub.Address,
		Lat:          sub.Lat,
		Lng:          sub.Lng,
		City:         sub.City,
		Country:      sub.Country,
		SourceKind:   model.SourceKindUser,
		PhotoURL:     sub.PhotoURL,
		OpenHours:    json.RawMessage(`{"mon":"8-20"}`),
		Evidence:     []model.Evidence{{Kind: "user_submit", PhotoURL: sub.PhotoURL}},
		Signals:      model.Signals{KeywordHits: 1, HasPhoto: true, HasCoords: true},
		Score:        0.55,
		DedupeKey:    "name:iya basira amala",
		GeoPrecision: model.GeoPrecisionAddress,
	}

	require.NoError(t, st.CreateSubmission(ctx, sub, cand))
	assert.NotZero(t, sub.ID)
	assert.NotEmpty(t, sub.PublicID)
	assert.NotZero(t, cand.ID)
	assert.NotEmpty(t, cand.PublicID)
	assert.Equal(t, model.CandidateStatusPending, cand.Status)

	got, err := st.GetCandidate(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, cand.PublicID, got.PublicID)
	assert.Equal(t, "Iya Basira Amala", got.Name)
	assert.Equal(t, "12 Ibadan Rd", got.RawAddress)
	require.NotNil(t, got.Lat)
	assert.InDelta(t, 7.38, *got.Lat, 1e-9)
	assert.Equal(t, model.SourceKindUser, got.SourceKind)
	assert.Equal(t, cand.Evidence, got.Evidence)
	assert.Equal(t, cand.Signals, got.Signals)
	assert.InDelta(t, 0.55, got.Score, 1e-9)
	assert.Equal(t, model.GeoPrecisionAddress, got.GeoPrecision)
	assert.JSONEq(t, `{"mon":"8-20"}`, string(got.OpenHours))
	assert.True(t, got.CreatedAt.Equal(cand.CreatedAt), "created_at %v != %v", got.CreatedAt, cand.CreatedAt)
}

func TestSQLite_CreateSubmission_NullableFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cand := seedCandidate(t, st, "Mama Put", "Lagos", 0.1, model.SourceKindUser)

	got, err := st.GetCandidate(ctx, cand.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lng)
	assert.Nil(t, got.OpenHours)
	assert.Equal(t, []model.Evidence{}, got.Evidence)
}

func TestSQLite_CreateSubmission_RejectsHalfCoords(t *testing.T) {
	st := newTestSQLiteStore(t)

	sub := &model.Submission{Kind: model.SubmissionKindManual, Name: "x", Lat: f64(1)}
	cand := &model.Candidate{Name: "x"}
	err := st.CreateSubmission(context.Background(), sub, cand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert submission")
}

func TestSQLite_CreateSubmission_InvalidPayload(t *testing.T) {
	st := newTestSQLiteStore(t)

	sub := &model.Submission{Kind: model.SubmissionKindManual, Name: "x", RawPayload: json.RawMessage(`{nope`)}
	err := st.CreateSubmission(context.Background(), sub, &model.Candidate{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw payload")
}

func TestSQLite_GetCandidate_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCandidate(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Queue ---

func TestSQLite_ListQueue_OrderAndFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	st.now = fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	low := seedCandidate(t, st, "Low", "Lagos", 0.10, model.SourceKindUser)
	olderTie := seedCandidate(t, st, "Older", "Ibadan", 0.45, model.SourceKindAgent)
	newerTie := seedCandidate(t, st, "Newer", "lagos", 0.45, model.SourceKindUser)
	top := seedCandidate(t, st, "Top", "Abeokuta", 0.55, model.SourceKindUser)

	all, err := st.ListQueue(ctx, QueueFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []int64{top.ID, newerTie.ID, olderTie.ID, low.ID},
		[]int64{all[0].ID, all[1].ID, all[2].ID, all[3].ID})

	lagos, err := st.ListQueue(ctx, QueueFilter{City: "LAGOS"})
	require.NoError(t, err)
	require.Len(t, lagos, 2)
	assert.Equal(t, newerTie.ID, lagos[0].ID)
	assert.Equal(t, low.ID, lagos[1].ID)

	agents, err := st.ListQueue(ctx, QueueFilter{SourceKind: "Agent"})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, olderTie.ID, agents[0].ID)

	limited, err := st.ListQueue(ctx, QueueFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, top.ID, limited[0].ID)
}

func TestSQLite_ListQueue_UnicodeCity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	oyo := seedCandidate(t, st, "Amala Oyo", "Ọ̀yọ́", 0.4, model.SourceKindUser)
	seedCandidate(t, st, "Elsewhere", "Osogbo", 0.4, model.SourceKindUser)

	for _, city := range []string{"Ọ̀yọ́", "Ọ̀YỌ́", "ọ̀yọ́"} {
		got, err := st.ListQueue(ctx, QueueFilter{City: city})
		require.NoError(t, err)
		require.Len(t, got, 1, city)
		assert.Equal(t, oyo.ID, got[0].ID)
	}
}

func TestSQLite_ListQueue_ExcludesDecided(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	pending := seedCandidate(t, st, "Pending", "Lagos", 0.3, model.SourceKindUser)
	approved := seedCandidate(t, st, "Approved", "Lagos", 0.5, model.SourceKindUser)

	require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.SetCandidateStatus(ctx, approved.ID, model.CandidateStatusApproved, time.Now())
	}))

	queue, err := st.ListQueue(ctx, QueueFilter{})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)
}

func TestSQLite_ListQueue_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	queue, err := st.ListQueue(context.Background(), QueueFilter{})
	require.NoError(t, err)
	assert.Empty(t, queue)
	assert.NotNil(t, queue)
}

// --- Transactions ---

func TestSQLite_Tx_UpsertVerification(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cand := seedCandidate(t, st, "Amala Spot", "Lagos", 0.35, model.SourceKindUser)

	user := int64(7)
	vote := func(action model.Action, notes string) *model.Verification {
		v := &model.Verification{
			CandidateID: cand.ID,
			Action:      action,
			Notes:       notes,
			ByUser:      &user,
			VoterKey:    model.Voter{UserID: &user}.Key(),
		}
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.UpsertVerification(ctx, v)
		}))
		return v
	}

	first := vote(model.ActionApprove, "looks right")
	assert.Equal(t, 1, first.Revision)
	second := vote(model.ActionReject, "changed my mind")
	assert.Equal(t, 2, second.Revision)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PublicID, second.PublicID)

	votes, err := st.ListVerifications(ctx, cand.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, model.ActionReject, votes[0].Action)
	assert.Equal(t, "changed my mind", votes[0].Notes)
	assert.Equal(t, "user:7", votes[0].VoterKey)
	require.NotNil(t, votes[0].ByUser)
	assert.Equal(t, int64(7), *votes[0].ByUser)
}

func TestSQLite_Tx_TallyAndSpot(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cand := seedCandidate(t, st, "Amala Spot", "Lagos", 0.35, model.SourceKindUser)

	var tally model.Tally
	var spot model.Spot
	err := st.InTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockCandidate(ctx, cand.ID)
		require.NoError(t, err)
		assert.Equal(t, cand.Name, locked.Name)

		for i, a := range []model.Action{model.ActionApprove, model.ActionApprove, model.ActionReject, model.ActionEdit} {
			uid := int64(i + 1)
			v := &model.Verification{CandidateID: cand.ID, Action: a, ByUser: &uid, VoterKey: model.Voter{UserID: &uid}.Key()}
			if err := tx.UpsertVerification(ctx, v); err != nil {
				return err
			}
		}
		anon := &model.Verification{CandidateID: cand.ID, Action: model.ActionMerge, VoterKey: model.AnonymousVoterKey}
		if err := tx.UpsertVerification(ctx, anon); err != nil {
			return err
		}

		if tally, err = tx.TallyVerifications(ctx, cand.ID); err != nil {
			return err
		}

		spot = model.Spot{Name: locked.Name, City: locked.City, Country: locked.Country,
			Photos: []model.Photo{{URL: "http://x/p.jpg"}}}
		if err := tx.InsertSpot(ctx, &spot); err != nil {
			return err
		}
		return tx.SetCandidateStatus(ctx, cand.ID, model.CandidateStatusApproved, time.Now())
	})
	require.NoError(t, err)

	assert.Equal(t, model.Tally{Approvals: 2, Rejections: 1, Merges: 1, Edits: 1}, tally)
	assert.NotZero(t, spot.ID)
	assert.Equal(t, model.SpotSourceVerified, spot.Source)

	got, err := st.GetSpot(ctx, spot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amala Spot", got.Name)
	assert.Equal(t, []string{}, got.Tags)
	assert.Equal(t, "http://x/p.jpg", got.Photos[0].URL)

	c, err := st.GetCandidate(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CandidateStatusApproved, c.Status)
}

func TestSQLite_Tx_RollbackOnError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cand := seedCandidate(t, st, "Amala Spot", "Lagos", 0.35, model.SourceKindUser)

	err := st.InTx(ctx, func(ctx context.Context, tx Tx) error {
		v := &model.Verification{CandidateID: cand.ID, Action: model.ActionApprove, VoterKey: model.AnonymousVoterKey}
		require.NoError(t, tx.UpsertVerification(ctx, v))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	votes, err := st.ListVerifications(ctx, cand.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSQLite_Tx_LockCandidate_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockCandidate(ctx, 42)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Tx_SetCandidateStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.SetCandidateStatus(ctx, 42, model.CandidateStatusRejected, time.Now())
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Spots ---

func seedSpots(t *testing.T, st *SQLiteStore) {
	t.Helper()
	st.now = fakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	spots := []model.Spot{
		{Name: "Amala Shitta", Lat: 6.50, Lng: 3.36, Address: "Shitta, Surulere", City: "Lagos", PriceBand: "₦", Tags: []string{"amala", "ewedu"}},
		{Name: "Iya Oyo", Lat: 7.38, Lng: 3.93, Address: "Bodija", City: "Ibadan", PriceBand: "₦₦", Tags: []string{"amala"}},
		{Name: "Buka 50%", Lat: 6.60, Lng: 3.35, Address: "Ikeja", City: "lagos", PriceBand: "₦₦", Tags: []string{"buka", "ewedu"}},
	}
	n, err := st.ImportSpots(context.Background(), spots)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func spotNames(spots []model.Spot) []string {
	out := make([]string, len(spots))
	for i, s := range spots {
		out[i] = s.Name
	}
	return out
}

func TestSQLite_ListSpots_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSpots(t, st)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter SpotFilter
		want   []string
	}{
		{"all newest first", SpotFilter{}, []string{"Buka 50%", "Iya Oyo", "Amala Shitta"}},
		{"city case-insensitive", SpotFilter{City: "LAGOS"}, []string{"Buka 50%", "Amala Shitta"}},
		{"price band", SpotFilter{PriceBand: "₦₦"}, []string{"Buka 50%", "Iya Oyo"}},
		{"single tag", SpotFilter{Tags: []string{"ewedu"}}, []string{"Buka 50%", "Amala Shitta"}},
		{"all tags required", SpotFilter{Tags: []string{"amala", "ewedu"}}, []string{"Amala Shitta"}},
		{"query on address", SpotFilter{Query: "bodija"}, []string{"Iya Oyo"}},
		{"query on name", SpotFilter{Query: "SHITTA"}, []string{"Amala Shitta"}},
		{"query escapes wildcards", SpotFilter{Query: "50%"}, []string{"Buka 50%"}},
		{"bbox", SpotFilter{BBox: geom.NewBounds(geom.XY).Set(3.3, 6.4, 3.4, 6.55)}, []string{"Amala Shitta"}},
		{"no match", SpotFilter{City: "Abuja"}, []string{}},
		{"limit offset", SpotFilter{Limit: 1, Offset: 1}, []string{"Iya Oyo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListSpots(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spotNames(got))
		})
	}
}

func TestSQLite_ListSpots_UnicodeFold(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := st.ImportSpots(ctx, []model.Spot{
		{Name: "Ìyá Àmàlà", Lat: 7.85, Lng: 3.93, City: "Ọ̀yọ́", Tags: []string{}},
		{Name: "Buka", Lat: 6.5, Lng: 3.3, City: "Lagos", Tags: []string{}},
	})
	require.NoError(t, err)

	got, err := st.ListSpots(ctx, SpotFilter{City: "Ọ̀YỌ́"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ìyá Àmàlà"}, spotNames(got))

	got, err = st.ListSpots(ctx, SpotFilter{Query: "ÌYÁ"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ìyá Àmàlà"}, spotNames(got))

	n, err := st.CountSpots(ctx, SpotFilter{City: "ọ̀yọ́"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCaseFold(t *testing.T) {
	assert.Equal(t, caseFold("ọ̀yọ́"), caseFold("Ọ̀YỌ́"))
	assert.Equal(t, "lagos", caseFold("LAGOS"))
	// Precomposed and decomposed forms fold to the same string.
	assert.Equal(t, caseFold("\u00c0mala"), caseFold("A\u0300MALA"))
}

func TestSQLite_CountSpots(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSpots(t, st)
	ctx := context.Background()

	n, err := st.CountSpots(ctx, SpotFilter{City: "lagos", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.CountSpots(ctx, SpotFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLite_GetSpot_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetSpot(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ImportSpots_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.ImportSpots(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Contains(t, sqliteDSN("/tmp/a.db"), "/tmp/a.db?_pragma=busy_timeout(5000)")
	assert.Contains(t, sqliteDSN("file:a.db?mode=rwc"), "file:a.db?mode=rwc&_pragma=")
	assert.Contains(t, sqliteDSN("a.db"), "_txlock=immediate")
}
