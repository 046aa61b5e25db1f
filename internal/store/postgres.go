package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/michojekunle/amala-atlas/internal/db"
	"github.com/michojekunle/amala-atlas/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           BIGSERIAL PRIMARY KEY,
	public_id    TEXT NOT NULL UNIQUE,
	kind         TEXT NOT NULL DEFAULT 'manual' CHECK (kind IN ('manual', 'agentic')),
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT 'Nigeria',
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	price_band   TEXT NOT NULL DEFAULT '',
	tags         JSONB NOT NULL DEFAULT '[]',
	hours_text   TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	photo_url    TEXT NOT NULL DEFAULT '',
	submitted_by BIGINT,
	transcript   TEXT NOT NULL DEFAULT '',
	raw_payload  JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((lat IS NULL) = (lng IS NULL))
);

CREATE TABLE IF NOT EXISTS candidates (
	id                 BIGSERIAL PRIMARY KEY,
	public_id          TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	raw_address        TEXT NOT NULL DEFAULT '',
	lat                DOUBLE PRECISION,
	lng                DOUBLE PRECISION,
	city               TEXT NOT NULL DEFAULT '',
	country            TEXT NOT NULL DEFAULT 'Nigeria',
	source_url         TEXT NOT NULL DEFAULT '',
	source_kind        TEXT NOT NULL DEFAULT 'user',
	price_band         TEXT NOT NULL DEFAULT '',
	photo_url          TEXT NOT NULL DEFAULT '',
	open_hours         JSONB,
	submitted_by_email TEXT NOT NULL DEFAULT '',
	evidence           JSONB NOT NULL DEFAULT '[]',
	signals            JSONB NOT NULL DEFAULT '{}',
	score              DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (score >= 0 AND score <= 1),
	dedupe_key         TEXT NOT NULL DEFAULT '',
	geo_precision      TEXT NOT NULL DEFAULT 'city',
	status             TEXT NOT NULL DEFAULT 'pending_verification'
	                   CHECK (status IN ('pending_verification', 'approved', 'rejected')),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_queue ON candidates(status, score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_candidates_dedupe_key ON candidates(dedupe_key);

CREATE TABLE IF NOT EXISTS verifications (
	id                 BIGSERIAL PRIMARY KEY,
	public_id          TEXT NOT NULL UNIQUE,
	candidate_id       BIGINT NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
	voter_key          TEXT NOT NULL,
	by_user            BIGINT,
	action             TEXT NOT NULL CHECK (action IN ('approve', 'reject', 'merge', 'edit')),
	notes              TEXT NOT NULL DEFAULT '',
	merge_into_spot_id BIGINT,
	revision           INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (candidate_id, voter_key)
);

CREATE TABLE IF NOT EXISTS spots (
	id         BIGSERIAL PRIMARY KEY,
	public_id  TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng        DOUBLE PRECISION NOT NULL DEFAULT 0,
	address    TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT 'Nigeria',
	zipcode    TEXT NOT NULL DEFAULT '',
	price_band TEXT NOT NULL DEFAULT '',
	tags       JSONB NOT NULL DEFAULT '[]',
	photos     JSONB NOT NULL DEFAULT '[]',
	open_hours JSONB,
	source     TEXT NOT NULL DEFAULT 'verified',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_spots_created_at ON spots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_spots_city ON spots(LOWER(city));
CREATE INDEX IF NOT EXISTS idx_spots_lng_lat ON spots(lng, lat);
CREATE INDEX IF NOT EXISTS idx_spots_tags ON spots USING GIN (tags);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func pgTime(t *time.Time) any { return t }

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// CreateSubmission stores the submission and the candidate built from it in
// one transaction.
func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission, cand *model.Candidate) error {
	now := s.clock()
	tags, payload, err := prepareSubmission(sub, now)
	if err != nil {
		return eris.Wrap(err, "postgres: create submission")
	}
	prepareCandidate(cand, now)
	enc, err := encodeCandidate(cand)
	if err != nil {
		return eris.Wrap(err, "postgres: create submission")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin create submission")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO submissions
		(public_id, kind, name, address, city, state, country, lat, lng, price_band, tags,
		 hours_text, email, photo_url, submitted_by, transcript, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id`,
		sub.PublicID, string(sub.Kind), sub.Name, sub.Address, sub.City, sub.State, sub.Country,
		sub.Lat, sub.Lng, sub.PriceBand, tags, sub.HoursText, sub.Email, sub.PhotoURL,
		sub.SubmittedBy, sub.Transcript, payload, sub.CreatedAt,
	).Scan(&sub.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert submission")
	}

	err = tx.QueryRow(ctx, `INSERT INTO candidates
		(public_id, name, raw_address, lat, lng, city, country, source_url, source_kind,
		 price_band, photo_url, open_hours, submitted_by_email, evidence, signals, score,
		 dedupe_key, geo_precision, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		cand.PublicID, cand.Name, cand.RawAddress, cand.Lat, cand.Lng, cand.City, cand.Country,
		cand.SourceURL, string(cand.SourceKind), cand.PriceBand, cand.PhotoURL, nullJSON(cand.OpenHours),
		cand.SubmittedByEmail, enc.evidence, enc.signals, cand.Score, cand.DedupeKey,
		string(cand.GeoPrecision), string(cand.Status), cand.CreatedAt, cand.UpdatedAt,
	).Scan(&cand.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert candidate")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit create submission")
}

// GetCandidate returns a candidate by id.
func (s *PostgresStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columnList(candidateColumns)+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row, pgTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get candidate %d", id)
	}
	return c, nil
}

// ListVerifications returns a candidate's votes, oldest first.
func (s *PostgresStore) ListVerifications(ctx context.Context, candidateID int64) ([]model.Verification, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columnList(verificationColumns)+`
		FROM verifications WHERE candidate_id = $1 ORDER BY created_at, id`, candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list verifications")
	}
	defer rows.Close()

	out := []model.Verification{}
	for rows.Next() {
		v, err := scanVerification(rows, pgTime)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan verification")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list verifications")
}

// ListQueue returns pending candidates, highest score first.
func (s *PostgresStore) ListQueue(ctx context.Context, filter QueueFilter) ([]model.Candidate, error) {
	query, args, err := postgresDialect.queueQuery(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build queue query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queue")
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows, pgTime)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list queue")
}

// InTx runs fn inside a transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx, now: s.clock}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// GetSpot returns a spot by id.
func (s *PostgresStore) GetSpot(ctx context.Context, id int64) (*model.Spot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columnList(spotColumns)+` FROM spots WHERE id = $1`, id)
	spot, err := scanSpot(row, pgTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: spot %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get spot %d", id)
	}
	return spot, nil
}

// ListSpots returns spots matching filter, newest first.
func (s *PostgresStore) ListSpots(ctx context.Context, filter SpotFilter) ([]model.Spot, error) {
	query, args, err := postgresDialect.spotsQuery(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build spots query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list spots")
	}
	defer rows.Close()

	out := []model.Spot{}
	for rows.Next() {
		spot, err := scanSpot(rows, pgTime)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan spot")
		}
		out = append(out, *spot)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list spots")
}

// CountSpots returns how many spots match filter, ignoring Limit and Offset.
func (s *PostgresStore) CountSpots(ctx context.Context, filter SpotFilter) (int, error) {
	query, args, err := postgresDialect.countSpotsQuery(filter).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build count query")
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count spots")
	}
	return n, nil
}

var spotCopyColumns = []string{
	"public_id", "name", "lat", "lng", "address", "city", "state", "country",
	"zipcode", "price_band", "tags", "photos", "open_hours", "source",
	"created_at", "updated_at",
}

// ImportSpots bulk-loads spots with COPY.
func (s *PostgresStore) ImportSpots(ctx context.Context, spots []model.Spot) (int64, error) {
	now := s.clock()
	rows := make([][]any, 0, len(spots))
	for i := range spots {
		sp := &spots[i]
		prepareSpot(sp, now)
		enc, err := encodeSpot(sp)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode spot %q", sp.Name)
		}
		rows = append(rows, []any{
			sp.PublicID, sp.Name, sp.Lat, sp.Lng, sp.Address, sp.City, sp.State, sp.Country,
			sp.Zipcode, sp.PriceBand, enc.tags, enc.photos, nullJSON(sp.OpenHours), sp.Source,
			sp.CreatedAt, sp.UpdatedAt,
		})
	}
	n, err := db.CopyFrom(ctx, s.pool, "spots", spotCopyColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import spots")
	}
	return n, nil
}

// pgTx implements Tx on a pgx transaction.
type pgTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *pgTx) LockCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+columnList(candidateColumns)+` FROM candidates WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCandidate(row, pgTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: lock candidate %d", id)
	}
	return c, nil
}

func (t *pgTx) UpsertVerification(ctx context.Context, v *model.Verification) error {
	if v.PublicID == "" {
		v.PublicID = newPublicID()
	}
	at := normalizeTime(t.now())
	err := t.tx.QueryRow(ctx, `INSERT INTO verifications
		(public_id, candidate_id, voter_key, by_user, action, notes, merge_into_spot_id, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8)
		ON CONFLICT (candidate_id, voter_key) DO UPDATE SET
			action = EXCLUDED.action,
			notes = EXCLUDED.notes,
			merge_into_spot_id = EXCLUDED.merge_into_spot_id,
			revision = verifications.revision + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING id, public_id, revision, created_at`,
		v.PublicID, v.CandidateID, v.VoterKey, v.ByUser, string(v.Action), v.Notes, v.MergeIntoSpotID, at,
	).Scan(&v.ID, &v.PublicID, &v.Revision, &v.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert verification for candidate %d", v.CandidateID)
	}
	v.UpdatedAt = at
	return nil
}

func (t *pgTx) TallyVerifications(ctx context.Context, candidateID int64) (model.Tally, error) {
	rows, err := t.tx.Query(ctx, `SELECT action, COUNT(*) FROM verifications WHERE candidate_id = $1 GROUP BY action`, candidateID)
	if err != nil {
		return model.Tally{}, eris.Wrap(err, "postgres: tally verifications")
	}
	defer rows.Close()

	var tally model.Tally
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return model.Tally{}, eris.Wrap(err, "postgres: scan tally")
		}
		tally.Add(model.Action(action), n)
	}
	return tally, eris.Wrap(rows.Err(), "postgres: tally verifications")
}

func (t *pgTx) InsertSpot(ctx context.Context, spot *model.Spot) error {
	prepareSpot(spot, t.now())
	enc, err := encodeSpot(spot)
	if err != nil {
		return eris.Wrap(err, "postgres: insert spot")
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO spots
		(public_id, name, lat, lng, address, city, state, country, zipcode, price_band,
		 tags, photos, open_hours, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		spot.PublicID, spot.Name, spot.Lat, spot.Lng, spot.Address, spot.City, spot.State,
		spot.Country, spot.Zipcode, spot.PriceBand, enc.tags, enc.photos, nullJSON(spot.OpenHours),
		spot.Source, spot.CreatedAt, spot.UpdatedAt,
	).Scan(&spot.ID)
	return eris.Wrap(err, "postgres: insert spot")
}

func (t *pgTx) SetCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE candidates SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), normalizeTime(at), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set candidate %d status", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: candidate %d", id)
	}
	return nil
}
