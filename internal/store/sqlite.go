package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"modernc.org/sqlite"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are kept
// as unix microseconds so they sort correctly as integers.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// sqliteParams are appended to every DSN. Transactions start with BEGIN
// IMMEDIATE so a vote holds the write lock from its first read.
var sqliteParams = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=synchronous(NORMAL)",
	"_pragma=foreign_keys(1)",
	"_txlock=immediate",
}

func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(sqliteParams, "&")
}

// sqliteFoldFunc is a Unicode case-folding scalar. SQLite's LOWER only
// folds ASCII, which misses city names such as "Ọ̀yọ́".
const sqliteFoldFunc = "casefold"

var (
	registerFoldOnce sync.Once
	registerFoldErr  error
)

// caseFold folds s to its caseless NFC form.
func caseFold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func registerFoldFunc() error {
	registerFoldOnce.Do(func() {
		registerFoldErr = sqlite.RegisterDeterministicScalarFunction(sqliteFoldFunc, 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case string:
					return caseFold(v), nil
				case []byte:
					return caseFold(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return registerFoldErr
}

// NewSQLite opens a SQLite database at the given path or DSN.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if err := registerFoldFunc(); err != nil {
		return nil, eris.Wrap(err, "sqlite: register casefold")
	}
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite allows one writer; a single connection serializes access
	// without surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id    TEXT NOT NULL UNIQUE,
	kind         TEXT NOT NULL DEFAULT 'manual' CHECK (kind IN ('manual', 'agentic')),
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT 'Nigeria',
	lat          REAL,
	lng          REAL,
	price_band   TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '[]',
	hours_text   TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	photo_url    TEXT NOT NULL DEFAULT '',
	submitted_by INTEGER,
	transcript   TEXT NOT NULL DEFAULT '',
	raw_payload  TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	CHECK ((lat IS NULL) = (lng IS NULL))
);

CREATE TABLE IF NOT EXISTS candidates (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id          TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	raw_address        TEXT NOT NULL DEFAULT '',
	lat                REAL,
	lng                REAL,
	city               TEXT NOT NULL DEFAULT '',
	country            TEXT NOT NULL DEFAULT 'Nigeria',
	source_url         TEXT NOT NULL DEFAULT '',
	source_kind        TEXT NOT NULL DEFAULT 'user',
	price_band         TEXT NOT NULL DEFAULT '',
	photo_url          TEXT NOT NULL DEFAULT '',
	open_hours         TEXT,
	submitted_by_email TEXT NOT NULL DEFAULT '',
	evidence           TEXT NOT NULL DEFAULT '[]',
	signals            TEXT NOT NULL DEFAULT '{}',
	score              REAL NOT NULL DEFAULT 0 CHECK (score >= 0 AND score <= 1),
	dedupe_key         TEXT NOT NULL DEFAULT '',
	geo_precision      TEXT NOT NULL DEFAULT 'city',
	status             TEXT NOT NULL DEFAULT 'pending_verification'
	                   CHECK (status IN ('pending_verification', 'approved', 'rejected')),
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_queue ON candidates(status, score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_candidates_dedupe_key ON candidates(dedupe_key);

CREATE TABLE IF NOT EXISTS verifications (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id          TEXT NOT NULL UNIQUE,
	candidate_id       INTEGER NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
	voter_key          TEXT NOT NULL,
	by_user            INTEGER,
	action             TEXT NOT NULL CHECK (action IN ('approve', 'reject', 'merge', 'edit')),
	notes              TEXT NOT NULL DEFAULT '',
	merge_into_spot_id INTEGER,
	revision           INTEGER NOT NULL DEFAULT 1,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL,
	UNIQUE (candidate_id, voter_key)
);

CREATE TABLE IF NOT EXISTS spots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	public_id  TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	lat        REAL NOT NULL DEFAULT 0,
	lng        REAL NOT NULL DEFAULT 0,
	address    TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT 'Nigeria',
	zipcode    TEXT NOT NULL DEFAULT '',
	price_band TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	photos     TEXT NOT NULL DEFAULT '[]',
	open_hours TEXT,
	source     TEXT NOT NULL DEFAULT 'verified',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_spots_created_at ON spots(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_spots_lng_lat ON spots(lng, lat);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks that the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// unixMicros scans an INTEGER timestamp column into a time.Time.
type unixMicros struct{ t *time.Time }

func (u unixMicros) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*u.t = time.UnixMicro(v).UTC()
	case nil:
		*u.t = time.Time{}
	default:
		return eris.Errorf("sqlite: unexpected timestamp type %T", src)
	}
	return nil
}

func sqliteTime(t *time.Time) any { return unixMicros{t: t} }

func micros(t time.Time) int64 { return normalizeTime(t).UnixMicro() }

// CreateSubmission stores the submission and the candidate built from it in
// one transaction.
func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission, cand *model.Candidate) error {
	now := s.clock()
	tags, payload, err := prepareSubmission(sub, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: create submission")
	}
	prepareCandidate(cand, now)
	enc, err := encodeCandidate(cand)
	if err != nil {
		return eris.Wrap(err, "sqlite: create submission")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin create submission")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `INSERT INTO submissions
		(public_id, kind, name, address, city, state, country, lat, lng, price_band, tags,
		 hours_text, email, photo_url, submitted_by, transcript, raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		sub.PublicID, string(sub.Kind), sub.Name, sub.Address, sub.City, sub.State, sub.Country,
		sub.Lat, sub.Lng, sub.PriceBand, string(tags), sub.HoursText, sub.Email, sub.PhotoURL,
		sub.SubmittedBy, sub.Transcript, string(payload), micros(sub.CreatedAt),
	).Scan(&sub.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert submission")
	}

	err = tx.QueryRowContext(ctx, `INSERT INTO candidates
		(public_id, name, raw_address, lat, lng, city, country, source_url, source_kind,
		 price_band, photo_url, open_hours, submitted_by_email, evidence, signals, score,
		 dedupe_key, geo_precision, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		cand.PublicID, cand.Name, cand.RawAddress, cand.Lat, cand.Lng, cand.City, cand.Country,
		cand.SourceURL, string(cand.SourceKind), cand.PriceBand, cand.PhotoURL, nullJSONText(cand.OpenHours),
		cand.SubmittedByEmail, string(enc.evidence), string(enc.signals), cand.Score, cand.DedupeKey,
		string(cand.GeoPrecision), string(cand.Status), micros(cand.CreatedAt), micros(cand.UpdatedAt),
	).Scan(&cand.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert candidate")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit create submission")
}

// GetCandidate returns a candidate by id.
func (s *SQLiteStore) GetCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columnList(candidateColumns)+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row, sqliteTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get candidate %d", id)
	}
	return c, nil
}

// ListVerifications returns a candidate's votes, oldest first.
func (s *SQLiteStore) ListVerifications(ctx context.Context, candidateID int64) ([]model.Verification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columnList(verificationColumns)+`
		FROM verifications WHERE candidate_id = ? ORDER BY created_at, id`, candidateID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list verifications")
	}
	defer rows.Close()

	out := []model.Verification{}
	for rows.Next() {
		v, err := scanVerification(rows, sqliteTime)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan verification")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list verifications")
}

// ListQueue returns pending candidates, highest score first.
func (s *SQLiteStore) ListQueue(ctx context.Context, filter QueueFilter) ([]model.Candidate, error) {
	query, args, err := sqliteDialect.queueQuery(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build queue query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queue")
	}
	defer rows.Close()

	out := []model.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows, sqliteTime)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list queue")
}

// InTx runs fn inside an immediate transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqliteTx{tx: tx, now: s.clock}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// GetSpot returns a spot by id.
func (s *SQLiteStore) GetSpot(ctx context.Context, id int64) (*model.Spot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columnList(spotColumns)+` FROM spots WHERE id = ?`, id)
	spot, err := scanSpot(row, sqliteTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: spot %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get spot %d", id)
	}
	return spot, nil
}

// ListSpots returns spots matching filter, newest first.
func (s *SQLiteStore) ListSpots(ctx context.Context, filter SpotFilter) ([]model.Spot, error) {
	query, args, err := sqliteDialect.spotsQuery(filter).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build spots query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list spots")
	}
	defer rows.Close()

	out := []model.Spot{}
	for rows.Next() {
		spot, err := scanSpot(rows, sqliteTime)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spot")
		}
		out = append(out, *spot)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list spots")
}

// CountSpots returns how many spots match filter, ignoring Limit and Offset.
func (s *SQLiteStore) CountSpots(ctx context.Context, filter SpotFilter) (int, error) {
	query, args, err := sqliteDialect.countSpotsQuery(filter).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build count query")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count spots")
	}
	return n, nil
}

// ImportSpots inserts spots in a single transaction.
func (s *SQLiteStore) ImportSpots(ctx context.Context, spots []model.Spot) (int64, error) {
	if len(spots) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer func() { _ = tx.Rollback() }()

	stx := &sqliteTx{tx: tx, now: s.clock}
	for i := range spots {
		if err := stx.InsertSpot(ctx, &spots[i]); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import spot %q", spots[i].Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return int64(len(spots)), nil
}

// sqliteTx implements Tx on a database/sql transaction.
type sqliteTx struct {
	tx  *sql.Tx
	now func() time.Time
}

// LockCandidate reads the candidate. The immediate transaction already holds
// the database write lock, so no row-level clause is needed.
func (t *sqliteTx) LockCandidate(ctx context.Context, id int64) (*model.Candidate, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+columnList(candidateColumns)+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row, sqliteTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %d", id)
		}
		return nil, eris.Wrapf(err, "sqlite: lock candidate %d", id)
	}
	return c, nil
}

func (t *sqliteTx) UpsertVerification(ctx context.Context, v *model.Verification) error {
	if v.PublicID == "" {
		v.PublicID = newPublicID()
	}
	at := normalizeTime(t.now())
	var created int64
	err := t.tx.QueryRowContext(ctx, `INSERT INTO verifications
		(public_id, candidate_id, voter_key, by_user, action, notes, merge_into_spot_id, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (candidate_id, voter_key) DO UPDATE SET
			action = excluded.action,
			notes = excluded.notes,
			merge_into_spot_id = excluded.merge_into_spot_id,
			revision = revision + 1,
			updated_at = excluded.updated_at
		RETURNING id, public_id, revision, created_at`,
		v.PublicID, v.CandidateID, v.VoterKey, v.ByUser, string(v.Action), v.Notes, v.MergeIntoSpotID,
		at.UnixMicro(), at.UnixMicro(),
	).Scan(&v.ID, &v.PublicID, &v.Revision, &created)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert verification for candidate %d", v.CandidateID)
	}
	v.CreatedAt = time.UnixMicro(created).UTC()
	v.UpdatedAt = at
	return nil
}

func (t *sqliteTx) TallyVerifications(ctx context.Context, candidateID int64) (model.Tally, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT action, COUNT(*) FROM verifications WHERE candidate_id = ? GROUP BY action`, candidateID)
	if err != nil {
		return model.Tally{}, eris.Wrap(err, "sqlite: tally verifications")
	}
	defer rows.Close()

	var tally model.Tally
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return model.Tally{}, eris.Wrap(err, "sqlite: scan tally")
		}
		tally.Add(model.Action(action), n)
	}
	return tally, eris.Wrap(rows.Err(), "sqlite: tally verifications")
}

func (t *sqliteTx) InsertSpot(ctx context.Context, spot *model.Spot) error {
	prepareSpot(spot, t.now())
	enc, err := encodeSpot(spot)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert spot")
	}
	err = t.tx.QueryRowContext(ctx, `INSERT INTO spots
		(public_id, name, lat, lng, address, city, state, country, zipcode, price_band,
		 tags, photos, open_hours, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		spot.PublicID, spot.Name, spot.Lat, spot.Lng, spot.Address, spot.City, spot.State,
		spot.Country, spot.Zipcode, spot.PriceBand, string(enc.tags), string(enc.photos),
		nullJSONText(spot.OpenHours), spot.Source, micros(spot.CreatedAt), micros(spot.UpdatedAt),
	).Scan(&spot.ID)
	return eris.Wrap(err, "sqlite: insert spot")
}

func (t *sqliteTx) SetCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE candidates SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), micros(at), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set candidate %d status", id)
	}
	return checkRowsAffected(res, "candidate", id)
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %d", entity, id)
	}
	return nil
}
