package store

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// dialect captures the SQL differences between the two backends for the
// dynamically built listing queries.
type dialect struct {
	placeholder sq.PlaceholderFormat
	// foldFunc is the SQL function used for case-insensitive comparisons
	// and foldValue applies the same folding in Go.
	foldFunc  string
	foldValue func(string) string
	// tagsContain returns a predicate requiring every tag to be on the spot.
	tagsContain func(tags []string) sq.Sqlizer
}

var postgresDialect = dialect{
	placeholder: sq.Dollar,
	foldFunc:    "LOWER",
	foldValue:   strings.ToLower,
	tagsContain: func(tags []string) sq.Sqlizer {
		b, _ := json.Marshal(tags)
		return sq.Expr("tags @> ?::jsonb", string(b))
	},
}

var sqliteDialect = dialect{
	placeholder: sq.Question,
	foldFunc:    sqliteFoldFunc,
	foldValue:   caseFold,
	tagsContain: func(tags []string) sq.Sqlizer {
		and := sq.And{}
		for _, t := range tags {
			and = append(and, sq.Expr("EXISTS (SELECT 1 FROM json_each(spots.tags) WHERE json_each.value = ?)", t))
		}
		return and
	},
}

func (d dialect) queueQuery(f QueueFilter) sq.SelectBuilder {
	q := sq.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"status": string(model.CandidateStatusPending)}).
		OrderBy("score DESC", "created_at DESC", "id DESC").
		PlaceholderFormat(d.placeholder)

	if f.City != "" {
		q = q.Where(d.equalFold("city", f.City))
	}
	if f.SourceKind != "" {
		q = q.Where(d.equalFold("source_kind", f.SourceKind))
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func (d dialect) spotsQuery(f SpotFilter) sq.SelectBuilder {
	q := d.filterSpots(sq.Select(spotColumns...).From("spots"), f).
		OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q
}

func (d dialect) countSpotsQuery(f SpotFilter) sq.SelectBuilder {
	return d.filterSpots(sq.Select("COUNT(*)").From("spots"), f)
}

func (d dialect) filterSpots(q sq.SelectBuilder, f SpotFilter) sq.SelectBuilder {
	q = q.PlaceholderFormat(d.placeholder)

	if b := f.BBox; b != nil && !b.IsEmpty() {
		q = q.Where(sq.And{
			sq.GtOrEq{"lng": b.Min(0)},
			sq.LtOrEq{"lng": b.Max(0)},
			sq.GtOrEq{"lat": b.Min(1)},
			sq.LtOrEq{"lat": b.Max(1)},
		})
	}
	if f.City != "" {
		q = q.Where(d.equalFold("city", f.City))
	}
	if f.PriceBand != "" {
		q = q.Where(d.equalFold("price_band", f.PriceBand))
	}
	if len(f.Tags) > 0 {
		q = q.Where(d.tagsContain(f.Tags))
	}
	if f.Query != "" {
		pattern := "%" + escapeLike(d.foldValue(f.Query)) + "%"
		q = q.Where(sq.Or{
			d.likeFold("name", pattern),
			d.likeFold("city", pattern),
			d.likeFold("address", pattern),
		})
	}
	return q
}

// equalFold matches col against v ignoring case.
func (d dialect) equalFold(col, v string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("%s(%s) = %s(?)", d.foldFunc, col, d.foldFunc), v)
}

// likeFold matches the folded col against an already folded LIKE pattern.
func (d dialect) likeFold(col, pattern string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf(`%s(%s) LIKE ? ESCAPE '\'`, d.foldFunc, col), pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
