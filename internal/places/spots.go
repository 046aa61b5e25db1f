package places

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/model"
	"github.com/michojekunle/amala-atlas/internal/store"
)

// ErrInvalidPage is returned for a page number past the last page.
var ErrInvalidPage = errors.New("invalid page")

// ParseBBox parses "min_lng,min_lat,max_lng,max_lat" into bounds with X as
// longitude and Y as latitude.
func ParseBBox(raw string) (*geom.Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, eris.Errorf("bbox must have 4 comma-separated numbers, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, eris.Errorf("bbox value %q is not a number", strings.TrimSpace(p))
		}
		v[i] = f
	}
	minLng, minLat, maxLng, maxLat := v[0], v[1], v[2], v[3]
	if minLng > maxLng || minLat > maxLat {
		return nil, eris.New("bbox minimums must not exceed maximums")
	}
	if minLat < -90 || maxLat > 90 || minLng < -180 || maxLng > 180 {
		return nil, eris.New("bbox is outside valid coordinates")
	}
	return geom.NewBounds(geom.XY).Set(minLng, minLat, maxLng, maxLat), nil
}

// ParseTags splits a comma-separated tag list, dropping blanks.
func ParseTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SpotQuery is a parsed spot listing request.
type SpotQuery struct {
	Filter store.SpotFilter
	// Paginate is set when the caller asked for a page.
	Paginate bool
	Page     int
	PageSize int
}

// SpotPage is one page of spots with the total match count.
type SpotPage struct {
	Count    int          `json:"count"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Results  []model.Spot `json:"results"`
}

// Directory serves the published spots.
type Directory struct {
	store       store.Store
	pageSize    int
	maxPageSize int
}

// NewDirectory creates a Directory. Page sizes fall back to 10.
func NewDirectory(st store.Store, cfg config.PlacesConfig) *Directory {
	d := &Directory{store: st, pageSize: cfg.SpotPageSize, maxPageSize: cfg.SpotMaxPageSize}
	if d.pageSize <= 0 {
		d.pageSize = 10
	}
	if d.maxPageSize <= 0 {
		d.maxPageSize = 10
	}
	if d.pageSize > d.maxPageSize {
		d.pageSize = d.maxPageSize
	}
	return d
}

// ParseQuery reads spot filters and paging from URL query parameters.
func (d *Directory) ParseQuery(v url.Values) (SpotQuery, error) {
	fe := model.FieldErrors{}
	q := SpotQuery{Filter: store.SpotFilter{
		City:      strings.TrimSpace(v.Get("city")),
		PriceBand: strings.TrimSpace(v.Get("price_band")),
		Tags:      ParseTags(v.Get("tags")),
		Query:     strings.TrimSpace(v.Get("query")),
	}}

	if raw := strings.TrimSpace(v.Get("bbox")); raw != "" {
		b, err := ParseBBox(raw)
		if err != nil {
			fe.Add("bbox", err.Error())
		} else {
			q.Filter.BBox = b
		}
	}

	if raw := strings.TrimSpace(v.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			fe.Add("page", "A valid positive integer is required.")
		}
		q.Paginate = true
		q.Page = page
		q.PageSize = d.pageSize
		if ps, err := strconv.Atoi(strings.TrimSpace(v.Get("page_size"))); err == nil && ps > 0 {
			q.PageSize = min(ps, d.maxPageSize)
		}
	}

	if err := fe.Err(); err != nil {
		return SpotQuery{}, err
	}
	return q, nil
}

// List returns every spot matching filter, newest first.
func (d *Directory) List(ctx context.Context, filter store.SpotFilter) ([]model.Spot, error) {
	spots, err := d.store.ListSpots(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "places: list spots")
	}
	return spots, nil
}

// Page returns one page of spots matching filter.
func (d *Directory) Page(ctx context.Context, filter store.SpotFilter, page, pageSize int) (*SpotPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = d.pageSize
	}
	pageSize = min(pageSize, d.maxPageSize)

	count, err := d.store.CountSpots(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "places: count spots")
	}
	offset := (page - 1) * pageSize
	if page > 1 && offset >= count {
		return nil, eris.Wrapf(ErrInvalidPage, "places: page %d", page)
	}

	filter.Limit = pageSize
	filter.Offset = offset
	spots, err := d.store.ListSpots(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "places: list spots")
	}
	return &SpotPage{Count: count, Page: page, PageSize: pageSize, Results: spots}, nil
}

// Get returns one spot.
func (d *Directory) Get(ctx context.Context, id int64) (*model.Spot, error) {
	spot, err := d.store.GetSpot(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "places: get spot")
	}
	return spot, nil
}
