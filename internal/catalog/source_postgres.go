package catalog

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/gridatlas/siterank-cli/internal/spatial"
)

// PgxPool is the subset of pgxpool.Pool used by PostgresSource. pgxmock
// satisfies it in tests.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource loads features from the infra.point_features and
// infra.line_features tables. Line vertices and attribute maps are stored
// as JSONB.
type PostgresSource struct {
	pool    PgxPool
	limiter *rate.Limiter
}

// NewPostgresSource creates a Postgres-backed feature source. A nil limiter
// disables rate limiting of category loads.
func NewPostgresSource(pool PgxPool, limiter *rate.Limiter) *PostgresSource {
	return &PostgresSource{pool: pool, limiter: limiter}
}

// Load fetches one category's point and line records.
func (s *PostgresSource) Load(ctx context.Context, cat spatial.Category) (FeatureSet, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return FeatureSet{}, eris.Wrapf(err, "postgres source: rate limit %s", cat)
		}
	}

	var set FeatureSet

	points, err := s.loadPoints(ctx, cat)
	if err != nil {
		return FeatureSet{}, err
	}
	set.Points = points

	lines, err := s.loadLines(ctx, cat)
	if err != nil {
		return FeatureSet{}, err
	}
	set.Lines = lines

	return set, nil
}

func (s *PostgresSource) loadPoints(ctx context.Context, cat spatial.Category) ([]PointRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, lat, lon, attrs FROM infra.point_features WHERE category = $1 ORDER BY source_id`,
		string(cat),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres source: query points for %s", cat)
	}
	defer rows.Close()

	var recs []PointRecord
	for rows.Next() {
		var rec PointRecord
		var attrs []byte
		if err := rows.Scan(&rec.ID, &rec.Lat, &rec.Lon, &attrs); err != nil {
			return nil, eris.Wrapf(err, "postgres source: scan point row for %s", cat)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attrs); err != nil {
				return nil, eris.Wrapf(err, "postgres source: decode attrs for point %s", rec.ID)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres source: iterate point rows for %s", cat)
	}
	return recs, nil
}

func (s *PostgresSource) loadLines(ctx context.Context, cat spatial.Category) ([]LineRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, coords, attrs FROM infra.line_features WHERE category = $1 ORDER BY source_id`,
		string(cat),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres source: query lines for %s", cat)
	}
	defer rows.Close()

	var recs []LineRecord
	for rows.Next() {
		var rec LineRecord
		var coords, attrs []byte
		if err := rows.Scan(&rec.ID, &coords, &attrs); err != nil {
			return nil, eris.Wrapf(err, "postgres source: scan line row for %s", cat)
		}
		// Vertices are stored as [[lat, lon], ...].
		var pairs [][2]float64
		if err := json.Unmarshal(coords, &pairs); err != nil {
			return nil, eris.Wrapf(err, "postgres source: decode coords for line %s", rec.ID)
		}
		for _, p := range pairs {
			rec.Coords = append(rec.Coords, spatial.Coordinate{Lat: p[0], Lon: p[1]})
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attrs); err != nil {
				return nil, eris.Wrapf(err, "postgres source: decode attrs for line %s", rec.ID)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres source: iterate line rows for %s", cat)
	}
	return recs, nil
}
