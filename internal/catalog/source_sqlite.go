package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gridatlas/siterank-cli/internal/spatial"
)

// SQLiteSource loads features from a local SQLite database, for offline
// development and tests. Schema mirrors the Postgres source with JSON text
// columns for coords and attrs.
type SQLiteSource struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS point_features (
	source_id TEXT NOT NULL,
	category  TEXT NOT NULL,
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	attrs     TEXT,
	PRIMARY KEY (category, source_id)
);

CREATE TABLE IF NOT EXISTS line_features (
	source_id TEXT NOT NULL,
	category  TEXT NOT NULL,
	coords    TEXT NOT NULL,
	attrs     TEXT,
	PRIMARY KEY (category, source_id)
);
`

// NewSQLiteSource opens a SQLite database at the given path, configures WAL
// mode, and ensures the feature tables exist.
func NewSQLiteSource(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite source: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite source: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite source: migrate")
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Load fetches one category's point and line records.
func (s *SQLiteSource) Load(ctx context.Context, cat spatial.Category) (FeatureSet, error) {
	var set FeatureSet

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, lat, lon, COALESCE(attrs, '') FROM point_features WHERE category = ? ORDER BY source_id`,
		string(cat),
	)
	if err != nil {
		return FeatureSet{}, eris.Wrapf(err, "sqlite source: query points for %s", cat)
	}
	defer rows.Close()
	for rows.Next() {
		var rec PointRecord
		var attrs string
		if err := rows.Scan(&rec.ID, &rec.Lat, &rec.Lon, &attrs); err != nil {
			return FeatureSet{}, eris.Wrapf(err, "sqlite source: scan point row for %s", cat)
		}
		if attrs != "" {
			if err := json.Unmarshal([]byte(attrs), &rec.Attrs); err != nil {
				return FeatureSet{}, eris.Wrapf(err, "sqlite source: decode attrs for point %s", rec.ID)
			}
		}
		set.Points = append(set.Points, rec)
	}
	if err := rows.Err(); err != nil {
		return FeatureSet{}, eris.Wrapf(err, "sqlite source: iterate point rows for %s", cat)
	}

	lineRows, err := s.db.QueryContext(ctx,
		`SELECT source_id, coords, COALESCE(attrs, '') FROM line_features WHERE category = ? ORDER BY source_id`,
		string(cat),
	)
	if err != nil {
		return FeatureSet{}, eris.Wrapf(err, "sqlite source: query lines for %s", cat)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var rec LineRecord
		var coords, attrs string
		if err := lineRows.Scan(&rec.ID, &coords, &attrs); err != nil {
			return FeatureSet{}, eris.Wrapf(err, "sqlite source: scan line row for %s", cat)
		}
		var pairs [][2]float64
		if err := json.Unmarshal([]byte(coords), &pairs); err != nil {
			return FeatureSet{}, eris.Wrapf(err, "sqlite source: decode coords for line %s", rec.ID)
		}
		for _, p := range pairs {
			rec.Coords = append(rec.Coords, spatial.Coordinate{Lat: p[0], Lon: p[1]})
		}
		if attrs != "" {
			if err := json.Unmarshal([]byte(attrs), &rec.Attrs); err != nil {
				return FeatureSet{}, eris.Wrapf(err, "sqlite source: decode attrs for line %s", rec.ID)
			}
		}
		set.Lines = append(set.Lines, rec)
	}
	if err := lineRows.Err(); err != nil {
		return FeatureSet{}, eris.Wrapf(err, "sqlite source: iterate line rows for %s", cat)
	}

	return set, nil
}

// InsertPoint writes a point record, replacing any existing row with the
// same category and source id. Intended for tests and local data loading.
func (s *SQLiteSource) InsertPoint(ctx context.Context, cat spatial.Category, rec PointRecord) error {
	attrs, err := marshalAttrs(rec.Attrs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO point_features (source_id, category, lat, lon, attrs) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(cat), rec.Lat, rec.Lon, attrs,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite source: insert point %s", rec.ID)
	}
	return nil
}

// InsertLine writes a line record, replacing any existing row with the same
// category and source id.
func (s *SQLiteSource) InsertLine(ctx context.Context, cat spatial.Category, rec LineRecord) error {
	pairs := make([][2]float64, 0, len(rec.Coords))
	for _, c := range rec.Coords {
		pairs = append(pairs, [2]float64{c.Lat, c.Lon})
	}
	coords, err := json.Marshal(pairs)
	if err != nil {
		return eris.Wrapf(err, "sqlite source: encode coords for line %s", rec.ID)
	}
	attrs, err := marshalAttrs(rec.Attrs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO line_features (source_id, category, coords, attrs) VALUES (?, ?, ?, ?)`,
		rec.ID, string(cat), string(coords), attrs,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite source: insert line %s", rec.ID)
	}
	return nil
}

func marshalAttrs(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", eris.Wrap(err, "sqlite source: encode attrs")
	}
	return string(b), nil
}
