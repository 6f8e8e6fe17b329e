package catalog

import (
	"context"
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/gridatlas/siterank-cli/internal/spatial"
)

// ShapefileSource loads features from ESRI shapefiles, one file per
// category. Categories without a configured path load as empty, not as
// errors.
type ShapefileSource struct {
	paths map[spatial.Category]string
}

// NewShapefileSource creates a shapefile-backed feature source from a
// category-to-path mapping.
func NewShapefileSource(paths map[spatial.Category]string) *ShapefileSource {
	return &ShapefileSource{paths: paths}
}

// Load reads the category's shapefile. Point shapes become point records;
// polyline shapes become one line record per part.
func (s *ShapefileSource) Load(ctx context.Context, cat spatial.Category) (FeatureSet, error) {
	path, ok := s.paths[cat]
	if !ok || path == "" {
		return FeatureSet{}, nil
	}

	reader, err := shp.Open(path)
	if err != nil {
		return FeatureSet{}, eris.Wrapf(err, "shapefile source: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()

	var set FeatureSet
	var skipped int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return FeatureSet{}, eris.Wrapf(err, "shapefile source: read %s", path)
		}
		row, shape := reader.Shape()

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			name := strings.TrimRight(f.String(), "\x00")
			if v := strings.TrimSpace(reader.ReadAttribute(row, i)); v != "" {
				attrs[name] = v
			}
		}
		id := fmt.Sprintf("%s-%06d", cat, row)

		switch sh := shape.(type) {
		case *shp.Point:
			set.Points = append(set.Points, PointRecord{ID: id, Lat: sh.Y, Lon: sh.X, Attrs: attrs})

		case *shp.PolyLine:
			mls := polyLineToMultiLineString(sh)
			if mls == nil {
				skipped++
				continue
			}
			for part := 0; part < mls.NumLineStrings(); part++ {
				ls := mls.LineString(part)
				coords := make([]spatial.Coordinate, 0, ls.NumCoords())
				for i := 0; i < ls.NumCoords(); i++ {
					c := ls.Coord(i)
					coords = append(coords, spatial.Coordinate{Lat: c.Y(), Lon: c.X()})
				}
				if len(coords) < 2 {
					skipped++
					continue
				}
				set.Lines = append(set.Lines, LineRecord{
					ID:     fmt.Sprintf("%s-p%d", id, part),
					Coords: coords,
					Attrs:  attrs,
				})
			}

		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("shapefile source: skipped unsupported shapes",
			zap.String("category", string(cat)),
			zap.Int("skipped", skipped),
		)
	}
	return set, nil
}

// polyLineToMultiLineString converts a shapefile PolyLine to a
// geom.MultiLineString, dropping malformed parts.
func polyLineToMultiLineString(pl *shp.PolyLine) *geom.MultiLineString {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(4326)

	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		var end int32
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		} else {
			end = int32(len(pl.Points))
		}
		if end-start < 2 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}

		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("shapefile source: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
