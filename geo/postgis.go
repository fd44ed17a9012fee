package geo

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// PostGIS runs every operation as a SQL expression on a PostGIS-enabled
// database. Geometries travel as EWKT.
type PostGIS struct {
	DB *gorm.DB
}

func NewPostGIS(db *gorm.DB) *PostGIS {
	return &PostGIS{DB: db}
}

func (e *PostGIS) scan(ctx context.Context, dest any, query string, args ...any) error {
	if err := e.DB.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (e *PostGIS) geometry(ctx context.Context, query string, args ...any) (Geometry, error) {
	var out sql.NullString
	if err := e.scan(ctx, &out, query, args...); err != nil {
		return "", err
	}
	return Geometry(out.String), nil
}

func (e *PostGIS) Contains(ctx context.Context, area Geometry, p Point) (bool, error) {
	if area.Empty() {
		return false, nil
	}
	var inside bool
	err := e.scan(ctx, &inside,
		`SELECT ST_Contains(ST_GeomFromEWKT(?), ST_SetSRID(ST_MakePoint(?, ?), 4326))`,
		string(area), p.Long, p.Lat)
	return inside, err
}

func (e *PostGIS) Buffer(ctx context.Context, p Point, radius float64) (Geometry, error) {
	return e.geometry(ctx,
		`SELECT ST_AsEWKT(ST_Buffer(ST_SetSRID(ST_MakePoint(?, ?), 4326), ?))`,
		p.Long, p.Lat, radius)
}

func (e *PostGIS) Union(ctx context.Context, a, b Geometry) (Geometry, error) {
	switch {
	case a.Empty():
		return b, nil
	case b.Empty():
		return a, nil
	}
	return e.geometry(ctx,
		`SELECT ST_AsEWKT(ST_Union(ST_GeomFromEWKT(?), ST_GeomFromEWKT(?)))`,
		string(a), string(b))
}

func (e *PostGIS) Difference(ctx context.Context, a, b Geometry) (Geometry, error) {
	if a.Empty() || b.Empty() {
		return a, nil
	}
	return e.geometry(ctx,
		`SELECT CASE WHEN ST_IsEmpty(d) THEN NULL ELSE ST_AsEWKT(d) END
		 FROM (SELECT ST_Difference(ST_GeomFromEWKT(?), ST_GeomFromEWKT(?)) AS d) s`,
		string(a), string(b))
}

func (e *PostGIS) Intersects(ctx context.Context, a, b Geometry) (bool, error) {
	if a.Empty() || b.Empty() {
		return false, nil
	}
	var hit bool
	err := e.scan(ctx, &hit,
		`SELECT ST_Intersects(ST_GeomFromEWKT(?), ST_GeomFromEWKT(?))`,
		string(a), string(b))
	return hit, err
}

func (e *PostGIS) FillExterior(ctx context.Context, g Geometry) (Geometry, error) {
	if g.Empty() {
		return g, nil
	}
	return e.geometry(ctx,
		`SELECT ST_AsEWKT(ST_SetSRID(ST_BuildArea(ST_Collect(ST_ExteriorRing(d.geom))), 4326))
		 FROM ST_Dump(ST_GeomFromEWKT(?)) AS d`,
		string(g))
}

func (e *PostGIS) Area(ctx context.Context, g Geometry) (float64, error) {
	if g.Empty() {
		return 0, nil
	}
	var area float64
	err := e.scan(ctx, &area, `SELECT ST_Area(ST_GeomFromEWKT(?))`, string(g))
	return area, err
}

func (e *PostGIS) Nearest(ctx context.Context, from Point, candidates []Point) (int, float64, error) {
	if len(candidates) == 0 {
		return -1, 0, nil
	}
	longs := make([]float64, len(candidates))
	lats := make([]float64, len(candidates))
	for i, c := range candidates {
		longs[i], lats[i] = c.Long, c.Lat
	}
	var row struct {
		Idx  int
		Dist float64
	}
	err := e.scan(ctx, &row,
		`SELECT c.ord - 1 AS idx,
		        ST_Distance(ST_SetSRID(ST_MakePoint(?, ?), 4326), ST_SetSRID(ST_MakePoint(c.long, c.lat), 4326)) AS dist
		 FROM unnest(?::float8[], ?::float8[]) WITH ORDINALITY AS c(long, lat, ord)
		 ORDER BY dist
		 LIMIT 1`,
		from.Long, from.Lat, longs, lats)
	if err != nil {
		return -1, 0, err
	}
	return row.Idx, row.Dist, nil
}
