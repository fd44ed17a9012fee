// Package geo is the geometry capability consumed by the game engine.
// Geometry values are opaque strings: EWKT for the PostGIS engine, an
// engine-specific encoding for the raster engine. The empty string is the
// empty geometry.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnavailable wraps failures of the backing geometry store.
var ErrUnavailable = errors.New("geo: engine unavailable")

// Point is a WGS84 coordinate.
type Point struct {
	Lat  float64 `json:"lat" msgpack:"lat"`
	Long float64 `json:"long" msgpack:"long"`
}

// Geometry is an opaque geometry value.
type Geometry string

// Empty reports whether g holds no area.
func (g Geometry) Empty() bool { return g == "" }

// Engine performs the spatial operations the rules need.
type Engine interface {
	Contains(ctx context.Context, area Geometry, p Point) (bool, error)
	Buffer(ctx context.Context, p Point, radius float64) (Geometry, error)
	Union(ctx context.Context, a, b Geometry) (Geometry, error)
	Difference(ctx context.Context, a, b Geometry) (Geometry, error)
	Intersects(ctx context.Context, a, b Geometry) (bool, error)
	// FillExterior rebuilds g from its exterior rings, closing any holes.
	FillExterior(ctx context.Context, g Geometry) (Geometry, error)
	Area(ctx context.Context, g Geometry) (float64, error)
	// Nearest returns the index of the candidate closest to from and its
	// distance. It returns -1 when candidates is empty.
	Nearest(ctx context.Context, from Point, candidates []Point) (int, float64, error)
}

// Distance is the planar distance in degrees, the unit of every threshold in
// the game tuning.
func Distance(a, b Point) float64 {
	return math.Hypot(a.Long-b.Long, a.Lat-b.Lat)
}

// PointGeometry encodes p as EWKT.
func PointGeometry(p Point) Geometry {
	return Geometry(fmt.Sprintf("SRID=4326;POINT(%s %s)", ftoa(p.Long), ftoa(p.Lat)))
}

// ParsePoint decodes a POINT geometry written by PointGeometry.
func ParsePoint(g Geometry) (Point, bool) {
	s := stripSRID(string(g))
	if !strings.HasPrefix(s, "POINT(") || !strings.HasSuffix(s, ")") {
		return Point{}, false
	}
	f := strings.Fields(s[len("POINT(") : len(s)-1])
	if len(f) != 2 {
		return Point{}, false
	}
	long, err1 := strconv.ParseFloat(f[0], 64)
	lat, err2 := strconv.ParseFloat(f[1], 64)
	if err1 != nil || err2 != nil {
		return Point{}, false
	}
	return Point{Lat: lat, Long: long}, true
}

// Rectangle returns an axis-aligned polygon in EWKT.
func Rectangle(minLong, minLat, maxLong, maxLat float64) Geometry {
	return Polygon([]Point{
		{Long: minLong, Lat: minLat},
		{Long: maxLong, Lat: minLat},
		{Long: maxLong, Lat: maxLat},
		{Long: minLong, Lat: maxLat},
	})
}

// Polygon returns a single-ring polygon in EWKT, closing the ring if needed.
func Polygon(ring []Point) Geometry {
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	parts := make([]string, len(ring))
	for i, p := range ring {
		parts[i] = ftoa(p.Long) + " " + ftoa(p.Lat)
	}
	return Geometry("SRID=4326;POLYGON((" + strings.Join(parts, ",") + "))")
}

// Rings extracts every coordinate ring of a POLYGON or MULTIPOLYGON in EWKT.
func Rings(g Geometry) ([][]Point, error) {
	s := stripSRID(string(g))
	if !strings.HasPrefix(s, "POLYGON") && !strings.HasPrefix(s, "MULTIPOLYGON") {
		return nil, fmt.Errorf("geo: unsupported geometry %.20q", s)
	}
	var rings [][]Point
	for _, chunk := range strings.FieldsFunc(s, func(r rune) bool { return r == '(' || r == ')' }) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || chunk == "," || strings.HasPrefix(chunk, "POLYGON") || strings.HasPrefix(chunk, "MULTIPOLYGON") {
			continue
		}
		var ring []Point
		for _, pair := range strings.Split(chunk, ",") {
			f := strings.Fields(pair)
			if len(f) != 2 {
				return nil, fmt.Errorf("geo: bad coordinate %q", pair)
			}
			long, err := strconv.ParseFloat(f[0], 64)
			if err != nil {
				return nil, fmt.Errorf("geo: bad coordinate %q: %w", pair, err)
			}
			lat, err := strconv.ParseFloat(f[1], 64)
			if err != nil {
				return nil, fmt.Errorf("geo: bad coordinate %q: %w", pair, err)
			}
			ring = append(ring, Point{Lat: lat, Long: long})
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// Envelope returns the bounding box of a polygon geometry.
func Envelope(g Geometry) (minLong, minLat, maxLong, maxLat float64, err error) {
	rings, err := Rings(g)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	minLong, minLat = math.Inf(1), math.Inf(1)
	maxLong, maxLat = math.Inf(-1), math.Inf(-1)
	for _, r := range rings {
		for _, p := range r {
			minLong, maxLong = math.Min(minLong, p.Long), math.Max(maxLong, p.Long)
			minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		}
	}
	if math.IsInf(minLong, 1) {
		return 0, 0, 0, 0, fmt.Errorf("geo: empty polygon")
	}
	return minLong, minLat, maxLong, maxLat, nil
}

func stripSRID(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";"); i >= 0 && strings.HasPrefix(s, "SRID=") {
		s = s[i+1:]
	}
	return s
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
