// Package raster is an in-process geo.Engine that approximates every area as
// the set of grid cells whose centres it covers. It needs no database and is
// used for local runs and tests.
package raster

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"spot-game-server/geo"

	"github.com/bits-and-blooms/bitset"
)

const prefix = "RASTER;"

// Grid is the cell layout shared by every geometry the engine produces.
type Grid struct {
	MinLong float64
	MinLat  float64
	Cell    float64
	Cols    int
	Rows    int
}

// Engine implements geo.Engine over a Grid.
type Engine struct {
	grid Grid
}

func New(g Grid) (*Engine, error) {
	if g.Cell <= 0 || g.Cols <= 0 || g.Rows <= 0 {
		return nil, fmt.Errorf("raster: invalid grid %+v", g)
	}
	return &Engine{grid: g}, nil
}

// GridFor returns a grid covering bounds with the given cell size plus a
// one-cell margin on every side.
func GridFor(bounds geo.Geometry, cell float64) (Grid, error) {
	minLong, minLat, maxLong, maxLat, err := geo.Envelope(bounds)
	if err != nil {
		return Grid{}, err
	}
	return Grid{
		MinLong: minLong - cell,
		MinLat:  minLat - cell,
		Cell:    cell,
		Cols:    int(math.Ceil((maxLong-minLong)/cell)) + 2,
		Rows:    int(math.Ceil((maxLat-minLat)/cell)) + 2,
	}, nil
}

func (e *Engine) size() uint { return uint(e.grid.Cols * e.grid.Rows) }

func (e *Engine) cellOf(p geo.Point) (uint, bool) {
	col := int(math.Floor((p.Long - e.grid.MinLong) / e.grid.Cell))
	row := int(math.Floor((p.Lat - e.grid.MinLat) / e.grid.Cell))
	if col < 0 || row < 0 || col >= e.grid.Cols || row >= e.grid.Rows {
		return 0, false
	}
	return uint(row*e.grid.Cols + col), true
}

func (e *Engine) centre(i uint) geo.Point {
	row, col := int(i)/e.grid.Cols, int(i)%e.grid.Cols
	return geo.Point{
		Long: e.grid.MinLong + (float64(col)+0.5)*e.grid.Cell,
		Lat:  e.grid.MinLat + (float64(row)+0.5)*e.grid.Cell,
	}
}

func (e *Engine) encode(b *bitset.BitSet) (geo.Geometry, error) {
	if b.None() {
		return "", nil
	}
	raw, err := b.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("raster: encode: %w", err)
	}
	return geo.Geometry(prefix + base64.StdEncoding.EncodeToString(raw)), nil
}

// decode accepts the raster encoding or an EWKT polygon, which is rasterized.
func (e *Engine) decode(g geo.Geometry) (*bitset.BitSet, error) {
	s := string(g)
	switch {
	case s == "":
		return bitset.New(e.size()), nil
	case strings.HasPrefix(s, prefix):
		raw, err := base64.StdEncoding.DecodeString(s[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("raster: decode: %w", err)
		}
		b := &bitset.BitSet{}
		if err := b.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("raster: decode: %w", err)
		}
		return b, nil
	default:
		return e.rasterize(g)
	}
}

// rasterize marks every cell whose centre lies inside the polygon under the
// even-odd rule, so holes and disjoint parts both work.
func (e *Engine) rasterize(g geo.Geometry) (*bitset.BitSet, error) {
	rings, err := geo.Rings(g)
	if err != nil {
		return nil, err
	}
	b := bitset.New(e.size())
	for i := uint(0); i < e.size(); i++ {
		c := e.centre(i)
		inside := false
		for _, r := range rings {
			if crossings(r, c)%2 == 1 {
				inside = !inside
			}
		}
		if inside {
			b.Set(i)
		}
	}
	return b, nil
}

func crossings(ring []geo.Point, p geo.Point) int {
	n := 0
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) &&
			p.Long < (b.Long-a.Long)*(p.Lat-a.Lat)/(b.Lat-a.Lat)+a.Long {
			n++
		}
	}
	return n
}

func (e *Engine) Contains(ctx context.Context, area geo.Geometry, p geo.Point) (bool, error) {
	b, err := e.decode(area)
	if err != nil {
		return false, err
	}
	i, ok := e.cellOf(p)
	return ok && b.Test(i), nil
}

func (e *Engine) Buffer(ctx context.Context, p geo.Point, radius float64) (geo.Geometry, error) {
	b := bitset.New(e.size())
	if i, ok := e.cellOf(p); ok {
		b.Set(i)
	}
	span := int(math.Ceil(radius/e.grid.Cell)) + 1
	col0 := int(math.Floor((p.Long - e.grid.MinLong) / e.grid.Cell))
	row0 := int(math.Floor((p.Lat - e.grid.MinLat) / e.grid.Cell))
	for row := row0 - span; row <= row0+span; row++ {
		for col := col0 - span; col <= col0+span; col++ {
			if col < 0 || row < 0 || col >= e.grid.Cols || row >= e.grid.Rows {
				continue
			}
			i := uint(row*e.grid.Cols + col)
			if geo.Distance(e.centre(i), p) <= radius {
				b.Set(i)
			}
		}
	}
	return e.encode(b)
}

func (e *Engine) Union(ctx context.Context, a, b geo.Geometry) (geo.Geometry, error) {
	x, y, err := e.pair(a, b)
	if err != nil {
		return "", err
	}
	return e.encode(x.Union(y))
}

func (e *Engine) Difference(ctx context.Context, a, b geo.Geometry) (geo.Geometry, error) {
	x, y, err := e.pair(a, b)
	if err != nil {
		return "", err
	}
	return e.encode(x.Difference(y))
}

func (e *Engine) Intersects(ctx context.Context, a, b geo.Geometry) (bool, error) {
	x, y, err := e.pair(a, b)
	if err != nil {
		return false, err
	}
	return x.IntersectionCardinality(y) > 0, nil
}

// FillExterior floods the empty cells reachable from the grid border; every
// cell the flood cannot reach is inside some exterior ring.
func (e *Engine) FillExterior(ctx context.Context, g geo.Geometry) (geo.Geometry, error) {
	b, err := e.decode(g)
	if err != nil {
		return "", err
	}
	outside := bitset.New(e.size())
	var stack []uint
	push := func(row, col int) {
		if col < 0 || row < 0 || col >= e.grid.Cols || row >= e.grid.Rows {
			return
		}
		i := uint(row*e.grid.Cols + col)
		if b.Test(i) || outside.Test(i) {
			return
		}
		outside.Set(i)
		stack = append(stack, i)
	}
	for col := 0; col < e.grid.Cols; col++ {
		push(0, col)
		push(e.grid.Rows-1, col)
	}
	for row := 0; row < e.grid.Rows; row++ {
		push(row, 0)
		push(row, e.grid.Cols-1)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		row, col := int(i)/e.grid.Cols, int(i)%e.grid.Cols
		push(row-1, col)
		push(row+1, col)
		push(row, col-1)
		push(row, col+1)
	}
	filled := bitset.New(e.size())
	for i := uint(0); i < e.size(); i++ {
		if !outside.Test(i) {
			filled.Set(i)
		}
	}
	return e.encode(filled)
}

func (e *Engine) Area(ctx context.Context, g geo.Geometry) (float64, error) {
	b, err := e.decode(g)
	if err != nil {
		return 0, err
	}
	return float64(b.Count()) * e.grid.Cell * e.grid.Cell, nil
}

func (e *Engine) Nearest(ctx context.Context, from geo.Point, candidates []geo.Point) (int, float64, error) {
	best, bestDist := -1, math.Inf(1)
	for i, c := range candidates {
		if d := geo.Distance(from, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return -1, 0, nil
	}
	return best, bestDist, nil
}

func (e *Engine) pair(a, b geo.Geometry) (*bitset.BitSet, *bitset.BitSet, error) {
	x, err := e.decode(a)
	if err != nil {
		return nil, nil, err
	}
	y, err := e.decode(b)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
