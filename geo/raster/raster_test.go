package raster

import (
	"context"
	"math"
	"testing"

	"spot-game-server/geo"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Grid{MinLong: 0, MinLat: 0, Cell: 1, Cols: 20, Rows: 20})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestRasterizeAndContains(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	square := geo.Rectangle(2, 2, 6, 6)

	tests := []struct {
		p    geo.Point
		want bool
	}{
		{geo.Point{Long: 3.5, Lat: 3.5}, true},
		{geo.Point{Long: 5.9, Lat: 2.1}, true},
		{geo.Point{Long: 7.5, Lat: 3.5}, false},
		{geo.Point{Long: -1, Lat: -1}, false},
	}
	for _, tt := range tests {
		got, err := e.Contains(ctx, square, tt.p)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Contains(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	area, err := e.Area(ctx, square)
	if err != nil {
		t.Fatal(err)
	}
	if area != 16 {
		t.Fatalf("area = %v, want 16", area)
	}
}

func TestUnionDifferenceIntersects(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)
	a := geo.Rectangle(0, 0, 4, 4)
	b := geo.Rectangle(2, 2, 6, 6)

	u, err := e.Union(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if area, _ := e.Area(ctx, u); area != 28 {
		t.Fatalf("union area = %v, want 28", area)
	}
	d, err := e.Difference(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if area, _ := e.Area(ctx, d); area != 12 {
		t.Fatalf("difference area = %v, want 12", area)
	}
	hit, err := e.Intersects(ctx, d, b)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Fatal("difference still intersects subtrahend")
	}
	empty, err := e.Difference(ctx, a, a)
	if err != nil {
		t.Fatal(err)
	}
	if !empty.Empty() {
		t.Fatalf("a - a = %q, want empty", empty)
	}
}

func TestFillExteriorClosesLoop(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t)

	// A ring of buffered points around (10,10) with radius 4.
	var trail geo.Geometry
	for step := 0; step < 32; step++ {
		a := float64(step) / 32 * 2 * math.Pi
		p := geo.Point{Long: 10 + 4*math.Cos(a), Lat: 10 + 4*math.Sin(a)}
		buf, err := e.Buffer(ctx, p, 0.8)
		if err != nil {
			t.Fatal(err)
		}
		if trail, err = e.Union(ctx, trail, buf); err != nil {
			t.Fatal(err)
		}
	}
	if inside, _ := e.Contains(ctx, trail, geo.Point{Long: 10.5, Lat: 10.5}); inside {
		t.Fatal("trail should not cover the loop centre")
	}
	filled, err := e.FillExterior(ctx, trail)
	if err != nil {
		t.Fatal(err)
	}
	if inside, _ := e.Contains(ctx, filled, geo.Point{Long: 10.5, Lat: 10.5}); !inside {
		t.Fatal("filled territory should cover the loop centre")
	}
	trailArea, _ := e.Area(ctx, trail)
	filledArea, _ := e.Area(ctx, filled)
	if filledArea <= trailArea {
		t.Fatalf("filled area %v should exceed trail area %v", filledArea, trailArea)
	}
}

func TestNearest(t *testing.T) {
	e := testEngine(t)
	idx, dist, err := e.Nearest(context.Background(), geo.Point{}, []geo.Point{{Lat: 3, Long: 4}, {Lat: 1, Long: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 || math.Abs(dist-math.Sqrt2) > 1e-12 {
		t.Fatalf("Nearest = %d, %v", idx, dist)
	}
	if idx, _, _ := e.Nearest(context.Background(), geo.Point{}, nil); idx != -1 {
		t.Fatalf("Nearest(nil) = %d", idx)
	}
}

func TestGridFor(t *testing.T) {
	g, err := GridFor(geo.Rectangle(0, 0, 10, 5), 1)
	if err != nil {
		t.Fatal(err)
	}
	if g.Cols != 12 || g.Rows != 7 || g.MinLong != -1 || g.MinLat != -1 {
		t.Fatalf("grid = %+v", g)
	}
}
