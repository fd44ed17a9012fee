package geo

import (
	"math"
	"testing"
)

func TestPointGeometryRoundTrip(t *testing.T) {
	p := Point{Lat: 40.7128, Long: -74.006}
	got, ok := ParsePoint(PointGeometry(p))
	if !ok || got != p {
		t.Fatalf("ParsePoint = %+v, %v", got, ok)
	}
	if _, ok := ParsePoint("SRID=4326;POLYGON((0 0,1 0,1 1,0 0))"); ok {
		t.Fatal("polygon parsed as point")
	}
}

func TestRings(t *testing.T) {
	tests := []struct {
		name  string
		g     Geometry
		rings int
	}{
		{"rectangle", Rectangle(0, 0, 1, 1), 1},
		{"polygon with hole", "POLYGON((0 0,4 0,4 4,0 4,0 0),(1 1,2 1,2 2,1 1))", 2},
		{"multipolygon", "SRID=4326;MULTIPOLYGON(((0 0,1 0,1 1,0 0)),((5 5,6 5,6 6,5 5)))", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rings, err := Rings(tt.g)
			if err != nil {
				t.Fatalf("Rings: %v", err)
			}
			if len(rings) != tt.rings {
				t.Fatalf("got %d rings, want %d", len(rings), tt.rings)
			}
		})
	}
	if _, err := Rings("LINESTRING(0 0,1 1)"); err == nil {
		t.Fatal("expected error for linestring")
	}
}

func TestEnvelopeAndDistance(t *testing.T) {
	minLong, minLat, maxLong, maxLat, err := Envelope(Rectangle(-75, 40, -74.99, 40.01))
	if err != nil {
		t.Fatal(err)
	}
	if minLong != -75 || minLat != 40 || maxLong != -74.99 || maxLat != 40.01 {
		t.Fatalf("envelope = %v %v %v %v", minLong, minLat, maxLong, maxLat)
	}
	if d := Distance(Point{0, 0}, Point{3, 4}); math.Abs(d-5) > 1e-12 {
		t.Fatalf("Distance = %v", d)
	}
}
