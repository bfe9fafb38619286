package geoframes

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestGeodeticToECEF(t *testing.T) {
	tests := []struct {
		name    string
		g       Geodetic
		wantX   float64
		wantY   float64
		wantZ   float64
		tol     float64
	}{
		{
			name: "equator prime meridian",
			g:    Geodetic{Lon: 0, Lat: 0, Alt: 0},
			wantX: WGS84A, wantY: 0, wantZ: 0,
			tol: 1e-6,
		},
		{
			name: "north pole",
			g:    Geodetic{Lon: 0, Lat: math.Pi / 2, Alt: 0},
			wantX: 0, wantY: 0, wantZ: WGS84A * (1 - WGS84F),
			tol: 1.0, // S2 допускает приближённое совпадение
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := GeodeticToECEF(tc.g)
			if !almostEqual(got.X, tc.wantX, tc.tol) ||
				!almostEqual(got.Y, tc.wantY, tc.tol) ||
				!almostEqual(got.Z, tc.wantZ, tc.tol) {
				t.Errorf("GeodeticToECEF(%+v) = %+v, want (%v,%v,%v)", tc.g, got, tc.wantX, tc.wantY, tc.wantZ)
			}
		})
	}
}

// ECEFToGeodetic uses the non-iterative geocentric-latitude approximation
// (see DESIGN.md open question on ecef_to_geodetic precision), which carries
// an inherent geodetic/geocentric latitude bias of up to f (~3.35e-3 rad)
// away from the equator and poles. Longitude and near-equatorial/polar
// latitude still round-trip tightly.
func TestRoundTripGeodeticECEF(t *testing.T) {
	cases := []Geodetic{
		{Lon: 50.17763 * Deg2Rad, Lat: 53.21204 * Deg2Rad, Alt: 137},
		{Lon: -120 * Deg2Rad, Lat: 10 * Deg2Rad, Alt: 1000},
		{Lon: 179 * Deg2Rad, Lat: -45 * Deg2Rad, Alt: 0},
		{Lon: 0, Lat: 88 * Deg2Rad, Alt: 50},
	}

	const latTol = 5e-3 // bounded by WGS84F

	for _, g := range cases {
		ecef := GeodeticToECEF(g)
		back := ECEFToGeodetic(ecef)

		if !almostEqual(back.Lon, g.Lon, 1e-6) {
			t.Errorf("lon round-trip: got %v want %v", back.Lon, g.Lon)
		}
		if !almostEqual(back.Lat, g.Lat, latTol) {
			t.Errorf("lat round-trip: got %v want %v", back.Lat, g.Lat)
		}
	}
}

func TestRoundTripGeodeticECEFEquator(t *testing.T) {
	g := Geodetic{Lon: 0.3, Lat: 0, Alt: 0}
	back := ECEFToGeodetic(GeodeticToECEF(g))

	if !almostEqual(back.Lat, g.Lat, 1e-6) {
		t.Errorf("lat round-trip at equator: got %v want %v", back.Lat, g.Lat)
	}
	if !almostEqual(back.Alt, g.Alt, 1e-3) {
		t.Errorf("alt round-trip at equator: got %v want %v", back.Alt, g.Alt)
	}
}

func TestECIToECEF(t *testing.T) {
	p := ECI{X: 7000e3, Y: 0, Z: 0}

	got := ECIToECEF(p, 0, 0)
	if !almostEqual(got.X, 7000e3, 1e-6) || !almostEqual(got.Y, 0, 1e-6) {
		t.Errorf("identity rotation changed position: %+v", got)
	}

	got90 := ECIToECEF(p, math.Pi/2, 0)
	if !almostEqual(got90.X, 0, 1e-3) || !almostEqual(got90.Y, -7000e3, 1e-3) {
		t.Errorf("90deg rotation mismatch: %+v", got90)
	}
}

func TestMJDKnownEpoch(t *testing.T) {
	// 2000-01-01 12:00:00 UTC is the J2000 epoch, MJD 51544.5.
	ref := time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)
	got := MJD(ref)
	if !almostEqual(got, 51544.5, 1e-6) {
		t.Errorf("MJD(J2000) = %v, want 51544.5", got)
	}
}

func TestGMSTIsBoundedAngle(t *testing.T) {
	g := GMST(60000)
	if g < 0 || g >= 2*math.Pi {
		t.Errorf("GMST out of [0, 2pi): %v", g)
	}
}
