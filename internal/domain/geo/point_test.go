package geo

import (
	"math"
	"testing"
)

func almost(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestDMS_Decimal(t *testing.T) {
	tests := []struct {
		name string
		dms  DMS
		ref  string
		want float64
	}{
		{"north", DMS{37, 30, 0}, "N", 37.5},
		{"east", DMS{127, 0, 0}, "E", 127.0},
		{"south", DMS{33, 52, 4.08}, "S", -(33 + 52.0/60 + 4.08/3600)},
		{"west", DMS{122, 25, 9.6}, "W", -(122 + 25.0/60 + 9.6/3600)},
		{"lowercase ref", DMS{10, 0, 0}, "s", -10},
		{"empty ref", DMS{1, 30, 0}, "", 1.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.dms.Decimal(tc.ref)
			if !almost(got, tc.want, 1e-9) {
				t.Errorf("Decimal(%q) = %f, want %f", tc.ref, got, tc.want)
			}
		})
	}
}

func TestDMS_RoundTrip(t *testing.T) {
	coords := []struct {
		deg      float64
		latitude bool
	}{
		{37.5, true},
		{127.0, false},
		{-33.8678, true},
		{-151.2073, false},
		{0.000123, true},
		{-179.99999, false},
		{89.123456, true},
	}
	for _, c := range coords {
		dms, ref := ToDMS(c.deg, c.latitude)
		got := dms.Decimal(ref)
		if !almost(got, c.deg, 1e-9) {
			t.Errorf("round trip %f -> %+v %s -> %f", c.deg, dms, ref, got)
		}
		if c.deg < 0 && ref != "S" && ref != "W" {
			t.Errorf("expected southern/western ref for %f, got %q", c.deg, ref)
		}
		if c.deg >= 0 && ref != "N" && ref != "E" {
			t.Errorf("expected northern/eastern ref for %f, got %q", c.deg, ref)
		}
	}
}

func TestDMSFromSlice(t *testing.T) {
	if _, ok := DMSFromSlice([]float64{1, 2}); ok {
		t.Error("expected incomplete triple to be rejected")
	}
	d, ok := DMSFromSlice([]float64{37, 33, 36})
	if !ok {
		t.Fatal("expected triple to be accepted")
	}
	if !almost(d.Decimal("N"), 37.56, 1e-9) {
		t.Errorf("unexpected decimal: %f", d.Decimal("N"))
	}
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(127.0, 37.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lon != 127.0 || p.Lat != 37.5 {
		t.Errorf("unexpected point: %+v", p)
	}
	if _, err := NewPoint(200, 0); err == nil {
		t.Error("expected error for longitude out of range")
	}
	if _, err := NewPoint(0, -91); err == nil {
		t.Error("expected error for latitude out of range")
	}
}

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.1, false},
	}
	for _, tc := range tests {
		if got := ValidateCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("ValidateCoordinates(%f, %f) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}
