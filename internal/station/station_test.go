package station

import (
	"errors"
	"math"
	"testing"
)

func TestNewValid(t *testing.T) {
	s, err := New("Samara", 50.17763*math.Pi/180, 53.21204*math.Pi/180, 137, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Name != "Samara" {
		t.Errorf("Name = %q, want Samara", s.Name)
	}
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New("", 0, 0, 0, 0)
	if !errors.Is(err, ErrEmptyName) {
		t.Errorf("err = %v, want ErrEmptyName", err)
	}
}

func TestNewRejectsOutOfRangeElevation(t *testing.T) {
	_, err := New("x", 0, 0, 0, math.Pi)
	if !errors.Is(err, ErrInvalidMinElevation) {
		t.Errorf("err = %v, want ErrInvalidMinElevation", err)
	}
}

func TestNewPositionDerivesECEF(t *testing.T) {
	p := NewPosition(0, 0, 0)
	if math.Abs(p.ECEF.X-6378136.0) > 1e-6 {
		t.Errorf("ECEF.X = %v, want ~6378136", p.ECEF.X)
	}
}
