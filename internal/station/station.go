// Package station описывает геодезическую позицию наземной станции и её
// производную ECEF-позицию.
package station

import (
	"errors"
	"fmt"
	"math"

	"github.com/nstitov/orbitrak/internal/geoframes"
)

// ErrInvalidMinElevation возвращается, если минимальный угол места выходит
// за пределы [-π/2, π/2].
var ErrInvalidMinElevation = errors.New("station: min elevation out of range")

// ErrEmptyName возвращается для пустого имени станции.
var ErrEmptyName = errors.New("station: name must not be empty")

// Position хранит геодезическую и производную ECEF позицию станции.
// Долгота/широта — в радианах, высота — в метрах; ECEF неизменна после
// создания.
type Position struct {
	Lon, Lat, Alt float64
	ECEF          geoframes.ECEF
}

// NewPosition строит Position из геодезических координат (радианы, метры).
func NewPosition(lonRad, latRad, altM float64) Position {
	ecef := geoframes.GeodeticToECEF(geoframes.Geodetic{Lon: lonRad, Lat: latRad, Alt: altM})
	return Position{Lon: lonRad, Lat: latRad, Alt: altM, ECEF: ecef}
}

// Station — наземная станция: имя (уникальный ключ в Registry), позиция,
// минимальный угол места в радианах.
type Station struct {
	Name     string
	Pos      Position
	MinElev  float64
}

// New создаёт Station, проверяя инварианты данных модели (§3).
func New(name string, lonRad, latRad, altM, minElevRad float64) (*Station, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if minElevRad < -math.Pi/2 || minElevRad > math.Pi/2 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMinElevation, minElevRad)
	}

	return &Station{
		Name:    name,
		Pos:     NewPosition(lonRad, latRad, altM),
		MinElev: minElevRad,
	}, nil
}
