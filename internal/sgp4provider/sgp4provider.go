// Package sgp4provider реализует абстракцию Sgp4Provider поверх библиотеки
// go-satellite: по TLE и моменту времени возвращает начальное состояние
// центра масс (позиция, скорость) в системе ECI на эпоху TLE.
package sgp4provider

import (
	"errors"
	"fmt"
	"math"
	"time"

	gosat "github.com/joshuaferrara/go-satellite"

	"github.com/nstitov/orbitrak/internal/propagator"
	"github.com/nstitov/orbitrak/internal/tle"
)

// ErrPropagationFailed сигнализирует о том, что SGP4 вернул вырожденный
// результат (как правило — TLE описывает уже распавшуюся орбиту).
var ErrPropagationFailed = errors.New("sgp4provider: propagation failed")

// Provider — конкретная реализация абстрактной возможности Sgp4Provider,
// на которую опирается Satellite/Propagator (см. SPEC_FULL.md §9).
type Provider interface {
	// StateAt возвращает состояние центра масс в ECI (метры, м/с) для
	// заданного TLE в момент t.
	StateAt(t *tle.TLE, instant time.Time) (propagator.State, error)
}

// GoSatelliteProvider реализует Provider поверх github.com/joshuaferrara/go-satellite.
type GoSatelliteProvider struct {
	gravity gosat.Gravity
}

// Option настраивает GoSatelliteProvider.
type Option func(*GoSatelliteProvider)

// WithGravityWGS72 переключает модель гравитации на WGS-72 (исторически
// принятую в стандарте SGP4 для TLE).
func WithGravityWGS72() Option {
	return func(p *GoSatelliteProvider) { p.gravity = gosat.GravityWGS72 }
}

// NewGoSatelliteProvider создаёт Provider с моделью гравитации WGS-84 по
// умолчанию.
func NewGoSatelliteProvider(opts ...Option) *GoSatelliteProvider {
	p := &GoSatelliteProvider{gravity: gosat.GravityWGS84}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StateAt вычисляет состояние спутника в ECI (метры, м/с) в момент instant.
func (p *GoSatelliteProvider) StateAt(t *tle.TLE, instant time.Time) (propagator.State, error) {
	if t == nil {
		return propagator.State{}, fmt.Errorf("sgp4provider: nil TLE")
	}

	sat := gosat.TLEToSat(t.Line1, t.Line2, p.gravity)

	instant = instant.UTC()
	year, month, day := instant.Date()
	hour, minute, sec := instant.Clock()

	pos, vel := gosat.Propagate(sat, year, int(month), day, hour, minute, sec)

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return propagator.State{}, fmt.Errorf("%w: NORAD %d at %s", ErrPropagationFailed, t.NoradID, instant)
	}

	// go-satellite возвращает координаты в километрах/(км/с); внутреннее
	// представление этого сервиса — метры/(м/с).
	const kmToM = 1000.0

	return propagator.State{
		X: pos.X * kmToM, Y: pos.Y * kmToM, Z: pos.Z * kmToM,
		Vx: vel.X * kmToM, Vy: vel.Y * kmToM, Vz: vel.Z * kmToM,
	}, nil
}

// GMST возвращает звёздное время по Гринвичу для момента t, делегируя в
// go-satellite (удобный довесок поверх внутреннего geoframes.GMST, для
// вызывающих, которым нужен именно расчёт go-satellite).
func GMST(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	return gosat.GSTimeFromDate(year, int(month), day, hour, minute, sec)
}

// JulianDay возвращает юлианскую дату для момента t через go-satellite.
func JulianDay(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	return gosat.JDay(year, int(month), day, hour, minute, sec)
}
