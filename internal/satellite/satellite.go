// Package satellite владеет TLE спутника, обработчиком Sgp4Provider и
// текущей рассчитанной траекторией в ECEF.
package satellite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nstitov/orbitrak/internal/geoframes"
	"github.com/nstitov/orbitrak/internal/propagator"
	"github.com/nstitov/orbitrak/internal/sgp4provider"
	"github.com/nstitov/orbitrak/internal/tle"
	"github.com/nstitov/orbitrak/internal/tlecache"
	"github.com/nstitov/orbitrak/internal/tlesource"
)

// Ошибки Satellite, см. SPEC_FULL.md §7.
var (
	ErrNoTLE          = errors.New("satellite: no TLE set")
	ErrTleData        = errors.New("satellite: TLE data invalid or empty")
	ErrSgp4Provider   = errors.New("satellite: SGP4 provider failed")
	ErrInvalidNoradID = errors.New("satellite: NORAD ID out of range [1, 99999]")
)

// TrajPoint — одна точка плотной траектории в ECEF, метры.
type TrajPoint struct {
	Instant time.Time
	Pos     geoframes.ECEF
}

// Satellite — один спутник под станцией: опциональный TLE, опциональные
// частоты линий связи и опциональная траектория.
type Satellite struct {
	NoradID       int
	Name          string // из 3-line формата TLE, опционально, не используется в расчётах.
	UplinkHz      *float64
	DownlinkHz    *float64
	TLE           *tle.TLE
	Trajectory    []TrajPoint
	StepPrediction float64 // шаг последнего predict_cm, с.

	provider sgp4provider.Provider
	source   tlesource.Source
	cache    *tlecache.Cache
}

// New создаёт Satellite с заданным NORAD ID. provider не может быть nil;
// source и cache опциональны (nil отключает соответствующие операции).
func New(noradID int, provider sgp4provider.Provider, source tlesource.Source, cache *tlecache.Cache) (*Satellite, error) {
	if noradID < 1 || noradID > 99999 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNoradID, noradID)
	}

	return &Satellite{
		NoradID:  noradID,
		provider: provider,
		source:   source,
		cache:    cache,
	}, nil
}

// SetupTLEFromLines устанавливает TLE из пары строк, кэширует его на диск.
func (s *Satellite) SetupTLEFromLines(line1, line2 string) error {
	t, err := tle.ParseLines(line1, line2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTleData, err)
	}
	return s.adoptTLE(t)
}

// SetupTLEFromString устанавливает TLE из произвольного текстового блока
// (2- или 3-строчный формат).
func (s *Satellite) SetupTLEFromString(blob string) error {
	t, err := tle.ParseString(blob)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTleData, err)
	}
	return s.adoptTLE(t)
}

// SetupTLEFromExternalSource запрашивает актуальный TLE у сконфигурированного
// TleSource (см. SPEC_FULL.md §9) и устанавливает его.
func (s *Satellite) SetupTLEFromExternalSource(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("%w: no TleSource configured", ErrTleData)
	}

	t, err := s.source.FetchLatest(ctx, s.NoradID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTleData, err)
	}

	return s.adoptTLE(t)
}

// UpdateTLEFromExternalSource заменяет кэшированный TLE атомарно: отказ
// внешнего источника или записи на диск оставляет предыдущий TLE в силе.
func (s *Satellite) UpdateTLEFromExternalSource(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("%w: no TleSource configured", ErrTleData)
	}

	t, err := s.source.FetchLatest(ctx, s.NoradID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTleData, err)
	}

	if s.cache != nil {
		if err := s.cache.Update(t); err != nil {
			return fmt.Errorf("satellite: caching updated TLE: %w", err)
		}
	}

	s.TLE = t
	return nil
}

func (s *Satellite) adoptTLE(t *tle.TLE) error {
	if s.cache != nil {
		if err := s.cache.Store(t); err != nil {
			return fmt.Errorf("satellite: caching TLE: %w", err)
		}
	}
	s.TLE = t
	s.Name = t.Name
	return nil
}

// PredictCM пропагирует центр масс спутника на горизонт horizonSec секунд
// с шагом stepSec, начиная с start, и сохраняет результат в Trajectory
// (ECEF, метры). GMST и seconds-of-day вычисляются один раз для start, а
// затем sod линейно продвигается на stepSec на каждой выборке — так же,
// как это делает predict_cm в исходной реализации.
func (s *Satellite) PredictCM(ctx context.Context, start time.Time, horizonSec, stepSec float64) error {
	if s.TLE == nil {
		return ErrNoTLE
	}
	if stepSec <= 0 {
		return fmt.Errorf("%w: step must be positive", ErrTleData)
	}

	state0, err := s.provider.StateAt(s.TLE, start)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSgp4Provider, err)
	}

	nSteps := int(horizonSec / stepSec)

	traj, err := propagator.Propagate(state0, stepSec, nSteps)
	if err != nil {
		return fmt.Errorf("satellite: propagation failed: %w", err)
	}

	gmst0 := geoframes.GMST(geoframes.MJD(start))
	sod0 := geoframes.SecondsOfDay(start)

	points := make([]TrajPoint, len(traj))
	for i, st := range traj {
		sod := sod0 + float64(i)*stepSec
		ecef := geoframes.ECIToECEF(geoframes.ECI{X: st.X, Y: st.Y, Z: st.Z}, gmst0, sod)

		instant := start.Add(time.Duration(float64(i) * stepSec * float64(time.Second))).Truncate(time.Second)

		points[i] = TrajPoint{Instant: instant, Pos: ecef}
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Instant.Before(points[j].Instant) })

	s.Trajectory = points
	s.StepPrediction = stepSec

	return nil
}

// At возвращает самую точку траектории, соответствующую секунде instant,
// и true, если такая точка существует.
func (s *Satellite) At(instant time.Time) (TrajPoint, bool) {
	instant = instant.Truncate(time.Second)
	idx := sort.Search(len(s.Trajectory), func(i int) bool {
		return !s.Trajectory[i].Instant.Before(instant)
	})
	if idx < len(s.Trajectory) && s.Trajectory[idx].Instant.Equal(instant) {
		return s.Trajectory[idx], true
	}
	return TrajPoint{}, false
}
