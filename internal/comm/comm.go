// Package comm связывает один спутник с одной наземной станцией: считает
// видимость, азимут/угол места, доплеровский сдвиг частот связи и границы
// сеансов связи.
package comm

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/nstitov/orbitrak/internal/geoframes"
	"github.com/nstitov/orbitrak/internal/satellite"
	"github.com/nstitov/orbitrak/internal/station"
	"github.com/nstitov/orbitrak/internal/sunmodel"
)

// SpeedOfLight — скорость света, м/с, используется в формулах Доплера.
const SpeedOfLight = 299_792_458.0

// EarthRadiusComm — радиус Земли, используемый в проверке видимости
// (R_E в формуле §4.4), м. Отличается от экваториального радиуса WGS-84,
// используемого в Propagator — это согласовано с исходной реализацией.
const EarthRadiusComm = 6_371_302.0

// Sample — один расчитанный образец связи на заданный момент времени.
type Sample struct {
	Instant    time.Time
	Pos        geoframes.ECEF
	Visible    bool
	ElevDeg    float64
	AzimuthDeg float64
	UplinkHz   *float64
	DownlinkHz *float64
}

// Session описывает один сеанс видимости (проход).
type Session struct {
	Start, Max, End time.Time

	StartAzDeg, StartElDeg       float64
	MaxAzDeg, MaxElDeg           float64
	EndAzDeg, EndElDeg           float64
	StartSunAzDeg, StartSunElDeg float64
	MaxSunAzDeg, MaxSunElDeg     float64
	EndSunAzDeg, EndSunElDeg     float64
	AzimuthWrapsZero             bool
}

// Comm связывает один Satellite с одной Station. StationName/NoradID —
// back-reference ключи (а не владение): Registry остаётся единственным
// владельцем Satellite и Station.
type Comm struct {
	StationName string
	NoradID     int

	station   *station.Station
	satellite *satellite.Satellite

	Data     []Sample // упорядочено по Instant.
	Sessions []Session // упорядочено по Start.

	logger *slog.Logger
}

// Option настраивает Comm.
type Option func(*Comm)

// WithLogger задаёт логгер; по умолчанию slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Comm) { c.logger = l }
}

// New создаёт Comm, связывающий st и sat.
func New(stationName string, sat *satellite.Satellite, st *station.Station, opts ...Option) *Comm {
	c := &Comm{
		StationName: stationName,
		NoradID:     sat.NoradID,
		station:     st,
		satellite:   sat,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// visibilityAndAngles возвращает видимость, азимут и угол места (градусы)
// для позиции ECEF спутника, без доплеровской части (которая требует
// предыдущего образца).
func (c *Comm) visibilityAndAngles(pos geoframes.ECEF) (visible bool, azDeg, elDeg float64) {
	stn := c.station.Pos.ECEF

	r1 := geoframes.ECEF{X: pos.X - stn.X, Y: pos.Y - stn.Y, Z: pos.Z - stn.Z}
	r2 := stn

	dot := r1.X*r2.X + r1.Y*r2.Y + r1.Z*r2.Z
	modR1 := math.Sqrt(r1.X*r1.X + r1.Y*r1.Y + r1.Z*r1.Z)
	modR2 := math.Sqrt(r2.X*r2.X + r2.Y*r2.Y + r2.Z*r2.Z)

	visibility := dot - modR1*EarthRadiusComm*math.Sin(c.station.MinElev)
	visible = visibility > 0

	elevation := math.Asin(dot / (modR1 * modR2))

	satGeo := geoframes.ECEFToGeodetic(pos)
	delta := satGeo.Lon - c.station.Pos.Lon

	az := math.Atan2(
		math.Sin(delta)*math.Cos(satGeo.Lat),
		math.Cos(c.station.Pos.Lat)*math.Sin(satGeo.Lat)-math.Sin(c.station.Pos.Lat)*math.Cos(satGeo.Lat)*math.Cos(delta),
	)
	if az < 0 {
		az += 2 * math.Pi
	}

	return visible, az * geoframes.Rad2Deg, elevation * geoframes.Rad2Deg
}

func rangeToStation(pos, stn geoframes.ECEF) float64 {
	dx, dy, dz := pos.X-stn.X, pos.Y-stn.Y, pos.Z-stn.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func doppler(f0 float64, v float64, receding bool) float64 {
	if receding {
		return f0 / (1 - v/SpeedOfLight)
	}
	return f0 / (1 + v/SpeedOfLight)
}

// ComputeOverPrediction пересчитывает comm_data с нуля из траектории
// спутника. Если траектория ещё не рассчитана, считает с параметрами по
// умолчанию и логирует предупреждение, как того требует §4.4 (без ошибки).
func (c *Comm) ComputeOverPrediction(ctx context.Context) {
	if len(c.satellite.Trajectory) == 0 {
		c.logger.Warn("satellite has no trajectory; running predict_cm with defaults",
			"norad_id", c.NoradID, "station", c.StationName)
		_ = c.satellite.PredictCM(ctx, time.Now().UTC(), 86400, 1)
	}

	traj := c.satellite.Trajectory
	samples := make([]Sample, len(traj))

	var prevPos geoframes.ECEF
	var prevRange float64
	stn := c.station.Pos.ECEF

	for i, pt := range traj {
		visible, az, el := c.visibilityAndAngles(pt.Pos)

		var uplink, downlink *float64
		if i > 0 {
			curRange := rangeToStation(pt.Pos, stn)
			v := curRange - prevRange
			receding := v >= 0

			if c.satellite.UplinkHz != nil {
				u := doppler(*c.satellite.UplinkHz, math.Abs(v), receding)
				uplink = &u
			}
			if c.satellite.DownlinkHz != nil {
				d := doppler(*c.satellite.DownlinkHz, math.Abs(v), !receding)
				downlink = &d
			}
		}

		samples[i] = Sample{
			Instant:    pt.Instant,
			Pos:        pt.Pos,
			Visible:    visible,
			ElevDeg:    el,
			AzimuthDeg: az,
			UplinkHz:   uplink,
			DownlinkHz: downlink,
		}

		prevPos = pt.Pos
		prevRange = rangeToStation(prevPos, stn)
	}

	c.Data = samples
}

// RecalculateLinksFrom пересчитывает uplink/downlink для всех образцов с
// instant >= from, сохраняя азимут/угол места/видимость неизменными.
func (c *Comm) RecalculateLinksFrom(from time.Time) {
	stn := c.station.Pos.ECEF

	idx := sort.Search(len(c.Data), func(i int) bool { return !c.Data[i].Instant.Before(from) })
	if idx == 0 {
		idx = 1 // первый образец никогда не получает doppler (нет предыдущего).
	}

	for i := idx; i < len(c.Data); i++ {
		curRange := rangeToStation(c.Data[i].Pos, stn)
		prevRange := rangeToStation(c.Data[i-1].Pos, stn)
		v := curRange - prevRange
		receding := v >= 0

		if c.satellite.UplinkHz != nil {
			u := doppler(*c.satellite.UplinkHz, math.Abs(v), receding)
			c.Data[i].UplinkHz = &u
		} else {
			c.Data[i].UplinkHz = nil
		}
		if c.satellite.DownlinkHz != nil {
			d := doppler(*c.satellite.DownlinkHz, math.Abs(v), !receding)
			c.Data[i].DownlinkHz = &d
		} else {
			c.Data[i].DownlinkHz = nil
		}
	}
}

// DefineSessions выполняет однопроходный обход comm_data и строит Sessions:
// сеанс открывается при переходе false->true видимости и закрывается при
// true->false. Внутри сеанса отслеживается максимум угла места (строго
// больше) вместе с азимутом/временем/солнечными углами на этот момент, а
// также флаг пересечения севера (|Δaz|>330° между соседними образцами).
func (c *Comm) DefineSessions() {
	var sessions []Session

	open := false
	var startIdx int
	var maxIdx int
	maxEl := -90.0
	wraps := false
	var prevAz float64
	havePrevAz := false

	closeSession := func(endIdx int) {
		s := c.Data[startIdx]
		m := c.Data[maxIdx]
		e := c.Data[endIdx]

		startSunEl, startSunAz := sunmodel.Angles(s.Instant, c.station.Pos.Lon, c.station.Pos.Lat)
		maxSunEl, maxSunAz := sunmodel.Angles(m.Instant, c.station.Pos.Lon, c.station.Pos.Lat)
		endSunEl, endSunAz := sunmodel.Angles(e.Instant, c.station.Pos.Lon, c.station.Pos.Lat)

		sessions = append(sessions, Session{
			Start: s.Instant.Truncate(time.Second),
			Max:   m.Instant.Truncate(time.Second),
			End:   e.Instant.Truncate(time.Second),

			StartAzDeg: s.AzimuthDeg, StartElDeg: s.ElevDeg,
			MaxAzDeg: m.AzimuthDeg, MaxElDeg: m.ElevDeg,
			EndAzDeg: e.AzimuthDeg, EndElDeg: e.ElevDeg,

			StartSunAzDeg: startSunAz, StartSunElDeg: startSunEl,
			MaxSunAzDeg: maxSunAz, MaxSunElDeg: maxSunEl,
			EndSunAzDeg: endSunAz, EndSunElDeg: endSunEl,

			AzimuthWrapsZero: wraps,
		})
	}

	for i, s := range c.Data {
		if s.Visible && !open {
			open = true
			startIdx = i
			maxIdx = i
			maxEl = s.ElevDeg
			wraps = false
			havePrevAz = false
		}

		if open {
			if havePrevAz && math.Abs(prevAz-s.AzimuthDeg) > 330 {
				wraps = true
			}
			prevAz = s.AzimuthDeg
			havePrevAz = true

			if s.ElevDeg > maxEl {
				maxEl = s.ElevDeg
				maxIdx = i
			}
		}

		if !s.Visible && open {
			closeSession(i - 1)
			open = false
		}
	}

	if open {
		closeSession(len(c.Data) - 1)
	}

	c.Sessions = sessions
}
