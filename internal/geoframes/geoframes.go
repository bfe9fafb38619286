// Package geoframes реализует преобразования координат между геодезической,
// ECEF и ECI системами отсчёта по модели эллипсоида WGS-84.
package geoframes

import (
	"math"
	"time"
)

// Константы эллипсоида WGS-84. Все величины в метрах и радианах.
const (
	// WGS84A — экваториальный радиус Земли (большая полуось), м.
	WGS84A = 6_378_136.0

	// WGS84F — сплюснутость эллипсоида.
	WGS84F = 1.0 / 298.257223563

	// WGS84E2 — квадрат первого эксцентриситета: e² = 1 − (1−f)².
	WGS84E2 = 1.0 - (1.0-WGS84F)*(1.0-WGS84F)

	// OmegaEarth — угловая скорость вращения Земли, рад/с.
	OmegaEarth = 7.29211e-5

	// Deg2Rad — коэффициент перевода градусов в радианы.
	Deg2Rad = math.Pi / 180.0

	// Rad2Deg — коэффициент перевода радианов в градусы.
	Rad2Deg = 180.0 / math.Pi
)

// ECEF представляет позицию в системе Earth-Centered Earth-Fixed, метры.
type ECEF struct {
	X, Y, Z float64
}

// ECI представляет позицию в инерциальной системе отсчёта, метры.
type ECI struct {
	X, Y, Z float64
}

// Geodetic представляет географические координаты: долгота и широта в
// радианах, высота над эллипсоидом в метрах.
type Geodetic struct {
	Lon float64
	Lat float64
	Alt float64
}

// GeodeticToECEF переводит геодезические координаты в ECEF по модели WGS-84.
//
//	N = a / sqrt(1 - e²sin²φ)
//	x = (N+h)cosφ cosλ; y = (N+h)cosφ sinλ; z = ((1-f)²N+h)sinφ
func GeodeticToECEF(g Geodetic) ECEF {
	sinLat := math.Sin(g.Lat)
	cosLat := math.Cos(g.Lat)
	sinLon := math.Sin(g.Lon)
	cosLon := math.Cos(g.Lon)

	n := WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)
	oneMinusF := 1.0 - WGS84F

	return ECEF{
		X: (n + g.Alt) * cosLat * cosLon,
		Y: (n + g.Alt) * cosLat * sinLon,
		Z: (oneMinusF*oneMinusF*n + g.Alt) * sinLat,
	}
}

// ECEFToGeodetic переводит ECEF координаты в геодезические по незамкнутой
// (неитеративной) аппроксимации источника: геоцентрическая широта
// φ=atan2(z, sqrt(x²+y²)), высота через радиус сферы, сплюснутой по широте
// первого порядка: alt = r − a(1−f·sin²φ). Не использует итеративную схему
// Bowring; несёт смещение геоцентрической/геодезической широты до ~f вдали
// от полюсов и экватора (см. DESIGN.md, открытый вопрос по точности).
func ECEFToGeodetic(e ECEF) Geodetic {
	lon := math.Atan2(e.Y, e.X)

	p := math.Sqrt(e.X*e.X + e.Y*e.Y)
	lat := math.Atan2(e.Z, p)

	r := math.Sqrt(e.X*e.X + e.Y*e.Y + e.Z*e.Z)
	sinLat := math.Sin(lat)
	rz := WGS84A * (1.0 - WGS84F*sinLat*sinLat)

	return Geodetic{Lon: lon, Lat: lat, Alt: r - rz}
}

// GMST вычисляет Greenwich Mean Sidereal Time (рад) из юлианской даты,
// выраженной как модифицированная юлианская дата (MJD).
//
//	Tu = (MJD_int - 51544.5) / 36525
//	GST = 1.753368559233266 + (628.3319706888409 + (6.770714e-6 - 4.51e-10*Tu)*Tu)*Tu
func GMST(mjd float64) float64 {
	tu := (math.Floor(mjd) - 51544.5) / 36525.0

	gst := 1.753368559233266 + (628.3319706888409+(6.770714e-6-4.51e-10*tu)*tu)*tu

	return math.Mod(gst, 2*math.Pi)
}

// ECIToECEF поворачивает ECI координаты в ECEF на сидерический угол
// S = gmst + OmegaEarth*sod, где sod — секунды истекшие с начала суток.
func ECIToECEF(p ECI, gmst, sod float64) ECEF {
	s := gmst + OmegaEarth*sod

	cosS := math.Cos(s)
	sinS := math.Sin(s)

	return ECEF{
		X: p.X*cosS + p.Y*sinS,
		Y: -p.X*sinS + p.Y*cosS,
		Z: p.Z,
	}
}

// MJD возвращает модифицированную юлианскую дату (MJD = JD - 2400000.5)
// момента времени t, по формуле юлианской даты Meeus.
func MJD(t time.Time) float64 {
	t = t.UTC()
	y, m, d := t.Date()
	year, month, day := y, int(m), d

	if month <= 2 {
		year--
		month += 12
	}

	a := year / 100
	b := 2 - a + a/4

	jd0 := math.Floor(365.25*float64(year+4716)) +
		math.Floor(30.6001*float64(month+1)) +
		float64(day) + float64(b) - 1524.5

	secOfDay := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9

	return jd0 - 2400000.5 + secOfDay/86400.0
}

// SecondsOfDay возвращает число секунд, истекших с начала суток UTC для t.
func SecondsOfDay(t time.Time) float64 {
	t = t.UTC()
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
}
