// Package sunmodel вычисляет топоцентрический азимут и угол места Солнца
// по алгоритму Stjärnhimlen (https://stjarnhimlen.se/comp/tutorial.html).
package sunmodel

import (
	"math"
	"time"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

func mod360(deg float64) float64 {
	m := math.Mod(deg, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m
}

// Angles вычисляет угол места и азимут Солнца (градусы) для наблюдателя в
// точке (lonRad, latRad) в момент tUTC. Долгота и широта — в радианах.
func Angles(tUTC time.Time, lonRad, latRad float64) (elevationDeg, azimuthDeg float64) {
	tUTC = tUTC.UTC()

	year, month, day := tUTC.Date()

	d := float64(367*year-7*(year+(int(month)+9)/12)/4+(275*int(month))/9+day) - 730530

	// Долгота перигелия, [град].
	w := 282.9404 + 4.70935e-5*d
	// Эксцентриситет.
	e := 0.016709 - 1.151e-9*d
	// Средняя аномалия, [град].
	m := mod360(356.0470 + 0.9856002585*d)
	// Наклон эклиптики, [град].
	oblecl := mod360(23.4393 - 3.563e-7*d)
	// Среднее эклиптическое долготы Солнца, [град].
	l := mod360(w + m)

	// Эксцентрическая аномалия, [град].
	eAnom := m + rad2deg*e*math.Sin(m*deg2rad)*(1+e*math.Cos(m*deg2rad))

	// Прямоугольные координаты Солнца в плоскости эклиптики.
	x := math.Cos(eAnom*deg2rad) - e
	y := math.Sin(eAnom*deg2rad) * math.Sqrt(1-e*e)

	r := math.Sqrt(x*x + y*y)
	v := math.Atan2(y, x) * rad2deg

	lon := mod360(v + w)

	x = r * math.Cos(lon*deg2rad)
	y = r * math.Sin(lon*deg2rad)
	z := 0.0

	xEquat := x
	yEquat := y*math.Cos(oblecl*deg2rad) - z*math.Sin(oblecl*deg2rad)
	zEquat := y*math.Sin(oblecl*deg2rad) + z*math.Cos(oblecl*deg2rad)

	ra := math.Atan2(yEquat, xEquat) * rad2deg
	decl := math.Atan2(zEquat, math.Sqrt(xEquat*xEquat+yEquat*yEquat)) * rad2deg

	// Звёздное время в Гринвиче в 00:00 UTC сегодня, [часы].
	gmst0 := (l + 180) / 15
	ut := float64(tUTC.Hour()) + float64(tUTC.Minute())/60 + float64(tUTC.Second())/3600
	sidTime := gmst0 + ut + (lonRad*rad2deg)/15

	// Часовой угол, [град].
	ha := sidTime*15 - ra

	x = math.Cos(ha*deg2rad) * math.Cos(decl*deg2rad)
	y = math.Sin(ha*deg2rad) * math.Cos(decl*deg2rad)
	z = math.Sin(decl * deg2rad)

	xHor := x*math.Sin(latRad) - z*math.Cos(latRad)
	yHor := y
	zHor := x*math.Cos(latRad) + z*math.Sin(latRad)

	azimuthDeg = (math.Atan2(yHor, xHor) + math.Pi) * rad2deg
	elevationDeg = math.Asin(zHor) * rad2deg

	return elevationDeg, azimuthDeg
}
