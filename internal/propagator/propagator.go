// Package propagator реализует численное интегрирование движения центра
// масс спутника в системе ECI методом Рунге-Кутты 4-го порядка с фиксированным
// шагом, под действием центрального тяготения и зональных гармоник J2, J4.
package propagator

import (
	"errors"
	"fmt"
	"math"
)

// Ошибки пропагации.
var (
	ErrInvalidStep = errors.New("propagator: step must be positive")
	ErrInvalidN    = errors.New("propagator: step count must not be negative")
)

// Константы гравитационной модели Земли, используемые исходной реализацией.
const (
	Mu          = 398600.44e9  // Гравитационный параметр Земли, м³/с².
	EarthRadius = 6378.136e3   // Экваториальный радиус Земли, м.
	J2          = 1082.627e-6  // Вторая зональная гармоника.
	J4          = -1.617608e-6 // Четвёртая зональная гармоника.
)

// State представляет вектор состояния центра масс в ECI: позицию (м) и
// скорость (м/с).
type State struct {
	X, Y, Z    float64
	Vx, Vy, Vz float64
}

// derivative представляет производную состояния: (vx,vy,vz, ax,ay,az).
type derivative struct {
	Vx, Vy, Vz float64
	Ax, Ay, Az float64
}

// Accelerate вычисляет вектор ускорения в точке (x,y,z) под действием
// центрального тяготения и зональных гармоник J2 и J4.
func Accelerate(x, y, z float64) (ax, ay, az float64) {
	r := math.Sqrt(x*x + y*y + z*z)

	muN := Mu / (r * r)
	xn, yn, zn := x/r, y/r, z/r
	an := EarthRadius / r

	zn2 := zn * zn

	c2xy := 1 - 5*zn2
	c4xy := 3 + (63*zn2-42)*zn2

	c2z := 3 - 5*zn2
	c4z := 15 + (63*zn2-70)*zn2

	an2 := an * an
	an4 := an2 * an2

	ax = -muN*xn - 1.5*J2*muN*xn*an2*c2xy + 0.625*J4*muN*xn*an4*c4xy
	ay = -muN*yn - 1.5*J2*muN*yn*an2*c2xy + 0.625*J4*muN*yn*an4*c4xy
	az = -muN*zn - 1.5*J2*muN*zn*an2*c2z + 0.625*J4*muN*zn*an4*c4z

	return ax, ay, az
}

func deriv(s State) derivative {
	ax, ay, az := Accelerate(s.X, s.Y, s.Z)
	return derivative{Vx: s.Vx, Vy: s.Vy, Vz: s.Vz, Ax: ax, Ay: ay, Az: az}
}

func addScaled(s State, d derivative, h float64) State {
	return State{
		X:  s.X + d.Vx*h,
		Y:  s.Y + d.Vy*h,
		Z:  s.Z + d.Vz*h,
		Vx: s.Vx + d.Ax*h,
		Vy: s.Vy + d.Ay*h,
		Vz: s.Vz + d.Az*h,
	}
}

// step выполняет один шаг классического RK4 с фиксированным шагом dt.
func step(s State, dt float64) State {
	k1 := deriv(s)
	k2 := deriv(addScaled(s, k1, dt/2))
	k3 := deriv(addScaled(s, k2, dt/2))
	k4 := deriv(addScaled(s, k3, dt))

	combine := func(a, b, c, d float64) float64 {
		return (a + 2*b + 2*c + d) / 6
	}

	return State{
		X:  s.X + dt*combine(k1.Vx, k2.Vx, k3.Vx, k4.Vx),
		Y:  s.Y + dt*combine(k1.Vy, k2.Vy, k3.Vy, k4.Vy),
		Z:  s.Z + dt*combine(k1.Vz, k2.Vz, k3.Vz, k4.Vz),
		Vx: s.Vx + dt*combine(k1.Ax, k2.Ax, k3.Ax, k4.Ax),
		Vy: s.Vy + dt*combine(k1.Ay, k2.Ay, k3.Ay, k4.Ay),
		Vz: s.Vz + dt*combine(k1.Az, k2.Az, k3.Az, k4.Az),
	}
}

// Propagate интегрирует state0 вперёд на nSteps шагов длиной step секунд,
// возвращая плотную траекторию длиной nSteps+1 (включая начальное состояние).
func Propagate(state0 State, stepSec float64, nSteps int) ([]State, error) {
	if stepSec <= 0 {
		return nil, ErrInvalidStep
	}
	if nSteps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidN, nSteps)
	}

	traj := make([]State, nSteps+1)
	traj[0] = state0

	cur := state0
	for i := 1; i <= nSteps; i++ {
		cur = step(cur, stepSec)
		traj[i] = cur
	}

	return traj, nil
}
