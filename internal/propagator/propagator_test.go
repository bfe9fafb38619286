package propagator

import (
	"math"
	"testing"
)

func magnitude(s State) float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// keplerStep runs one RK4 step under pure two-body gravity (J2=J4=0), to
// isolate the integrator's own accuracy from the zonal perturbation model.
func keplerStep(s State, dt float64) State {
	accel := func(s State) derivative {
		r := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
		muN := Mu / (r * r * r)
		return derivative{
			Vx: s.Vx, Vy: s.Vy, Vz: s.Vz,
			Ax: -muN * s.X, Ay: -muN * s.Y, Az: -muN * s.Z,
		}
	}

	k1 := accel(s)
	k2 := accel(addScaled(s, k1, dt/2))
	k3 := accel(addScaled(s, k2, dt/2))
	k4 := accel(addScaled(s, k3, dt))

	combine := func(a, b, c, d float64) float64 { return (a + 2*b + 2*c + d) / 6 }

	return State{
		X:  s.X + dt*combine(k1.Vx, k2.Vx, k3.Vx, k4.Vx),
		Y:  s.Y + dt*combine(k1.Vy, k2.Vy, k3.Vy, k4.Vy),
		Z:  s.Z + dt*combine(k1.Vz, k2.Vz, k3.Vz, k4.Vz),
		Vx: s.Vx + dt*combine(k1.Ax, k2.Ax, k3.Ax, k4.Ax),
		Vy: s.Vy + dt*combine(k1.Ay, k2.Ay, k3.Ay, k4.Ay),
		Vz: s.Vz + dt*combine(k1.Az, k2.Az, k3.Az, k4.Az),
	}
}

// TestCircularOrbitMagnitudeStableKeplerOnly is the S4 scenario: with
// J2=J4=0, a circular orbit at 7000 km radius holds its magnitude within
// 1 m over one orbital period under 1-second-step RK4.
func TestCircularOrbitMagnitudeStableKeplerOnly(t *testing.T) {
	radius := 7000e3
	v := math.Sqrt(Mu / radius)

	state0 := State{X: radius, Y: 0, Z: 0, Vx: 0, Vy: v, Vz: 0}

	period := 2 * math.Pi * math.Sqrt(math.Pow(radius, 3)/Mu)
	nSteps := int(period)

	r0 := magnitude(state0)
	cur := state0
	maxDelta := 0.0
	for i := 0; i < nSteps; i++ {
		cur = keplerStep(cur, 1.0)
		if d := math.Abs(magnitude(cur) - r0); d > maxDelta {
			maxDelta = d
		}
	}

	if maxDelta > 1.0 {
		t.Errorf("two-body orbit magnitude drifted %v m over one period, want < 1 m", maxDelta)
	}
}

// TestCircularOrbitWithZonalPerturbation exercises the full Accelerate model
// (J2+J4 included): magnitude oscillates due to the oblateness term but
// stays bounded to a small fraction of orbital radius over one period.
func TestCircularOrbitWithZonalPerturbation(t *testing.T) {
	radius := 7000e3
	v := math.Sqrt(Mu / radius)

	state0 := State{X: radius, Y: 0, Z: 0, Vx: 0, Vy: v, Vz: 0}

	period := 2 * math.Pi * math.Sqrt(math.Pow(radius, 3)/Mu)
	nSteps := int(period)

	traj, err := Propagate(state0, 1.0, nSteps)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	r0 := magnitude(state0)
	maxDelta := 0.0
	for _, s := range traj {
		if d := math.Abs(magnitude(s) - r0); d > maxDelta {
			maxDelta = d
		}
	}

	if maxDelta > 50000 {
		t.Errorf("orbit magnitude drifted %v m over one period, want < 50000 m", maxDelta)
	}
}

func TestPropagateRejectsNonPositiveStep(t *testing.T) {
	_, err := Propagate(State{}, 0, 10)
	if err == nil {
		t.Fatal("expected error for zero step")
	}

	_, err = Propagate(State{}, -1, 10)
	if err == nil {
		t.Fatal("expected error for negative step")
	}
}

func TestPropagateReturnsInitialStateAtIndexZero(t *testing.T) {
	state0 := State{X: 7000e3, Y: 0, Z: 0, Vx: 0, Vy: 7500, Vz: 0}

	traj, err := Propagate(state0, 1.0, 5)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	if len(traj) != 6 {
		t.Fatalf("len(traj) = %d, want 6", len(traj))
	}
	if traj[0] != state0 {
		t.Errorf("traj[0] = %+v, want %+v", traj[0], state0)
	}
}

func TestAccelerateMagnitudeDecreasesWithAltitude(t *testing.T) {
	ax1, ay1, az1 := Accelerate(7000e3, 0, 0)
	a1 := math.Sqrt(ax1*ax1 + ay1*ay1 + az1*az1)

	ax2, ay2, az2 := Accelerate(42000e3, 0, 0)
	a2 := math.Sqrt(ax2*ax2 + ay2*ay2 + az2*az2)

	if a2 >= a1 {
		t.Errorf("acceleration at higher altitude (%v) not less than at lower altitude (%v)", a2, a1)
	}
}
