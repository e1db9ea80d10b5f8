package geometry

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Axis names one of the three cartesian axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Valid reports whether a is one of AxisX, AxisY, AxisZ.
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

// MarshalText encodes the axis as "x", "y" or "z" in JSON and YAML documents.
func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal %v", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText accepts "x", "y" or "z", in either case.
func (a *Axis) UnmarshalText(text []byte) error {
	switch string(text) {
	case "x", "X":
		*a = AxisX
	case "y", "Y":
		*a = AxisY
	case "z", "Z":
		*a = AxisZ
	default:
		return fmt.Errorf("unknown axis %q", text)
	}
	return nil
}

// Plane is an axis-aligned motion plane: every point on it has its Normal
// coordinate equal to Level. The default XZ plane is Plane{Normal: AxisY}.
type Plane struct {
	Normal Axis    `json:"normal" yaml:"normal"`
	Level  float64 `json:"level" yaml:"level"`
}

// XZ is the ground plane at height 0.
var XZ = Plane{Normal: AxisY, Level: 0}

// Project returns v with its out-of-plane coordinate set to the plane level.
func (p Plane) Project(v Vector3D) Vector3D {
	switch p.Normal {
	case AxisX:
		v.X = p.Level
	case AxisY:
		v.Y = p.Level
	case AxisZ:
		v.Z = p.Level
	}
	return v
}

// Offset returns the out-of-plane coordinate of v.
func (p Plane) Offset(v Vector3D) float64 {
	switch p.Normal {
	case AxisX:
		return v.X
	case AxisZ:
		return v.Z
	default:
		return v.Y
	}
}

// Contains reports whether v lies exactly on the plane.
func (p Plane) Contains(v Vector3D) bool {
	return p.Offset(v) == p.Level
}

// Basis returns the two in-plane unit axes (u, w) in right-handed order.
// For the XZ plane u is +X and w is +Z.
func (p Plane) Basis() (Vector3D, Vector3D) {
	switch p.Normal {
	case AxisX:
		return Vector3D{Y: 1}, Vector3D{Z: 1}
	case AxisZ:
		return Vector3D{X: 1}, Vector3D{Y: 1}
	default:
		return Vector3D{X: 1}, Vector3D{Z: 1}
	}
}

// Coords returns the in-plane coordinates of v along Basis().
func (p Plane) Coords(v Vector3D) (float64, float64) {
	u, w := p.Basis()
	return v.Dot(u), v.Dot(w)
}

// Point builds the point on the plane with in-plane coordinates (a, b).
func (p Plane) Point(a, b float64) Vector3D {
	u, w := p.Basis()
	return p.Project(u.Mul(a).Add(w.Mul(b)))
}

// Yaw returns the in-plane angle (radians, [-Pi, Pi]) of direction d measured
// from the second basis axis towards the first, so a boid facing +Z on the XZ
// plane has yaw 0 and one facing +X has yaw Pi/2.
func (p Plane) Yaw(d Vector3D) float64 {
	a, b := p.Coords(d)
	return math.Atan2(a, b)
}

// ---------------------------------------------------------------------
// Random sampling
// ---------------------------------------------------------------------

// RandomOnUnitSphere returns a uniformly distributed unit vector.
func RandomOnUnitSphere(rng *rand.Rand) Vector3D {
	// Marsaglia: uniform z and azimuth give a uniform point on the sphere.
	z := rng.Float64()*2 - 1
	phi := rng.Float64() * 2 * math.Pi
	r := math.Sqrt(1 - z*z)
	return Vector3D{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
}

// RandomInUnitSphere returns a point uniformly distributed inside the unit ball.
func RandomInUnitSphere(rng *rand.Rand) Vector3D {
	dir := RandomOnUnitSphere(rng)
	return dir.Mul(math.Cbrt(rng.Float64()))
}
