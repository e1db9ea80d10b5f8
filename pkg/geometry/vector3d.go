package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon Precision constant used for float64 comparisons and degenerate lengths.
const (
	Epsilon = 1e-9
)

// Vector3D represents a 3D vector or point in cartesian space.
// Fields are public because they are plain data: v := Vector3D{X: 1, Z: 2}
type Vector3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Zero is the null vector.
var Zero = Vector3D{}

// NewVector creates a new Vector3D.
func NewVector(x, y, z float64) Vector3D {
	return Vector3D{X: x, Y: y, Z: z}
}

// String implements the fmt.Stringer interface.
func (v Vector3D) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// ---------------------------------------------------------------------
// Arithmetic Operations
// Value receivers returning new values: vectors are small and immutable.
// ---------------------------------------------------------------------

// Add adds two vectors and returns the result.
func (v Vector3D) Add(other Vector3D) Vector3D {
	return Vector3D{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub subtracts the other vector from the current vector.
func (v Vector3D) Sub(other Vector3D) Vector3D {
	return Vector3D{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Mul scales the vector by a scalar value.
func (v Vector3D) Mul(scalar float64) Vector3D {
	return Vector3D{v.X * scalar, v.Y * scalar, v.Z * scalar}
}

// Div scales the vector by 1/scalar.
// Dividing by zero returns an Inf vector together with an error.
func (v Vector3D) Div(scalar float64) (Vector3D, error) {
	if scalar == 0 {
		return Vector3D{math.Inf(1), math.Inf(1), math.Inf(1)}, errors.New("vector cannot be divided by zero")
	}
	return Vector3D{v.X / scalar, v.Y / scalar, v.Z / scalar}, nil
}

// Dot calculates the dot product of two vectors.
func (v Vector3D) Dot(other Vector3D) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross calculates the cross product v × other.
func (v Vector3D) Cross(other Vector3D) Vector3D {
	return Vector3D{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// ---------------------------------------------------------------------
// Magnitude and Normalization
// ---------------------------------------------------------------------

// LenSqr calculates the squared magnitude of the vector.
// Use it for comparisons, it avoids the square root.
func (v Vector3D) LenSqr() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Len calculates the magnitude (length) of the vector.
func (v Vector3D) Len() float64 {
	return math.Sqrt(v.LenSqr())
}

// Normalize returns a unit vector in the same direction.
// Returns a zero vector if the length is effectively zero, never NaN.
func (v Vector3D) Normalize() Vector3D {
	l := v.Len()
	if l < Epsilon {
		return Vector3D{}
	}
	return v.Mul(1 / l)
}

// WithLen rescales v to the given length, keeping its direction.
// A zero vector stays zero.
func (v Vector3D) WithLen(length float64) Vector3D {
	return v.Normalize().Mul(length)
}

// IsZero reports whether the vector is shorter than Epsilon.
func (v Vector3D) IsZero() bool {
	return v.LenSqr() < Epsilon*Epsilon
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3D) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ---------------------------------------------------------------------
// Geometric Utilities
// ---------------------------------------------------------------------

// DistanceTo calculates the Euclidean distance to another vector.
func (v Vector3D) DistanceTo(other Vector3D) float64 {
	return v.Sub(other).Len()
}

// DistanceSquaredTo calculates the squared Euclidean distance to another vector.
func (v Vector3D) DistanceSquaredTo(other Vector3D) float64 {
	return v.Sub(other).LenSqr()
}

// Lerp (Linear Interpolate) calculates a point between v and target based on t [0, 1].
// Computed as v*(1-t) + target*t so that t=0 and t=1 return the end points exactly.
func (v Vector3D) Lerp(target Vector3D, t float64) Vector3D {
	return v.Mul(1 - t).Add(target.Mul(t))
}

// Eq checks if two vectors are approximately equal using the Epsilon constant.
func (v Vector3D) Eq(other Vector3D) bool {
	return math.Abs(v.X-other.X) <= Epsilon &&
		math.Abs(v.Y-other.Y) <= Epsilon &&
		math.Abs(v.Z-other.Z) <= Epsilon
}

// Mean returns the arithmetic mean of vs, and false when vs is empty.
func Mean(vs []Vector3D) (Vector3D, bool) {
	if len(vs) == 0 {
		return Vector3D{}, false
	}
	var sum Vector3D
	for _, v := range vs {
		sum = sum.Add(v)
	}
	n := float64(len(vs))
	return Vector3D{sum.X / n, sum.Y / n, sum.Z / n}, true
}
