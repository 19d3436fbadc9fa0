package meshisect

import (
	"math"
)

// Cartesian vector in three-dimensional space. Also used to represent a
// Point per the data model: a Point is a Vector whose components are
// positions rather than displacements.
type Vector [3]float64

// Construct a Vector from its components.
func NewVector(x, y, z float64) Vector {
	return Vector{x, y, z}
}

// Construct a Vector from an array.
func NewVectorFromArray(values [3]float64) Vector {
	return Vector(values)
}

// Component accessors.
func (v Vector) X() float64 { return v[0] }
func (v Vector) Y() float64 { return v[1] }
func (v Vector) Z() float64 { return v[2] }

// Return true if every component is finite (not NaN or +/-Inf).
func (v Vector) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}

	return true
}

// Compute the magnitude (L2-norm).
func (v Vector) Mag() float64 {
	return math.Sqrt(v.Dot(v))
}

// Compute the unit.
func (v Vector) Unit() Vector {
	mag := v.Mag()
	return Vector{
		v[0] / mag,
		v[1] / mag,
		v[2] / mag,
	}
}

// Compute the absolute vector.
func (v Vector) Abs() Vector {
	return Vector{
		math.Abs(v[0]),
		math.Abs(v[1]),
		math.Abs(v[2]),
	}
}

// Add two vectors v + w.
func (v Vector) Add(w Vector) Vector {
	return Vector{
		v[0] + w[0],
		v[1] + w[1],
		v[2] + w[2],
	}
}

// Add a scalar to a vector.
func (v Vector) AddScalar(s float64) Vector {
	return Vector{
		v[0] + s,
		v[1] + s,
		v[2] + s,
	}
}

// Subtract two vectors v - w.
func (v Vector) Sub(w Vector) Vector {
	return Vector{
		v[0] - w[0],
		v[1] - w[1],
		v[2] - w[2],
	}
}

// Subtract a scalar from a vector.
func (v Vector) SubScalar(s float64) Vector {
	return Vector{
		v[0] - s,
		v[1] - s,
		v[2] - s,
	}
}

// Multiply two vectors element-wise v * w.
func (v Vector) Mul(w Vector) Vector {
	return Vector{
		v[0] * w[0],
		v[1] * w[1],
		v[2] * w[2],
	}
}

// Multiply a scalar by a vector.
func (v Vector) MulScalar(s float64) Vector {
	return Vector{
		v[0] * s,
		v[1] * s,
		v[2] * s,
	}
}

// Divide two vectors element-wise v / w.
func (v Vector) Div(w Vector) Vector {
	return Vector{
		v[0] / w[0],
		v[1] / w[1],
		v[2] / w[2],
	}
}

// Divide a vector by a scalar.
func (v Vector) DivScalar(s float64) Vector {
	return Vector{
		v[0] / s,
		v[1] / s,
		v[2] / s,
	}
}

// Compute the dot product v * w.
func (v Vector) Dot(w Vector) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Compute the cross product v x w.
func (v Vector) Cross(w Vector) Vector {
	return Vector{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Return true if the point lies within the AABB, inclusive of its bounds.
func (v Vector) IntersectsAABB(query AABB) bool {
	for i := 0; i < 3; i++ {
		if v[i] < query.Center[i]-query.HalfSize[i] {
			return false
		}

		if v[i] > query.Center[i]+query.HalfSize[i] {
			return false
		}
	}

	return true
}
