package meshisect

// Matrix4 is a row-major 4x4 affine transform: rotation, scale, shear, and
// translation. No example repo in the reference pack ships a matrix type;
// this file is grounded on the teacher's own Vector conventions (value
// receivers, array-backed storage, New*-prefixed constructors) rather than
// on any borrowed library, since a fixed-size affine transform has no
// third-party library in the pack that would materially improve on plain
// arithmetic.
type Matrix4 [4][4]float64

// Construct the identity Matrix4.
func NewMatrix4Identity() Matrix4 {
	var m Matrix4
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

// Construct a Matrix4 from a translation vector.
func NewMatrix4Translation(t Vector) Matrix4 {
	m := NewMatrix4Identity()
	m[0][3] = t[0]
	m[1][3] = t[1]
	m[2][3] = t[2]
	return m
}

// Construct a Matrix4 from a uniform or non-uniform scale.
func NewMatrix4Scale(s Vector) Matrix4 {
	var m Matrix4
	m[0][0] = s[0]
	m[1][1] = s[1]
	m[2][2] = s[2]
	m[3][3] = 1
	return m
}

// Apply the transform to a point: rotation, scale/shear, and translation.
func (m Matrix4) MulPoint(v Vector) Vector {
	return Vector{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2] + m[0][3],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2] + m[1][3],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2] + m[2][3],
	}
}

// Apply the transform to a vector (direction): rotation and scale/shear
// only, no translation. Used to carry a polygon's object-space normal into
// world space per the resolved Open Question (rotate, do not
// inverse-transpose) — see DESIGN.md.
func (m Matrix4) MulVector(v Vector) Vector {
	return Vector{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Compose two transforms: (m.Mul(other)) applied to a point equals
// m.MulPoint(other.MulPoint(point)).
func (m Matrix4) Mul(other Matrix4) Matrix4 {
	var out Matrix4

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[i][k] * other[k][j]
			}
			out[i][j] = sum
		}
	}

	return out
}
