package meshisect

import "math"

// Triangle in three-dimensional Cartesian space. Beyond its three vertices a
// Triangle tagged for the spatial kernel also carries the identity of the
// polygon it was fan-triangulated from: FaceID is the id of that polygon in
// the source mesh, TriangleIndex is which sub-triangle of the polygon this
// is, and PolygonNormal is the *polygon's* normal (not necessarily equal to
// this sub-triangle's own geometric normal) in world coordinates. The pair
// (FaceID, TriangleIndex) is unique within one mesh's triangle soup.
type Triangle struct {
	P Vector
	Q Vector
	R Vector

	FaceID        int
	TriangleIndex int
	PolygonNormal Vector
}

// Construct a bare geometric Triangle (no face identity).
func NewTriangle(p, q, r Vector) Triangle {
	return Triangle{P: p, Q: q, R: r}
}

// Compute the area.
func (t Triangle) Area() float64 {
	u := t.Q.Sub(t.P)
	v := t.R.Sub(t.P)
	return u.Cross(v).Mag() * 0.5
}

// Compute the (non-unit) geometric normal of this triangle's own plane.
func (t Triangle) Normal() Vector {
	u := t.Q.Sub(t.P)
	v := t.R.Sub(t.P)
	return u.Cross(v)
}

// Compute the unit geometric normal.
func (t Triangle) UnitNormal() Vector {
	return t.Normal().Unit()
}

// Return true if the triangle is degenerate (zero or near-zero area).
func (t Triangle) IsDegenerate() bool {
	return t.Area() <= 1e-18
}

// Return the triangle's vertices as a [3]Vector, convenient for loops.
func (t Triangle) Vertices() [3]Vector {
	return [3]Vector{t.P, t.Q, t.R}
}

// Compute the arithmetic-mean barycentre of the triangle's three vertices.
func (t Triangle) Centroid() Vector {
	return t.P.Add(t.Q).Add(t.R).MulScalar(1.0 / 3.0)
}

// IntersectsAABB is a classical separating-axis test over the 13 candidate
// axes (3 box axes, 1 triangle normal, 9 edge-edge cross products). Returns
// true iff no separating axis is found, i.e. the triangle and box overlap
// (touching counts as overlap).
func (t Triangle) IntersectsAABB(box AABB) bool {
	// Translate so the box is centered at the origin; work in box-local
	// coordinates, the standard formulation of this test.
	v0 := t.P.Sub(box.Center)
	v1 := t.Q.Sub(box.Center)
	v2 := t.R.Sub(box.Center)

	e0 := v1.Sub(v0)
	e1 := v2.Sub(v1)
	e2 := v0.Sub(v2)

	h := box.HalfSize

	boxAxes := [3]Vector{
		NewVector(1, 0, 0),
		NewVector(0, 1, 0),
		NewVector(0, 0, 1),
	}

	edges := [3]Vector{e0, e1, e2}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := boxAxes[i].Cross(edges[j])
			if axis.Mag() < 1e-18 {
				continue
			}

			if separatedOnAxis(axis, v0, v1, v2, h) {
				return false
			}
		}
	}

	// 3 box-face axes: equivalent to an AABB/AABB overlap of the
	// triangle's own bounding box against [-h, h].
	triMin := v0
	triMax := v0

	for i := 0; i < 3; i++ {
		triMin[i] = math.Min(v0[i], math.Min(v1[i], v2[i]))
		triMax[i] = math.Max(v0[i], math.Max(v1[i], v2[i]))

		if triMin[i] > h[i] || triMax[i] < -h[i] {
			return false
		}
	}

	// 1 triangle-normal axis.
	normal := e0.Cross(e1)
	if normal.Mag() > 1e-18 && separatedOnAxis(normal, v0, v1, v2, h) {
		return false
	}

	return true
}

// Project the (already box-centered) triangle vertices and the box
// half-extent onto axis and report whether they are separated.
func separatedOnAxis(axis Vector, v0, v1, v2, halfSize Vector) bool {
	p0 := v0.Dot(axis)
	p1 := v1.Dot(axis)
	p2 := v2.Dot(axis)

	triMin := math.Min(p0, math.Min(p1, p2))
	triMax := math.Max(p0, math.Max(p1, p2))

	r := halfSize[0]*math.Abs(axis[0]) +
		halfSize[1]*math.Abs(axis[1]) +
		halfSize[2]*math.Abs(axis[2])

	return triMin > r || triMax < -r
}

// Default relative epsilon used by IntersectsTriangle when callers do not
// have a scene-scaled epsilon on hand (see xsect, which threads a
// bbox-diagonal-scaled epsilon through its own calls instead).
const defaultCoplanarEpsilon = 1e-9

// Implement a robust triangle/triangle overlap predicate: returns true iff
// the two closed triangles share at least one point. Degenerate
// (zero-area) triangles never panic; they fall back to the 2D coplanar
// test (edge crossings and vertex containment) after projecting both
// triangles onto a plane.
func (t Triangle) IntersectsTriangle(other Triangle) bool {
	return trianglesIntersect(t, other, defaultCoplanarEpsilon)
}

// IntersectsTriangleEpsilon is IntersectsTriangle with an explicit coplanar
// tolerance, keyed by callers (xsect) to the scene's bounding-box diagonal.
func (t Triangle) IntersectsTriangleEpsilon(other Triangle, epsilon float64) bool {
	return trianglesIntersect(t, other, epsilon)
}

func trianglesIntersect(a, b Triangle, epsilon float64) bool {
	n1 := a.Normal()
	n2 := b.Normal()

	// Signed distances of b's vertices to a's plane.
	d1 := signedDistances(n1, a.P, b)

	// Signed distances of a's vertices to b's plane.
	d2 := signedDistances(n2, b.P, a)

	if n1.Mag() <= 1e-18 || n2.Mag() <= 1e-18 {
		// One triangle is (near) degenerate: fall back to the coplanar
		// 2D test, dropping the dominant axis of the sum of both normals
		// (in effect the usable normal; the X axis if both are
		// degenerate).
		return coplanarTrianglesIntersect(a, b, dominantAxis(n1.Add(n2)))
	}

	if sameSign(d1, epsilon) || sameSign(d2, epsilon) {
		// All of b's vertices strictly on one side of a's plane (or vice
		// versa): no intersection possible.
		return false
	}

	if allNear(d1, epsilon) {
		// Coplanar case: edge/edge crossing or vertex containment.
		return coplanarTrianglesIntersect(a, b, dominantAxis(n1))
	}

	// General position: intersect both triangles with the line formed by
	// the two planes' intersection and compare the resulting intervals.
	line := n1.Cross(n2)
	axis := dominantAxis(line)

	ia := triangleLineInterval(a, d2, axis)
	ib := triangleLineInterval(b, d1, axis)

	return ia[0] <= ib[1]+epsilon && ib[0] <= ia[1]+epsilon
}

func signedDistances(normal Vector, planePoint Vector, tri Triangle) [3]float64 {
	return [3]float64{
		normal.Dot(tri.P.Sub(planePoint)),
		normal.Dot(tri.Q.Sub(planePoint)),
		normal.Dot(tri.R.Sub(planePoint)),
	}
}

func sameSign(d [3]float64, epsilon float64) bool {
	pos, neg := 0, 0

	for _, v := range d {
		if v > epsilon {
			pos++
		} else if v < -epsilon {
			neg++
		}
	}

	return pos == 3 || neg == 3
}

func allNear(d [3]float64, epsilon float64) bool {
	for _, v := range d {
		if math.Abs(v) > epsilon {
			return false
		}
	}

	return true
}

// Return the index (0, 1, 2) of the axis the vector's component is largest
// in absolute value along, used to pick a 2D projection plane.
func dominantAxis(v Vector) int {
	av := v.Abs()
	axis := 0

	if av[1] > av[axis] {
		axis = 1
	}

	if av[2] > av[axis] {
		axis = 2
	}

	return axis
}

// Project a 3D point to 2D by dropping the dominant axis component.
func project2D(v Vector, drop int) [2]float64 {
	switch drop {
	case 0:
		return [2]float64{v[1], v[2]}
	case 1:
		return [2]float64{v[0], v[2]}
	default:
		return [2]float64{v[0], v[1]}
	}
}

// Interval of the line parameter (projected onto the dominant axis of the
// two planes' intersection line) that triangle a's interior spans, derived
// from its vertices' signed distances to the other triangle's plane (the
// classical Möller interval construction).
func triangleLineInterval(tri Triangle, d [3]float64, axis int) [2]float64 {
	verts := tri.Vertices()
	proj := [3]float64{
		verts[0][axis],
		verts[1][axis],
		verts[2][axis],
	}

	var t [2]float64
	var filled int

	for i := 0; i < 3; i++ {
		j := (i + 1) % 3

		if (d[i] > 0 && d[j] < 0) || (d[i] < 0 && d[j] > 0) {
			// Edge i-j crosses the plane; interpolate the projected
			// coordinate at the crossing point.
			alpha := d[i] / (d[i] - d[j])
			v := proj[i] + alpha*(proj[j]-proj[i])

			if filled < 2 {
				t[filled] = v
				filled++
			}
		} else if d[i] == 0 {
			if filled < 2 {
				t[filled] = proj[i]
				filled++
			}
		}
	}

	if filled < 2 {
		// Degenerate crossing (a vertex exactly on the plane and no other
		// crossing): collapse to a point interval.
		t[1] = t[0]
	}

	if t[0] > t[1] {
		t[0], t[1] = t[1], t[0]
	}

	return t
}

// Coplanar triangle overlap: project both triangles to 2D along the plane
// whose normal's dominant axis is `drop`, then test edge/edge segment
// crossings and vertex-in-triangle containment.
func coplanarTrianglesIntersect(a, b Triangle, drop int) bool {
	pa := [3][2]float64{
		project2D(a.P, drop),
		project2D(a.Q, drop),
		project2D(a.R, drop),
	}

	pb := [3][2]float64{
		project2D(b.P, drop),
		project2D(b.Q, drop),
		project2D(b.R, drop),
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if segmentsIntersect2D(pa[i], pa[(i+1)%3], pb[j], pb[(j+1)%3]) {
				return true
			}
		}
	}

	if pointInTriangle2D(pa[0], pb) || pointInTriangle2D(pb[0], pa) {
		return true
	}

	return false
}

func cross2D(o, p, q [2]float64) float64 {
	return (p[0]-o[0])*(q[1]-o[1]) - (p[1]-o[1])*(q[0]-o[0])
}

func onSegment2D(p, q, r [2]float64) bool {
	return math.Min(p[0], r[0]) <= q[0] && q[0] <= math.Max(p[0], r[0]) &&
		math.Min(p[1], r[1]) <= q[1] && q[1] <= math.Max(p[1], r[1])
}

// Classical orientation-based segment intersection test, inclusive of
// touching/collinear-overlap cases.
func segmentsIntersect2D(p1, p2, p3, p4 [2]float64) bool {
	d1 := cross2D(p3, p4, p1)
	d2 := cross2D(p3, p4, p2)
	d3 := cross2D(p1, p2, p3)
	d4 := cross2D(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	if d1 == 0 && onSegment2D(p3, p1, p4) {
		return true
	}
	if d2 == 0 && onSegment2D(p3, p2, p4) {
		return true
	}
	if d3 == 0 && onSegment2D(p1, p3, p2) {
		return true
	}
	if d4 == 0 && onSegment2D(p1, p4, p2) {
		return true
	}

	return false
}

// Return true if point p lies inside or on triangle tri (2D, any winding).
func pointInTriangle2D(p [2]float64, tri [3][2]float64) bool {
	d1 := cross2D(tri[0], tri[1], p)
	d2 := cross2D(tri[1], tri[2], p)
	d3 := cross2D(tri[2], tri[0], p)

	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0

	return !(hasNeg && hasPos)
}
