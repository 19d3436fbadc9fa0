package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajcurley/meshisect"
)

// cubeFace describes one quad face of a unit cube, fan-triangulated into
// two sub-triangles sharing a FaceID.
type cubeFace struct {
	id     int
	idx    [4]int
	normal meshisect.Vector
}

// cubeTriangles builds the 12-triangle soup of a unit cube (half-size 0.5)
// centered at center, with one FaceID per quad face: 0=-X, 1=+X, 2=-Y,
// 3=+Y, 4=-Z, 5=+Z.
func cubeTriangles(center meshisect.Vector) []meshisect.Triangle {
	h := 0.5
	v := [8]meshisect.Vector{
		center.Add(meshisect.NewVector(-h, -h, -h)),
		center.Add(meshisect.NewVector(h, -h, -h)),
		center.Add(meshisect.NewVector(h, h, -h)),
		center.Add(meshisect.NewVector(-h, h, -h)),
		center.Add(meshisect.NewVector(-h, -h, h)),
		center.Add(meshisect.NewVector(h, -h, h)),
		center.Add(meshisect.NewVector(h, h, h)),
		center.Add(meshisect.NewVector(-h, h, h)),
	}

	faces := []cubeFace{
		{0, [4]int{0, 4, 7, 3}, meshisect.NewVector(-1, 0, 0)},
		{1, [4]int{1, 2, 6, 5}, meshisect.NewVector(1, 0, 0)},
		{2, [4]int{0, 1, 5, 4}, meshisect.NewVector(0, -1, 0)},
		{3, [4]int{3, 7, 6, 2}, meshisect.NewVector(0, 1, 0)},
		{4, [4]int{0, 3, 2, 1}, meshisect.NewVector(0, 0, -1)},
		{5, [4]int{4, 5, 6, 7}, meshisect.NewVector(0, 0, 1)},
	}

	var triangles []meshisect.Triangle

	for _, f := range faces {
		triangles = append(triangles, meshisect.Triangle{
			P: v[f.idx[0]], Q: v[f.idx[1]], R: v[f.idx[2]],
			FaceID: f.id, TriangleIndex: 0, PolygonNormal: f.normal,
		})
		triangles = append(triangles, meshisect.Triangle{
			P: v[f.idx[0]], Q: v[f.idx[2]], R: v[f.idx[3]],
			FaceID: f.id, TriangleIndex: 1, PolygonNormal: f.normal,
		})
	}

	return triangles
}

// buildKernel constructs an Octree over a triangle soup, with its bbox
// computed from the soup's own vertices (buffered slightly so boundary
// vertices are strictly interior).
func buildKernel(t *testing.T, triangles []meshisect.Triangle, params BuildParams) *Octree {
	t.Helper()

	var vertices []meshisect.Vector
	for _, tri := range triangles {
		vertices = append(vertices, tri.P, tri.Q, tri.R)
	}

	bbox := meshisect.NewAABBFromVectors(vertices).Buffer(0.05)
	kernel, err := NewOctree(bbox, params)
	require.NoError(t, err)

	for _, tri := range triangles {
		kernel.Insert(tri)
	}

	return kernel
}

func faceSet(m map[int]struct{}) []int {
	var out []int
	for id := range m {
		out = append(out, id)
	}
	return out
}

// bruteForce is the O(|A|*|B|) reference algorithm (spec.md §8, P4):
// test every triangle of A against every triangle of B directly.
func bruteForce(a, b []meshisect.Triangle, epsilon float64) IntersectionResult {
	result := newIntersectionResult()

	for _, ta := range a {
		for _, tb := range b {
			if ta.IntersectsTriangleEpsilon(tb, epsilon) {
				result.FacesA[ta.FaceID] = struct{}{}
				result.FacesB[tb.FaceID] = struct{}{}
			}
		}
	}

	return result
}

func TestNewOctreeDegenerateBBox(t *testing.T) {
	bad := meshisect.NewAABB(meshisect.NewVector(0, 0, 0), meshisect.NewVector(-1, 1, 1))
	_, err := NewOctree(bad, DefaultBuildParams())
	assert.ErrorIs(t, err, ErrDegenerateBBox)
}

// Scenario 1: two unit cubes, disjoint (spec.md §8.1).
func TestIntersectDisjointCubes(t *testing.T) {
	a := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())
	b := buildKernel(t, cubeTriangles(meshisect.NewVector(3, 0, 0)), DefaultBuildParams())

	result, err := a.Intersect(b, 1e-9)
	require.NoError(t, err)
	assert.Empty(t, result.FacesA)
	assert.Empty(t, result.FacesB)
}

// Scenario 2: cube B shifted by (0.5, 0, 0) overlaps cube A (spec.md §8.2).
func TestIntersectOverlappingCubes(t *testing.T) {
	a := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())
	b := buildKernel(t, cubeTriangles(meshisect.NewVector(0.5, 0, 0)), DefaultBuildParams())

	result, err := a.Intersect(b, 1e-9)
	require.NoError(t, err)

	assert.Contains(t, faceSet(result.FacesA), 1, "A's +X face should be among the hits")
	assert.Contains(t, faceSet(result.FacesB), 0, "B's -X face should be among the hits")
}

// Scenario 3: edge-touching cubes, shifted by exactly 1.0 along X so the
// surfaces are coincident. Touching counts as intersecting (spec.md §8.3).
func TestIntersectTouchingCubes(t *testing.T) {
	a := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())
	b := buildKernel(t, cubeTriangles(meshisect.NewVector(1, 0, 0)), DefaultBuildParams())

	result, err := a.Intersect(b, 1e-9)
	require.NoError(t, err)

	assert.Contains(t, faceSet(result.FacesA), 1)
	assert.Contains(t, faceSet(result.FacesB), 0)
}

// Scenario 6: a large-fan polygon (32 sub-triangles) crossing another
// mesh's plane contributes its FaceID exactly once despite many
// sub-triangles hitting (spec.md §8.6).
func TestIntersectFanPolygonFaceIDOnce(t *testing.T) {
	// A 32-gon approximating a disc in the XY plane at z=0, radius 2,
	// fan-triangulated around its center, crossing a unit cube at the
	// origin through its four side (+X/-X/+Y/-Y) faces.
	const n = 32
	center := meshisect.NewVector(0, 0, 0)

	var fan []meshisect.Triangle
	for i := 0; i < n; i++ {
		a0 := 2 * math.Pi * float64(i) / n
		a1 := 2 * math.Pi * float64(i+1) / n
		p := meshisect.NewVector(2*math.Cos(a0), 2*math.Sin(a0), 0)
		q := meshisect.NewVector(2*math.Cos(a1), 2*math.Sin(a1), 0)

		fan = append(fan, meshisect.Triangle{
			P: center, Q: p, R: q,
			FaceID: 0, TriangleIndex: i,
			PolygonNormal: meshisect.NewVector(0, 0, 1),
		})
	}

	cube := cubeTriangles(meshisect.NewVector(0, 0, 0))

	kernelFan := buildKernel(t, fan, DefaultBuildParams())
	kernelCube := buildKernel(t, cube, DefaultBuildParams())

	result, err := kernelFan.Intersect(kernelCube, 1e-9)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, faceSet(result.FacesA))
}

// P1: determinism — two builds from identical inputs answer identically.
func TestDeterminism(t *testing.T) {
	trisA := cubeTriangles(meshisect.NewVector(0, 0, 0))
	trisB := cubeTriangles(meshisect.NewVector(0.5, 0.25, 0.1))

	a1 := buildKernel(t, trisA, DefaultBuildParams())
	b1 := buildKernel(t, trisB, DefaultBuildParams())
	r1, err := a1.Intersect(b1, 1e-9)
	require.NoError(t, err)

	a2 := buildKernel(t, trisA, DefaultBuildParams())
	b2 := buildKernel(t, trisB, DefaultBuildParams())
	r2, err := a2.Intersect(b2, 1e-9)
	require.NoError(t, err)

	assert.Equal(t, r1.FacesA, r2.FacesA)
	assert.Equal(t, r1.FacesB, r2.FacesB)
}

// P3: symmetry — swapping the query order swaps the result pair, values
// preserved.
func TestSymmetry(t *testing.T) {
	trisA := cubeTriangles(meshisect.NewVector(0, 0, 0))
	trisB := cubeTriangles(meshisect.NewVector(0.5, 0, 0))

	a := buildKernel(t, trisA, DefaultBuildParams())
	b := buildKernel(t, trisB, DefaultBuildParams())

	fwd, err := a.Intersect(b, 1e-9)
	require.NoError(t, err)

	rev, err := b.Intersect(a, 1e-9)
	require.NoError(t, err)

	assert.Equal(t, fwd.FacesA, rev.FacesB)
	assert.Equal(t, fwd.FacesB, rev.FacesA)
}

// P6: empty/disjoint bboxes produce empty result sets.
func TestEmptyDisjoint(t *testing.T) {
	a := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())
	b := buildKernel(t, cubeTriangles(meshisect.NewVector(100, 100, 100)), DefaultBuildParams())

	result, err := a.Intersect(b, 1e-9)
	require.NoError(t, err)
	assert.Empty(t, result.FacesA)
	assert.Empty(t, result.FacesB)
}

// An empty mesh builds successfully with an empty root and queries return
// empty sets (EmptyMesh is not an error, spec.md §7).
func TestEmptyMeshKernel(t *testing.T) {
	bbox := meshisect.NewAABB(meshisect.NewVector(0, 0, 0), meshisect.NewVector(1, 1, 1))
	empty, err := NewOctree(bbox, DefaultBuildParams())
	require.NoError(t, err)

	full := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())

	result, err := empty.Intersect(full, 1e-9)
	require.NoError(t, err)
	assert.Empty(t, result.FacesA)
	assert.Empty(t, result.FacesB)
}

// IncompatibleKernel: a non-*Octree Kernel implementation is rejected.
type stubKernel struct{}

func (stubKernel) Intersect(Kernel, float64) (IntersectionResult, error) {
	return IntersectionResult{}, nil
}
func (stubKernel) kernelKind() string { return "stub" }

func TestIntersectIncompatibleKernel(t *testing.T) {
	a := buildKernel(t, cubeTriangles(meshisect.NewVector(0, 0, 0)), DefaultBuildParams())

	_, err := a.Intersect(stubKernel{}, 1e-9)
	assert.ErrorIs(t, err, ErrIncompatibleKernel)
}

// P4 (subset of brute force), property-based: random triangle soups small
// enough that every triangle lands at a leaf (within MaxTrianglesPerNode,
// no splitting) produce a kernel result identical to brute force.
func TestPropertyKernelMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	params := BuildParams{MaxTrianglesPerNode: 1000, MaxDepth: DefaultMaxDepth}

	for trial := 0; trial < 20; trial++ {
		trisA := randomTriangleSoup(rng, 6, 0)
		trisB := randomTriangleSoup(rng, 6, 100)

		a := buildKernel(t, trisA, params)
		b := buildKernel(t, trisB, params)

		got, err := a.Intersect(b, 1e-9)
		require.NoError(t, err)

		want := bruteForce(trisA, trisB, 1e-9)

		assert.Equal(t, want.FacesA, got.FacesA, "trial %d", trial)
		assert.Equal(t, want.FacesB, got.FacesB, "trial %d", trial)
	}
}

// P5: transform covariance — translating both meshes by the same rigid
// offset does not change the result (translation commutes with the
// intersection predicates since they operate on relative geometry).
func TestPropertyTransformCovariance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	offset := meshisect.NewVector(37, -12, 5)

	for trial := 0; trial < 10; trial++ {
		trisA := randomTriangleSoup(rng, 6, 0)
		trisB := randomTriangleSoup(rng, 6, 100)

		a := buildKernel(t, trisA, DefaultBuildParams())
		b := buildKernel(t, trisB, DefaultBuildParams())
		base, err := a.Intersect(b, 1e-9)
		require.NoError(t, err)

		shiftedA := translateTriangles(trisA, offset)
		shiftedB := translateTriangles(trisB, offset)

		sa := buildKernel(t, shiftedA, DefaultBuildParams())
		sb := buildKernel(t, shiftedB, DefaultBuildParams())
		shifted, err := sa.Intersect(sb, 1e-9)
		require.NoError(t, err)

		assert.Equal(t, base.FacesA, shifted.FacesA, "trial %d", trial)
		assert.Equal(t, base.FacesB, shifted.FacesB, "trial %d", trial)
	}
}

func translateTriangles(triangles []meshisect.Triangle, offset meshisect.Vector) []meshisect.Triangle {
	out := make([]meshisect.Triangle, len(triangles))

	for i, tri := range triangles {
		out[i] = tri
		out[i].P = tri.P.Add(offset)
		out[i].Q = tri.Q.Add(offset)
		out[i].R = tri.R.Add(offset)
	}

	return out
}

// randomTriangleSoup generates n small random triangles, each inside a
// bounded box, tagged with sequential face ids starting at faceIDBase.
func randomTriangleSoup(rng *rand.Rand, n, faceIDBase int) []meshisect.Triangle {
	triangles := make([]meshisect.Triangle, 0, n)

	for i := 0; i < n; i++ {
		base := meshisect.NewVector(rng.Float64()*2-1, rng.Float64()*2-1, rng.Float64()*2-1)
		p := base
		q := base.Add(meshisect.NewVector(rng.Float64(), rng.Float64(), rng.Float64()))
		r := base.Add(meshisect.NewVector(rng.Float64(), rng.Float64(), rng.Float64()))

		triangles = append(triangles, meshisect.Triangle{
			P: p, Q: q, R: r,
			FaceID:        faceIDBase + i,
			TriangleIndex: 0,
		})
	}

	return triangles
}

func TestMaxDepthOverflowTerminates(t *testing.T) {
	// Many coincident (zero-area-adjacent) triangles that will never
	// separate across octants: forces repeated splitting until the
	// MAX_DEPTH escape hatch fires, which must still terminate.
	params := BuildParams{MaxTrianglesPerNode: 2, MaxDepth: 4}
	bbox := meshisect.NewAABB(meshisect.NewVector(0, 0, 0), meshisect.NewVector(1, 1, 1))
	kernel, err := NewOctree(bbox, params)
	require.NoError(t, err)

	tri := meshisect.Triangle{
		P: meshisect.NewVector(-0.5, -0.5, -0.5),
		Q: meshisect.NewVector(0.5, -0.5, -0.5),
		R: meshisect.NewVector(-0.5, 0.5, -0.5),
	}

	for i := 0; i < 50; i++ {
		kernel.Insert(tri)
	}

	assert.LessOrEqual(t, kernel.MaxDepthReached(), params.MaxDepth+1)
}
