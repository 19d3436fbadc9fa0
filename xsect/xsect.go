// Package xsect is the intersection driver: it turns two PolyMesh values,
// their world transforms, and their world-space bounds into the pair of
// face-id sets that participate in a surface-surface intersection.
package xsect

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ajcurley/meshisect"
	"github.com/ajcurley/meshisect/halfedge"
	"github.com/ajcurley/meshisect/spatial"
)

// Re-exported sentinel errors: callers of this package should not need to
// import spatial directly to recognize a build failure.
var (
	ErrDegenerateBBox     = spatial.ErrDegenerateBBox
	ErrIncompatibleKernel = spatial.ErrIncompatibleKernel
)

// IntersectionResult is the driver's JSON-serializable response: a query
// id for log correlation plus the two sorted, deduplicated face-id lists.
type IntersectionResult struct {
	QueryID string `json:"query_id"`
	FacesA  []int  `json:"faces_a"`
	FacesB  []int  `json:"faces_b"`
}

// Options tunes a single Intersect call.
type Options struct {
	// BuildParams overrides the kernel's default leaf capacity and depth
	// cap. The zero value falls back to spatial.DefaultBuildParams().
	BuildParams spatial.BuildParams

	// Logger receives structured diagnostics (degenerate sub-triangle and
	// InvalidFaceId warnings, a completion summary) tagged with the query's
	// correlation id. Defaults to a no-op logger.
	Logger *zap.Logger

	// Parallel selects the worker-pool traversal (spatial §5) over the
	// default sequential one.
	Parallel bool
}

// DefaultOptions returns the spec's default build parameters with a no-op
// logger and sequential traversal.
func DefaultOptions() Options {
	return Options{BuildParams: spatial.DefaultBuildParams()}
}

// Intersect builds a spatial kernel over each mesh's triangulated,
// world-transformed geometry and returns the pair of face ids that
// participate in a surface-surface intersection (spec.md §4.4).
func Intersect(
	meshA meshisect.PolyMesh, transformA meshisect.Matrix4, boundsA meshisect.AABB,
	meshB meshisect.PolyMesh, transformB meshisect.Matrix4, boundsB meshisect.AABB,
	opts Options,
) (IntersectionResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	queryID := uuid.New().String()
	logger = logger.With(zap.String("query_id", queryID))

	params := opts.BuildParams
	var zeroParams spatial.BuildParams
	if params == zeroParams {
		params = spatial.DefaultBuildParams()
	}

	epsilon := coplanarEpsilon(boundsA, boundsB)

	kernelA, err := buildKernel(meshA, transformA, boundsA, params, logger)
	if err != nil {
		return IntersectionResult{}, errors.Wrap(err, "xsect: build kernel A")
	}

	kernelB, err := buildKernel(meshB, transformB, boundsB, params, logger)
	if err != nil {
		return IntersectionResult{}, errors.Wrap(err, "xsect: build kernel B")
	}

	var result spatial.IntersectionResult
	if opts.Parallel {
		result, err = kernelA.IntersectParallel(kernelB, epsilon)
	} else {
		result, err = kernelA.Intersect(kernelB, epsilon)
	}
	if err != nil {
		return IntersectionResult{}, errors.Wrap(err, "xsect: kernel intersect")
	}

	facesA := dropInvalidFaceIDs(result.FacesA, meshA.NumFaces(), "a", logger)
	facesB := dropInvalidFaceIDs(result.FacesB, meshB.NumFaces(), "b", logger)

	logger.Info("intersection complete",
		zap.Int("faces_a", len(facesA)),
		zap.Int("faces_b", len(facesB)),
		zap.Bool("parallel", opts.Parallel),
	)

	return IntersectionResult{
		QueryID: queryID,
		FacesA:  facesA,
		FacesB:  facesB,
	}, nil
}

// dropInvalidFaceIDs implements the InvalidFaceId diagnostic (spec.md §7):
// during result assembly, any face_id outside [0, polygonCount) is dropped
// and logged rather than returned or treated as a query failure.
func dropInvalidFaceIDs(ids map[int]struct{}, polygonCount int, side string, logger *zap.Logger) []int {
	kept := make([]int, 0, len(ids))
	for id := range ids {
		if id < 0 || id >= polygonCount {
			logger.Warn("invalid_face_id: face_id outside [0, polygon_count) dropped from result",
				zap.String("side", side),
				zap.Int("face_id", id),
				zap.Int("polygon_count", polygonCount))
			continue
		}
		kept = append(kept, id)
	}
	sort.Ints(kept)
	return kept
}

// buildKernel triangulates a polygon mesh via the halfedge package, applies
// the world transform to vertices and polygon normals, and inserts every
// resulting Triangle into a fresh kernel. An empty mesh still returns a
// valid kernel with an empty root (spec.md's EmptyMesh case — not an
// error).
func buildKernel(mesh meshisect.PolyMesh, transform meshisect.Matrix4, bounds meshisect.AABB, params spatial.BuildParams, logger *zap.Logger) (*spatial.Octree, error) {
	kernel, err := spatial.NewOctree(bounds, params)
	if err != nil {
		return nil, err
	}

	if mesh.IsEmpty() {
		return kernel, nil
	}

	hem, err := halfedge.NewHalfEdgeMeshFromPolyMesh(mesh)
	if err != nil {
		return nil, err
	}

	for _, tri := range hem.Triangulate() {
		tri.P = transform.MulPoint(tri.P)
		tri.Q = transform.MulPoint(tri.Q)
		tri.R = transform.MulPoint(tri.R)

		if tri.FaceID >= 0 && tri.FaceID < len(mesh.Normals) {
			tri.PolygonNormal = transform.MulVector(mesh.Normals[tri.FaceID])
		} else {
			tri.PolygonNormal = transform.MulVector(tri.PolygonNormal)
		}

		if tri.IsDegenerate() {
			logger.Warn("degenerate_subtriangle: zero-area sub-triangle dropped from kernel build",
				zap.Int("face_id", tri.FaceID),
				zap.Int("triangle_index", tri.TriangleIndex))
			continue
		}

		kernel.Insert(tri)
	}

	return kernel, nil
}

// coplanarEpsilon scales the coplanar tolerance to the larger of the two
// scenes' bbox diagonals (DESIGN.md open question 2): 1e-9 * max(1, diagonal).
func coplanarEpsilon(a, b meshisect.AABB) float64 {
	diagonal := a.Diagonal()
	if d := b.Diagonal(); d > diagonal {
		diagonal = d
	}
	if diagonal < 1.0 {
		diagonal = 1.0
	}
	return 1e-9 * diagonal
}

