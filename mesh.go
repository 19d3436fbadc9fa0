package meshisect

import "errors"

// ErrNonManifold is returned when a half-edge mesh build finds an edge
// used by an odd number of faces (a boundary edge is the common case). An
// edge shared by an even number of faces other than two is not detected.
var ErrNonManifold = errors.New("meshisect: mesh is not manifold")

// MeshReader is the generic mesh reader interface implemented by exchange
// formats (currently WaveFront OBJ) and consumed by the halfedge package to
// build connectivity.
type MeshReader interface {
	Read() error
	GetNumberOfVertices() int
	GetNumberOfFaces() int
	GetNumberOfFaceEdges() int
	GetNumberOfPatches() int
	GetVertex(int) Vector
	GetFace(int) []int
	GetFacePatch(int) int
	GetPatch(int) string
}

// PolyMesh is the external-collaborator input: object-space vertices, a
// face->vertex-index table (one entry per polygon, in winding order), and
// one object-space normal per polygon. A polygon with more than three
// vertices is fan-triangulated by the driver before being handed to the
// spatial kernel.
type PolyMesh struct {
	Vertices []Vector
	Faces    [][]int
	Normals  []Vector
}

// Return the number of polygons (faces) in the mesh.
func (m PolyMesh) NumFaces() int {
	return len(m.Faces)
}

// Return the object-space vertex position at the given polygon/local index.
func (m PolyMesh) FaceVertex(face, local int) Vector {
	return m.Vertices[m.Faces[face][local]]
}

// Return true if the mesh has zero faces (spec.md's EmptyMesh case: the
// kernel still builds, with an empty root, and queries return empty sets).
func (m PolyMesh) IsEmpty() bool {
	return len(m.Faces) == 0
}
