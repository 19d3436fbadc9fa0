package halfedge

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajcurley/meshisect"
	"github.com/ajcurley/meshisect/exchange"
)

// Face records a face's starting half edge (for traversal) and the index of
// the patch it belongs to, or -1 if ungrouped.
type Face struct {
	HalfEdge int
	Patch    int
}

// Patch is a named group of faces (an OBJ "g" group).
type Patch struct {
	Name string
}

// HalfEdgeMesh is an index-based half edge mesh data structure for manifold
// polygonal meshes, built from a MeshReader (e.g. exchange.OBJReader) or a
// meshisect.PolyMesh and consumed by the spatial-division driver as a
// triangle soup producer via Triangulate.
type HalfEdgeMesh struct {
	vertices  []Vertex
	faces     []Face
	halfEdges []HalfEdge
	patches   []Patch
}

// buildHalfEdgeMesh constructs the half edge connectivity from a flat
// vertex/face table, without validating manifoldness; the unresolved count
// (edges visited an odd number of times, i.e. boundary edges) is returned
// for callers that need to reject non-manifold input. facePatches may be
// shorter than faces, in which case trailing faces are left ungrouped (-1).
func buildHalfEdgeMesh(vertices []meshisect.Vector, faces [][]int, facePatches []int, patches []Patch) (*HalfEdgeMesh, int) {
	var nHalfEdges int
	for _, face := range faces {
		nHalfEdges += len(face)
	}

	mesh := &HalfEdgeMesh{
		vertices:  make([]Vertex, len(vertices)),
		faces:     make([]Face, len(faces)),
		halfEdges: make([]HalfEdge, nHalfEdges),
		patches:   patches,
	}

	for i, point := range vertices {
		mesh.vertices[i] = Vertex{Point: point, HalfEdge: -1}
	}

	var offset int
	sharedEdges := make(map[[2]int]int)

	for i, face := range faces {
		patch := -1
		if i < len(facePatches) {
			patch = facePatches[i]
		}

		mesh.faces[i] = Face{HalfEdge: offset, Patch: patch}

		for j, vertex := range face {
			k := offset + j
			next := (j + 1) % len(face)
			prev := (j - 1 + len(face)) % len(face)

			mesh.halfEdges[k] = HalfEdge{
				Origin: vertex,
				Face:   i,
				Next:   offset + next,
				Prev:   offset + prev,
				Twin:   -1,
			}
			mesh.vertices[vertex].HalfEdge = k

			p := min(vertex, face[next])
			q := max(vertex, face[next])
			edge := [2]int{p, q}

			if twin, ok := sharedEdges[edge]; ok {
				mesh.halfEdges[k].Twin = twin
				mesh.halfEdges[twin].Twin = k
				delete(sharedEdges, edge)
			} else {
				sharedEdges[edge] = k
			}
		}

		offset += len(face)
	}

	return mesh, len(sharedEdges)
}

// NewHalfEdgeMesh constructs a HalfEdgeMesh from a MeshReader. Returns
// ErrNonManifold if any edge is used by an odd number of faces (such as a
// boundary edge); an edge shared by four faces is not rejected.
func NewHalfEdgeMesh(source meshisect.MeshReader) (*HalfEdgeMesh, error) {
	vertices := make([]meshisect.Vector, source.GetNumberOfVertices())
	for i := range vertices {
		vertices[i] = source.GetVertex(i)
	}

	faces := make([][]int, source.GetNumberOfFaces())
	facePatches := make([]int, source.GetNumberOfFaces())

	for i := range faces {
		faces[i] = source.GetFace(i)
		facePatches[i] = source.GetFacePatch(i)
	}

	patches := make([]Patch, source.GetNumberOfPatches())
	for i := range patches {
		patches[i] = Patch{Name: source.GetPatch(i)}
	}

	mesh, unresolved := buildHalfEdgeMesh(vertices, faces, facePatches, patches)
	if unresolved != 0 {
		return nil, meshisect.ErrNonManifold
	}

	return mesh, nil
}

// NewHalfEdgeMeshFromPolyMesh constructs a HalfEdgeMesh directly from the
// driver's external input type, with no patch grouping.
func NewHalfEdgeMeshFromPolyMesh(source meshisect.PolyMesh) (*HalfEdgeMesh, error) {
	mesh, unresolved := buildHalfEdgeMesh(source.Vertices, source.Faces, nil, nil)
	if unresolved != 0 {
		return nil, meshisect.ErrNonManifold
	}

	return mesh, nil
}

// NewHalfEdgeMeshFromOBJ constructs a HalfEdgeMesh from an OBJ file reader.
func NewHalfEdgeMeshFromOBJ(reader io.Reader) (*HalfEdgeMesh, error) {
	source := exchange.NewOBJReader(reader)

	if err := source.Read(); err != nil {
		return nil, err
	}

	return NewHalfEdgeMesh(source)
}

// NewHalfEdgeMeshFromOBJPath constructs a HalfEdgeMesh from an OBJ file path.
func NewHalfEdgeMeshFromOBJPath(path string) (*HalfEdgeMesh, error) {
	source, err := exchange.ReadOBJFromPath(path)
	if err != nil {
		return nil, err
	}
	return NewHalfEdgeMesh(source)
}

// WriteOBJ writes the HalfEdgeMesh to an OBJ file.
func (m *HalfEdgeMesh) WriteOBJ(writer io.Writer) error {
	vertices := make([]meshisect.Vector, m.GetNumberOfVertices())
	faces := make([][]int, m.GetNumberOfFaces())
	facePatches := make([]int, m.GetNumberOfFaces())
	patches := make([]string, m.GetNumberOfPatches())

	for i := range m.patches {
		patches[i] = m.patches[i].Name
	}

	for i := range m.vertices {
		vertices[i] = m.vertices[i].Point
	}

	for i := range m.faces {
		faces[i] = m.GetFaceVertices(i)
		facePatches[i] = m.faces[i].Patch
	}

	objWriter := exchange.NewOBJWriter(writer)
	objWriter.SetVertices(vertices)
	objWriter.SetFaces(faces)
	objWriter.SetFacePatches(facePatches)
	objWriter.SetPatches(patches)

	return objWriter.Write()
}

// WriteOBJPath writes the HalfEdgeMesh to an OBJ file path.
func (m *HalfEdgeMesh) WriteOBJPath(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var writer io.Writer

	if strings.ToLower(filepath.Ext(path)) == ".gz" {
		gzipFile := gzip.NewWriter(file)
		defer gzipFile.Close()
		writer = gzipFile
	} else {
		writer = file
	}

	return m.WriteOBJ(writer)
}

// GetNumberOfVertices returns the number of vertices.
func (m *HalfEdgeMesh) GetNumberOfVertices() int {
	return len(m.vertices)
}

// GetVertex returns a vertex by index.
func (m *HalfEdgeMesh) GetVertex(index int) *Vertex {
	return &m.vertices[index]
}

// GetVertexOutgoingHalfEdges returns every half edge whose origin is index.
func (m *HalfEdgeMesh) GetVertexOutgoingHalfEdges(index int) []int {
	var out []int

	for i, halfEdge := range m.halfEdges {
		if halfEdge.Origin == index {
			out = append(out, i)
		}
	}

	return out
}

// GetVertexIncomingHalfEdges returns every half edge terminating at index.
func (m *HalfEdgeMesh) GetVertexIncomingHalfEdges(index int) []int {
	outgoing := m.GetVertexOutgoingHalfEdges(index)
	incoming := make([]int, len(outgoing))

	for i, id := range outgoing {
		incoming[i] = m.GetHalfEdge(id).Prev
	}

	return incoming
}

// GetVertexFaces returns every face incident on vertex index.
func (m *HalfEdgeMesh) GetVertexFaces(index int) []int {
	outgoing := m.GetVertexOutgoingHalfEdges(index)
	faces := make([]int, len(outgoing))

	for i, id := range outgoing {
		faces[i] = m.GetHalfEdge(id).Face
	}

	return faces
}

// GetNumberOfFaces returns the number of faces.
func (m *HalfEdgeMesh) GetNumberOfFaces() int {
	return len(m.faces)
}

// GetFace returns a face by index.
func (m *HalfEdgeMesh) GetFace(index int) *Face {
	return &m.faces[index]
}

// GetFaceVertices returns the vertex indices of a face, in winding order.
func (m *HalfEdgeMesh) GetFaceVertices(index int) []int {
	halfEdges := m.GetFaceHalfEdges(index)
	vertices := make([]int, len(halfEdges))

	for i, id := range halfEdges {
		vertices[i] = m.GetHalfEdge(id).Origin
	}

	return vertices
}

// GetFaceHalfEdges returns the half edges of a face, in winding order.
func (m *HalfEdgeMesh) GetFaceHalfEdges(index int) []int {
	face := m.GetFace(index)
	next := face.HalfEdge
	halfEdges := make([]int, 0, 3)

	for {
		halfEdges = append(halfEdges, next)
		next = m.GetHalfEdge(next).Next

		if next == face.HalfEdge {
			break
		}
	}

	return halfEdges
}

// GetFaceNeighbors returns the faces adjacent to a face across a shared
// (non-boundary) edge.
func (m *HalfEdgeMesh) GetFaceNeighbors(index int) []int {
	halfEdges := m.GetFaceHalfEdges(index)
	faces := make([]int, 0, len(halfEdges))

	for _, id := range halfEdges {
		if halfEdge := m.GetHalfEdge(id); !halfEdge.IsBoundary() {
			twin := m.GetHalfEdge(halfEdge.Twin)
			faces = append(faces, twin.Face)
		}
	}

	return faces
}

// flipFace reverses the winding of a single face in place.
func (m *HalfEdgeMesh) flipFace(index int) {
	for _, id := range m.GetFaceHalfEdges(index) {
		halfEdge := m.GetHalfEdge(id)
		origin := m.GetHalfEdge(halfEdge.Next).Origin

		m.halfEdges[id] = HalfEdge{
			Origin: origin,
			Face:   halfEdge.Face,
			Next:   halfEdge.Prev,
			Prev:   halfEdge.Next,
			Twin:   halfEdge.Twin,
		}
	}
}

// GetNumberOfHalfEdges returns the number of half edges.
func (m *HalfEdgeMesh) GetNumberOfHalfEdges() int {
	return len(m.halfEdges)
}

// GetHalfEdge returns a half edge by index.
func (m *HalfEdgeMesh) GetHalfEdge(index int) *HalfEdge {
	return &m.halfEdges[index]
}

// GetNumberOfPatches returns the number of patches.
func (m *HalfEdgeMesh) GetNumberOfPatches() int {
	return len(m.patches)
}

// GetPatch returns a patch by index.
func (m *HalfEdgeMesh) GetPatch(index int) *Patch {
	return &m.patches[index]
}

// IsClosed returns true if there are no open (boundary) edges.
func (m *HalfEdgeMesh) IsClosed() bool {
	for _, halfEdge := range m.halfEdges {
		if halfEdge.IsBoundary() {
			return false
		}
	}
	return true
}

// GetComponents returns the connected components of the face adjacency
// graph, each as a list of face indices.
func (m *HalfEdgeMesh) GetComponents() [][]int {
	components := make([][]int, 0)
	visited := make([]bool, m.GetNumberOfFaces())

	for i := 0; i < m.GetNumberOfFaces(); i++ {
		if !visited[i] {
			var current int
			component := make([]int, 0)
			queue := []int{i}

			for len(queue) > 0 {
				current, queue = queue[0], queue[1:]

				if !visited[current] {
					visited[current] = true
					component = append(component, current)

					for _, neighbor := range m.GetFaceNeighbors(current) {
						if !visited[neighbor] {
							queue = append(queue, neighbor)
						}
					}
				}
			}

			components = append(components, component)
		}
	}

	return components
}

// IsConsistent returns true if every pair of adjacent faces shares its
// common edge with opposite winding (a prerequisite for a valid outward
// normal convention).
func (m *HalfEdgeMesh) IsConsistent() bool {
	for _, halfEdge := range m.halfEdges {
		if !halfEdge.IsBoundary() {
			if m.GetHalfEdge(halfEdge.Twin).Origin == halfEdge.Origin {
				return false
			}
		}
	}
	return true
}

// IsConsistentWithReference returns true if the mesh is winding-consistent
// and every component's representative face normal points away from
// reference (the convention this package uses for "outward" when the mesh
// bounds a volume enclosing reference).
func (m *HalfEdgeMesh) IsConsistentWithReference(reference meshisect.Vector) bool {
	if !m.IsConsistent() {
		return false
	}

	for _, component := range m.GetComponents() {
		if len(component) == 0 {
			continue
		}

		if !m.facesAwayFromReference(component[0], reference) {
			return false
		}
	}

	return true
}

func (m *HalfEdgeMesh) facesAwayFromReference(face int, reference meshisect.Vector) bool {
	points := m.facePoints(face)
	normal := faceNormal(points)
	centroid := polygonCentroid(points)
	return normal.Dot(centroid.Sub(reference)) >= 0
}

func (m *HalfEdgeMesh) facePoints(face int) []meshisect.Vector {
	verts := m.GetFaceVertices(face)
	points := make([]meshisect.Vector, len(verts))

	for i, v := range verts {
		points[i] = m.vertices[v].Point
	}

	return points
}

// faceNormal computes a polygon's unit normal via Newell's method, robust
// to mild non-planarity (see exchange.newellNormal, the same formula).
func faceNormal(points []meshisect.Vector) meshisect.Vector {
	var n meshisect.Vector

	for i := range points {
		p := points[i]
		q := points[(i+1)%len(points)]

		n[0] += (p.Y() - q.Y()) * (p.Z() + q.Z())
		n[1] += (p.Z() - q.Z()) * (p.X() + q.X())
		n[2] += (p.X() - q.X()) * (p.Y() + q.Y())
	}

	return n.Unit()
}

func polygonCentroid(points []meshisect.Vector) meshisect.Vector {
	var sum meshisect.Vector

	for _, p := range points {
		sum = sum.Add(p)
	}

	return sum.MulScalar(1.0 / float64(len(points)))
}

// Orient flips faces as needed so every component is winding-consistent.
func (m *HalfEdgeMesh) Orient() {
	if m.IsConsistent() {
		return
	}

	visited := make([]bool, m.GetNumberOfFaces())

	for i := 0; i < m.GetNumberOfFaces(); i++ {
		if !visited[i] {
			var current int
			queue := []int{i}

			for n := len(queue); n > 0; n = len(queue) {
				current, queue = queue[n-1], queue[:n-1]

				if !visited[current] {
					visited[current] = true

					for _, neighbor := range m.GetFaceNeighbors(current) {
						if !m.checkFaceOrientation(current, neighbor) {
							visited[current] = true
							m.flipFace(neighbor)
						} else {
							queue = append(queue, neighbor)
						}
					}
				}
			}
		}
	}
}

// OrientWithReference orients the mesh for winding consistency, then flips
// any component whose representative face normal points toward reference.
func (m *HalfEdgeMesh) OrientWithReference(reference meshisect.Vector) error {
	m.Orient()

	for _, component := range m.GetComponents() {
		if len(component) == 0 {
			continue
		}

		if !m.facesAwayFromReference(component[0], reference) {
			for _, face := range component {
				m.flipFace(face)
			}
		}
	}

	return nil
}

// checkFaceOrientation reports whether source and target (known to be
// adjacent) share their common edge with consistent (opposite) winding.
func (m *HalfEdgeMesh) checkFaceOrientation(source, target int) bool {
	for _, id := range m.GetFaceHalfEdges(source) {
		halfEdge := m.GetHalfEdge(id)

		if !halfEdge.IsBoundary() {
			if twin := m.GetHalfEdge(halfEdge.Twin); twin.Face == target {
				return halfEdge.Origin != twin.Origin
			}
		}
	}
	return false
}

// Merge appends n's vertices, faces, half edges and patches onto m in
// place, offsetting every cross-reference.
func (m *HalfEdgeMesh) Merge(n *HalfEdgeMesh) {
	offsetVertex := m.GetNumberOfVertices()
	offsetFace := m.GetNumberOfFaces()
	offsetHalfEdge := m.GetNumberOfHalfEdges()
	offsetPatch := m.GetNumberOfPatches()

	for _, vertex := range n.vertices {
		if vertex.HalfEdge >= 0 {
			vertex.HalfEdge += offsetHalfEdge
		}
		m.vertices = append(m.vertices, vertex)
	}

	for _, face := range n.faces {
		face.HalfEdge += offsetHalfEdge
		if face.Patch >= 0 {
			face.Patch += offsetPatch
		}
		m.faces = append(m.faces, face)
	}

	for _, halfEdge := range n.halfEdges {
		halfEdge.Origin += offsetVertex
		halfEdge.Face += offsetFace
		halfEdge.Next += offsetHalfEdge
		halfEdge.Prev += offsetHalfEdge

		if !halfEdge.IsBoundary() {
			halfEdge.Twin += offsetHalfEdge
		}

		m.halfEdges = append(m.halfEdges, halfEdge)
	}

	for _, patch := range n.patches {
		m.patches = append(m.patches, patch)
	}
}

// Extract builds a new mesh from the given subset of faces, remapping
// vertex indices and carrying patch assignments through. Unlike
// NewHalfEdgeMesh, it never rejects the result for having boundary edges:
// extracting a subset of a closed mesh routinely produces an open one.
func (m *HalfEdgeMesh) Extract(faces []int) *HalfEdgeMesh {
	vertexRemap := make(map[int]int)
	var vertices []meshisect.Vector
	faceVerts := make([][]int, len(faces))
	facePatches := make([]int, len(faces))

	for i, face := range faces {
		verts := m.GetFaceVertices(face)
		remapped := make([]int, len(verts))

		for j, v := range verts {
			newIndex, ok := vertexRemap[v]
			if !ok {
				newIndex = len(vertices)
				vertexRemap[v] = newIndex
				vertices = append(vertices, m.vertices[v].Point)
			}
			remapped[j] = newIndex
		}

		faceVerts[i] = remapped
		facePatches[i] = m.faces[face].Patch
	}

	patches := append([]Patch(nil), m.patches...)
	extracted, _ := buildHalfEdgeMesh(vertices, faceVerts, facePatches, patches)
	return extracted
}

// Translate shifts every vertex position by offset, in place.
func (m *HalfEdgeMesh) Translate(offset meshisect.Vector) {
	for i, vertex := range m.vertices {
		m.vertices[i] = Vertex{
			Point:    vertex.Point.Add(offset),
			HalfEdge: vertex.HalfEdge,
		}
	}
}

// Triangulate fan-triangulates every polygon into the spatial kernel's
// triangle soup, stamping FaceID, TriangleIndex and PolygonNormal per
// polygon so a downstream driver can map a hit sub-triangle back to the
// polygon (and patch) it came from.
func (m *HalfEdgeMesh) Triangulate() []meshisect.Triangle {
	var triangles []meshisect.Triangle

	for i := 0; i < m.GetNumberOfFaces(); i++ {
		points := m.facePoints(i)
		if len(points) < 3 {
			continue
		}

		normal := faceNormal(points)

		for k := 1; k < len(points)-1; k++ {
			triangles = append(triangles, meshisect.Triangle{
				P:             points[0],
				Q:             points[k],
				R:             points[k+1],
				FaceID:        i,
				TriangleIndex: k - 1,
				PolygonNormal: normal,
			})
		}
	}

	return triangles
}
