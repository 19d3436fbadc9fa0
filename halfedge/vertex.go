package halfedge

import (
	"github.com/ajcurley/meshisect"
)

// Vertex is a mesh vertex position plus one outgoing half edge, used as the
// entry point for traversals around the vertex.
type Vertex struct {
	Point    meshisect.Vector
	HalfEdge int
}
