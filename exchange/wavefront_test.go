package exchange

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajcurley/meshisect"
)

// Read an OBJ file from path.
func TestReadOBJFromPath(t *testing.T) {
	reader, err := ReadOBJFromPath("testdata/box.obj")

	assert.NoError(t, err)
	assert.Equal(t, 8, reader.GetNumberOfVertices())
	assert.Equal(t, 6, reader.GetNumberOfFaces())
	assert.Equal(t, 0, reader.GetNumberOfPatches())
	assert.Equal(t, []int{0, 1, 2, 3}, reader.GetFace(0))
}

// Read an OBJ file from path (gzip).
func TestReadOBJFromPathGZIP(t *testing.T) {
	reader, err := ReadOBJFromPath("testdata/box.obj.gz")

	assert.NoError(t, err)
	assert.Equal(t, 8, reader.GetNumberOfVertices())
	assert.Equal(t, 6, reader.GetNumberOfFaces())
	assert.Equal(t, 0, reader.GetNumberOfPatches())
}

// Read an OBJ file from path with mixed elements and patches.
func TestReadOBJFromPathPatches(t *testing.T) {
	reader, err := ReadOBJFromPath("testdata/box.patches.obj")

	assert.NoError(t, err)
	assert.Equal(t, 8, reader.GetNumberOfVertices())
	assert.Equal(t, 6, reader.GetNumberOfFaces())
	assert.Equal(t, 3, reader.GetNumberOfPatches())
	assert.Equal(t, 0, reader.GetFacePatch(0))
	assert.Equal(t, 1, reader.GetFacePatch(1))
	assert.Equal(t, 2, reader.GetFacePatch(2))
}

// The PolyMesh conversion carries the face table through unchanged and
// computes a unit-length normal per polygon.
func TestOBJReaderToPolyMesh(t *testing.T) {
	reader, err := ReadOBJFromPath("testdata/box.obj")
	assert.NoError(t, err)

	mesh := reader.ToPolyMesh()
	assert.Equal(t, 8, len(mesh.Vertices))
	assert.Equal(t, 6, len(mesh.Faces))
	assert.Equal(t, 6, len(mesh.Normals))

	for _, n := range mesh.Normals {
		assert.InDelta(t, 1.0, n.Mag(), 1e-9)
	}

	// The bottom face (z=0, wound 1-2-3-4, counter-clockwise seen from +Z)
	// points +Z by the right-hand rule.
	assert.InDelta(t, 1.0, mesh.Normals[0][2], 1e-9)
}

// Write an OBJ file.
func TestWriteOBJ(t *testing.T) {
	vertices := []meshisect.Vector{
		meshisect.NewVector(0, 0, 0),
		meshisect.NewVector(0, 1, 0),
		meshisect.NewVector(1, 1, 0),
	}

	faces := [][]int{
		{0, 1, 2},
	}

	var expected string
	expected += "v 0.000000 0.000000 0.000000\n"
	expected += "v 0.000000 1.000000 0.000000\n"
	expected += "v 1.000000 1.000000 0.000000\n"
	expected += "f 1 2 3\n"

	var writer bytes.Buffer
	objWriter := NewOBJWriter(&writer)
	objWriter.SetVertices(vertices)
	objWriter.SetFaces(faces)

	err := objWriter.Write()
	assert.NoError(t, err)
	assert.Equal(t, expected, writer.String())
}

// Write an OBJ file (gzip).
func TestWriteOBJGZIP(t *testing.T) {
	vertices := []meshisect.Vector{
		meshisect.NewVector(0, 0, 0),
		meshisect.NewVector(0, 1, 0),
		meshisect.NewVector(1, 1, 0),
	}

	faces := [][]int{
		{0, 1, 2},
	}

	var expected string
	expected += "v 0.000000 0.000000 0.000000\n"
	expected += "v 0.000000 1.000000 0.000000\n"
	expected += "v 1.000000 1.000000 0.000000\n"
	expected += "f 1 2 3\n"

	var expectedBuf bytes.Buffer
	expectedWriter := gzip.NewWriter(&expectedBuf)
	expectedWriter.Write([]byte(expected))
	expectedWriter.Close()

	var writer bytes.Buffer
	gzipWriter := gzip.NewWriter(&writer)
	objWriter := NewOBJWriter(gzipWriter)
	objWriter.SetVertices(vertices)
	objWriter.SetFaces(faces)

	err := objWriter.Write()
	assert.NoError(t, err)
	gzipWriter.Close()
	assert.Equal(t, expectedBuf.String(), writer.String())
}

// Write an OBJ file with patches.
func TestWriteOBJPatches(t *testing.T) {
	vertices := []meshisect.Vector{
		meshisect.NewVector(0, 0, 0),
		meshisect.NewVector(1, 0, 0),
		meshisect.NewVector(1, 1, 0),
		meshisect.NewVector(0, 1, 0),
	}

	faces := [][]int{
		{0, 1, 2},
		{0, 2, 3},
	}

	var writer bytes.Buffer
	objWriter := NewOBJWriter(&writer)
	objWriter.SetVertices(vertices)
	objWriter.SetFaces(faces)
	objWriter.SetFacePatches([]int{0, 0})
	objWriter.SetPatches([]string{"bottom"})

	err := objWriter.Write()
	assert.NoError(t, err)
	assert.Contains(t, writer.String(), "g bottom\n")
	assert.Contains(t, writer.String(), "f 1 2 3\n")
	assert.Contains(t, writer.String(), "f 1 3 4\n")
}
