package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajcurley/meshisect"
	"github.com/ajcurley/meshisect/exchange"
	"github.com/ajcurley/meshisect/spatial"
	"github.com/ajcurley/meshisect/xsect"
)

var intersectCmd = &cobra.Command{
	Use:   "intersect <meshA.obj> <meshB.obj>",
	Short: "Report the faces of two OBJ meshes that intersect",
	Long: `intersect reads two WaveFront OBJ meshes, builds a spatial-division
kernel over each, and prints the pair of face-id sets that participate in
a surface-surface intersection, as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runIntersect,
}

var translateB meshisect.Vector

func init() {
	intersectCmd.Flags().Var(newVectorValue(meshisect.NewVector(0, 0, 0), &translateB), "translate-b", "translation \"x,y,z\" applied to mesh B before the query")
	intersectCmd.Flags().Float64("bbox-buffer", 0.05, "fractional buffer applied to each mesh's computed bounding box")

	viper.BindPFlag("bbox_buffer", intersectCmd.Flags().Lookup("bbox-buffer"))
}

func runIntersect(cmd *cobra.Command, args []string) error {
	meshA, err := loadPolyMesh(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	meshB, err := loadPolyMesh(args[1])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	transformA := meshisect.NewMatrix4Identity()
	transformB := meshisect.NewMatrix4Translation(translateB)

	buffer := viper.GetFloat64("bbox_buffer")
	boundsA := worldBounds(meshA, transformA, buffer)
	boundsB := worldBounds(meshB, transformB, buffer)

	opts := xsect.Options{
		BuildParams: spatial.BuildParams{
			MaxTrianglesPerNode: viper.GetInt("max_triangles_per_node"),
			MaxDepth:            viper.GetInt("max_depth"),
		},
		Logger:   logger,
		Parallel: viper.GetBool("parallel"),
	}

	result, err := xsect.Intersect(meshA, transformA, boundsA, meshB, transformB, boundsB, opts)
	if err != nil {
		return err
	}

	logger.Info("query complete",
		zap.String("query_id", result.QueryID),
		zap.Int("faces_a", len(result.FacesA)),
		zap.Int("faces_b", len(result.FacesB)),
	)

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}

func loadPolyMesh(path string) (meshisect.PolyMesh, error) {
	reader, err := exchange.ReadOBJFromPath(path)
	if err != nil {
		return meshisect.PolyMesh{}, err
	}
	return reader.ToPolyMesh(), nil
}

func worldBounds(mesh meshisect.PolyMesh, transform meshisect.Matrix4, buffer float64) meshisect.AABB {
	vertices := make([]meshisect.Vector, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		vertices[i] = transform.MulPoint(v)
	}

	if len(vertices) == 0 {
		return meshisect.NewAABB(meshisect.NewVector(0, 0, 0), meshisect.NewVector(1, 1, 1))
	}

	return meshisect.NewAABBFromVectors(vertices).Buffer(buffer)
}
