// Command meshisectctl is a CLI host-simulator: it plays the role of the
// external collaborator in spec.md §1, reading two OBJ meshes from disk,
// building PolyMesh values, and calling the same xsect.Intersect entry
// point any other host application would.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfgFile string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "meshisectctl",
	Short: "Surface-surface intersection kernel host-simulator",
	Long: `meshisectctl builds spatial-division kernels over two triangulated
meshes and reports which faces on each participate in a surface-surface
intersection. It exists to exercise meshisect/xsect from the command line;
it is not part of the intersection kernel itself.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func main() {
	rootCmd.AddCommand(intersectCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); overrides build-parameter defaults")
	rootCmd.PersistentFlags().Bool("verbose", false, "emit debug-level logs")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetDefault("max_triangles_per_node", 10)
	viper.SetDefault("max_depth", 32)
	viper.SetDefault("parallel", false)
}

func initConfig() error {
	if cfgFile != "" {
		if err := loadFileConfig(cfgFile); err != nil {
			return err
		}
	}

	var zapConfig zap.Config
	if viper.GetBool("verbose") {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	built, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	logger = built
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meshisectctl %s (%s)\n", version, commit)
	},
}
