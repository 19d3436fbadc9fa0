package main

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

// fileConfig mirrors the YAML config file's schema. It is decoded directly
// with goccy/go-yaml (rather than left to viper's internal decoder) so a
// malformed max_depth or max_triangles_per_node fails fast with a precise
// error instead of silently falling through to the zero value.
type fileConfig struct {
	MaxTrianglesPerNode int  `yaml:"max_triangles_per_node"`
	MaxDepth            int  `yaml:"max_depth"`
	Parallel            bool `yaml:"parallel"`
}

// loadFileConfig reads and validates the YAML config file at path, then
// writes its values into viper with viper.Set, so they override the
// defaults registered in main.go. Keys absent from the file keep their
// current viper values.
func loadFileConfig(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := fileConfig{
		MaxTrianglesPerNode: viper.GetInt("max_triangles_per_node"),
		MaxDepth:            viper.GetInt("max_depth"),
		Parallel:            viper.GetBool("parallel"),
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.MaxTrianglesPerNode < 1 {
		return fmt.Errorf("config %s: max_triangles_per_node must be >= 1, got %d", path, cfg.MaxTrianglesPerNode)
	}
	if cfg.MaxDepth < 1 {
		return fmt.Errorf("config %s: max_depth must be >= 1, got %d", path, cfg.MaxDepth)
	}

	viper.Set("max_triangles_per_node", cfg.MaxTrianglesPerNode)
	viper.Set("max_depth", cfg.MaxDepth)
	viper.Set("parallel", cfg.Parallel)

	return nil
}
