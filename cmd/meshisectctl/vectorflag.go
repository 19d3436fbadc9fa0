package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ajcurley/meshisect"
)

// vectorValue adapts meshisect.Vector to pflag.Value so a translation can be
// given on the command line as "x,y,z" instead of three separate flags.
type vectorValue struct {
	v *meshisect.Vector
}

func newVectorValue(initial meshisect.Vector, p *meshisect.Vector) *vectorValue {
	*p = initial
	return &vectorValue{v: p}
}

func (f *vectorValue) String() string {
	if f.v == nil {
		return "0,0,0"
	}
	return fmt.Sprintf("%g,%g,%g", f.v.X(), f.v.Y(), f.v.Z())
}

func (f *vectorValue) Set(raw string) error {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return fmt.Errorf("expected \"x,y,z\", got %q", raw)
	}

	var components [3]float64
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
		components[i] = value
	}

	*f.v = meshisect.NewVectorFromArray(components)
	return nil
}

func (f *vectorValue) Type() string {
	return "x,y,z"
}

var _ pflag.Value = (*vectorValue)(nil)
