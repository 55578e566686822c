package dto

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/reactor/pkg/domain"
)

// ParamsFile is the on-disk (and on-the-wire) layout of a reactor build.
// It uses "mapstructure" tags so that YAML, TOML and JSON documents decode the
// same way, including the string-valued files saved by older tools.
type ParamsFile struct {
	Reactor   ReactorSection   `json:"reactor" yaml:"reactor" toml:"reactor" mapstructure:"reactor"`
	Chimney   ChimneySection   `json:"chimney" yaml:"chimney" toml:"chimney" mapstructure:"chimney"`
	Meshing   MeshingSection   `json:"meshing" yaml:"meshing" toml:"meshing" mapstructure:"meshing"`
	Optimizer OptimizerSection `json:"optimizer,omitempty" yaml:"optimizer,omitempty" toml:"optimizer,omitempty" mapstructure:"optimizer"`
	Cache     CacheSection     `json:"cache,omitempty" yaml:"cache,omitempty" toml:"cache,omitempty" mapstructure:"cache"`
}

type ReactorSection struct {
	Center []float64 `json:"center" yaml:"center" toml:"center" mapstructure:"center"`
	Radius float64   `json:"radius" yaml:"radius" toml:"radius" mapstructure:"radius"`
	Height float64   `json:"height" yaml:"height" toml:"height" mapstructure:"height"`
}

type ChimneySection struct {
	Width  float64 `json:"width" yaml:"width" toml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" toml:"height" mapstructure:"height"`
}

type MeshingSection struct {
	Size           float64 `json:"size" yaml:"size" toml:"size" mapstructure:"size"`
	SquareRatio    float64 `json:"square_ratio" yaml:"square_ratio" toml:"square_ratio" mapstructure:"square_ratio"`
	CurvatureRatio float64 `json:"curvature_ratio" yaml:"curvature_ratio" toml:"curvature_ratio" mapstructure:"curvature_ratio"`
	Optimize       bool    `json:"optimize" yaml:"optimize" toml:"optimize" mapstructure:"optimize"`
}

// OptimizerSection overrides the search budget. Zero values keep the defaults.
type OptimizerSection struct {
	MaxIterations  int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty" mapstructure:"max_iterations"`
	MaxEvaluations int `json:"max_evaluations,omitempty" yaml:"max_evaluations,omitempty" toml:"max_evaluations,omitempty" mapstructure:"max_evaluations"`
	Parallelism    int `json:"parallelism,omitempty" yaml:"parallelism,omitempty" toml:"parallelism,omitempty" mapstructure:"parallelism"`
}

// CacheSection configures the shared trial cache. An empty address disables it.
type CacheSection struct {
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty" mapstructure:"prefix"`
	// TTL is a Go duration string such as "24h".
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty" toml:"ttl,omitempty" mapstructure:"ttl"`
}

// Duration parses TTL. An empty TTL means no expiration.
func (c CacheSection) Duration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	return d, nil
}

// Default mirrors domain.DefaultGeometryParams.
func Default() ParamsFile {
	return FromParams(domain.DefaultGeometryParams())
}

// FromParams converts domain parameters to the file layout.
func FromParams(p domain.GeometryParams) ParamsFile {
	return ParamsFile{
		Reactor: ReactorSection{
			Center: []float64{p.Center.X, p.Center.Y, p.Center.Z},
			Radius: p.Reactor.X,
			Height: p.Reactor.Y,
		},
		Chimney: ChimneySection{Width: p.Chimney.X, Height: p.Chimney.Y},
		Meshing: MeshingSection{
			Size:           p.MeshSize,
			SquareRatio:    p.PerSquare,
			CurvatureRatio: p.CurvatureFraction,
			Optimize:       p.Optimize,
		},
	}
}

// Decode converts a generic document into a ParamsFile, starting from
// Default so that missing keys keep their defaults. Scalars are weakly typed:
// "10", 10 and 10.0 all decode to a float. It returns the keys it ignored.
func Decode(raw map[string]any) (ParamsFile, []string, error) {
	out := Default()
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Metadata:         &md,
		Result:           &out,
	})
	if err != nil {
		return ParamsFile{}, nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return ParamsFile{}, nil, domain.WrapError("decode_params", domain.KindInvalidParameter, err)
	}
	return out, md.Unused, out.validate()
}

func (f ParamsFile) validate() error {
	if n := len(f.Reactor.Center); n != 3 {
		return domain.NewError("decode_params", domain.KindInvalidParameter, "reactor.center needs 3 coordinates, got %d", n)
	}
	if _, err := f.Cache.Duration(); err != nil {
		return domain.WrapError("decode_params", domain.KindInvalidParameter, err)
	}
	return nil
}

// Params converts the file layout to domain parameters.
func (f ParamsFile) Params() domain.GeometryParams {
	var c domain.Vector3
	if len(f.Reactor.Center) == 3 {
		c = domain.V3(f.Reactor.Center[0], f.Reactor.Center[1], f.Reactor.Center[2])
	}
	return domain.GeometryParams{
		Center:            c,
		Reactor:           domain.V2(f.Reactor.Radius, f.Reactor.Height),
		Chimney:           domain.V2(f.Chimney.Width, f.Chimney.Height),
		PerSquare:         f.Meshing.SquareRatio,
		CurvatureFraction: f.Meshing.CurvatureRatio,
		MeshSize:          f.Meshing.Size,
		Optimize:          f.Meshing.Optimize,
	}
}

// Settings applies the optimizer section to base.
func (f ParamsFile) Settings(base domain.OptimizerSettings) domain.OptimizerSettings {
	if f.Optimizer.MaxIterations > 0 {
		base.MaxIterations = f.Optimizer.MaxIterations
	}
	if f.Optimizer.MaxEvaluations > 0 {
		base.MaxEvaluations = f.Optimizer.MaxEvaluations
	}
	if f.Optimizer.Parallelism > 0 {
		base.Parallelism = f.Optimizer.Parallelism
	}
	return base
}
