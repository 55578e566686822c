package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/aretw0/reactor/internal/adapters/file"
	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/internal/logging"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Plain       bool
	RedisAddr   string
	Parallelism int
	// RequestTimeout bounds each API request when serving.
	RequestTimeout time.Duration
}

// AddPersistentFlags binds o to fs.
func AddPersistentFlags(fs *pflag.FlagSet, o *Options) {
	fs.StringVarP(&o.ConfigPath, "config", "c", "", "Parameter file (.yaml, .toml or .json)")
	fs.StringVar(&o.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	fs.StringVar(&o.LogFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&o.Plain, "plain", false, "Print raw markdown even on a terminal")
	fs.StringVar(&o.RedisAddr, "redis", "", "Redis address of the shared trial cache (overrides the file)")
	fs.IntVarP(&o.Parallelism, "parallel", "j", 0, "Optimizer trials evaluated concurrently (overrides the file)")
}

// Logger builds the application logger from o.
func (o Options) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(o.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.NewWithOptions(logging.Options{Level: level, Format: format}), nil
}

// AddParamFlags registers one flag per build parameter.
func AddParamFlags(fs *pflag.FlagSet) {
	fs.Float64Slice("center", nil, "Reactor base center x,y,z")
	fs.Float64("radius", 0, "Reactor radius")
	fs.Float64("height", 0, "Reactor height")
	fs.Float64("chimney-width", 0, "Chimney width")
	fs.Float64("chimney-height", 0, "Chimney height")
	fs.Float64("mesh-size", 0, "Characteristic element length")
	fs.Float64("square", 0, "Central square side as a fraction of the radius, in (0,1)")
	fs.Float64("curvature", 0, "Square side bulge as a fraction of half the side, in (0,1)")
	fs.Bool("optimize", false, "Search the square and curvature fractions")
}

// ResolveParams loads the parameter file of o (or the defaults) and applies
// every parameter flag set on the command line.
func ResolveParams(fs *pflag.FlagSet, o Options, logger *slog.Logger) (dto.ParamsFile, error) {
	f := dto.Default()
	if o.ConfigPath != "" {
		loaded, unused, err := file.Load(o.ConfigPath)
		if err != nil {
			return dto.ParamsFile{}, err
		}
		if len(unused) > 0 {
			logger.Warn("ignored keys in parameter file", "path", o.ConfigPath, "keys", unused)
		}
		f = loaded
	}
	if err := ApplyOverrides(fs, &f); err != nil {
		return dto.ParamsFile{}, err
	}
	return f, nil
}

// ApplyOverrides copies the flags the user set into f.
func ApplyOverrides(fs *pflag.FlagSet, f *dto.ParamsFile) error {
	floats := map[string]*float64{
		"radius":         &f.Reactor.Radius,
		"height":         &f.Reactor.Height,
		"chimney-width":  &f.Chimney.Width,
		"chimney-height": &f.Chimney.Height,
		"mesh-size":      &f.Meshing.Size,
		"square":         &f.Meshing.SquareRatio,
		"curvature":      &f.Meshing.CurvatureRatio,
	}
	for name, dst := range floats {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed("center") {
		c, err := fs.GetFloat64Slice("center")
		if err != nil {
			return err
		}
		if len(c) != 3 {
			return fmt.Errorf("--center needs 3 coordinates, got %d", len(c))
		}
		f.Reactor.Center = c
	}
	if fs.Changed("optimize") {
		v, err := fs.GetBool("optimize")
		if err != nil {
			return err
		}
		f.Meshing.Optimize = v
	}
	return nil
}
