package cli

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/internal/adapters/file"
	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/internal/logging"
)

func paramFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddParamFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestApplyOverrides(t *testing.T) {
	fs := paramFlags(t, "--radius=12", "--center=1,2,3", "--optimize", "--square", "0.4")
	f := dto.Default()
	height := f.Reactor.Height

	require.NoError(t, ApplyOverrides(fs, &f))
	assert.Equal(t, 12.0, f.Reactor.Radius)
	assert.Equal(t, []float64{1, 2, 3}, f.Reactor.Center)
	assert.Equal(t, 0.4, f.Meshing.SquareRatio)
	assert.True(t, f.Meshing.Optimize)
	assert.Equal(t, height, f.Reactor.Height, "unset flags keep the file value")
}

func TestApplyOverrides_CenterArity(t *testing.T) {
	fs := paramFlags(t, "--center=1,2")
	f := dto.Default()
	assert.ErrorContains(t, ApplyOverrides(fs, &f), "3 coordinates")
}

func TestResolveParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.toml")
	saved := dto.Default()
	saved.Reactor.Radius = 11
	require.NoError(t, file.Save(path, saved))

	fs := paramFlags(t, "--mesh-size=0.4")
	f, err := ResolveParams(fs, Options{ConfigPath: path}, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 11.0, f.Reactor.Radius)
	assert.Equal(t, 0.4, f.Meshing.Size)

	_, err = ResolveParams(fs, Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}, logging.NewNop())
	assert.Error(t, err)
}

func TestResolveParams_WithoutFile(t *testing.T) {
	f, err := ResolveParams(paramFlags(t), Options{}, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, dto.Default(), f)
}

func TestOptionsLogger(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var o Options
	AddPersistentFlags(fs, &o)
	require.NoError(t, fs.Parse([]string{"--log-level=debug", "--log-format=json", "-j", "3"}))
	assert.Equal(t, 3, o.Parallelism)

	logger, err := o.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = Options{LogLevel: "loud", LogFormat: "text"}.Logger()
	assert.Error(t, err)
	_, err = Options{LogLevel: "info", LogFormat: "xml"}.Logger()
	assert.Error(t, err)
}
