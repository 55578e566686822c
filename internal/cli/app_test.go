package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/reactor/internal/adapters/file"
	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/internal/logging"
	"github.com/aretw0/reactor/pkg/domain"
)

func quickParams() dto.ParamsFile {
	f := dto.Default()
	f.Optimizer = dto.OptimizerSection{MaxIterations: 2, MaxEvaluations: 10}
	return f
}

func openApp(t *testing.T, f dto.ParamsFile, o Options) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	o.Plain = true
	app, err := Open(context.Background(), f, o, logging.NewNop(), &out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, &out
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	app, out := openApp(t, quickParams(), Options{})

	bo := BuildOptions{
		GeometryOut: filepath.Join(dir, "geometry.yaml"),
		MeshOut:     filepath.Join(dir, "mesh.yml"),
		SavePath:    filepath.Join(dir, "params.toml"),
	}
	require.NoError(t, app.Build(context.Background(), bo))

	md := out.String()
	assert.Contains(t, md, "# Reactor build")
	assert.Contains(t, md, "## Profile")
	assert.Contains(t, md, "## Files")
	assert.Contains(t, md, "mesh.yml")

	for _, p := range []string{bo.GeometryOut, bo.MeshOut} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc), p)
		assert.NotEmpty(t, doc)
	}

	saved, _, err := file.Load(bo.SavePath)
	require.NoError(t, err)
	assert.Equal(t, app.Params.Reactor, saved.Reactor)
}

func TestBuild_SkipMesh(t *testing.T) {
	app, out := openApp(t, quickParams(), Options{})
	require.NoError(t, app.Build(context.Background(), BuildOptions{SkipMesh: true}))
	assert.Contains(t, out.String(), "## Profile")
	assert.NotContains(t, out.String(), "## Files")
}

func TestBuild_Errors(t *testing.T) {
	dir := t.TempDir()

	f := quickParams()
	f.Chimney.Width = 9
	app, _ := openApp(t, f, Options{})
	err := app.Build(context.Background(), BuildOptions{})
	assert.True(t, domain.IsKind(err, domain.KindGeometryConstraint))

	app, _ = openApp(t, quickParams(), Options{})
	stl := filepath.Join(dir, "mesh.stl")
	err = app.Build(context.Background(), BuildOptions{MeshOut: stl})
	assert.True(t, domain.IsKind(err, domain.KindKernelOperation))
	assert.NoFileExists(t, stl, "a failed export leaves no partial file")

	err = app.Build(context.Background(), BuildOptions{MeshOut: filepath.Join(dir, "mesh.txt")})
	assert.True(t, domain.IsKind(err, domain.KindInvalidParameter))
}

func TestOptimize_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	f := quickParams()
	f.Cache = dto.CacheSection{Prefix: "test:", TTL: "1h"}

	app, out := openApp(t, f, Options{RedisAddr: mr.Addr(), Parallelism: 2})
	require.NotNil(t, app.Cache)
	assert.Equal(t, 2, app.Maker.Settings().Parallelism)
	assert.Equal(t, 2, app.Maker.Settings().MaxIterations)

	require.NoError(t, app.Optimize(context.Background(), false))
	assert.Contains(t, out.String(), "## Optimization")
	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "test:"), k)
	}

	require.NoError(t, mr.Set("test:stale", "1"))
	require.NoError(t, app.Optimize(context.Background(), true))
	assert.False(t, mr.Exists("test:stale"))
	assert.NotEmpty(t, mr.Keys())
}

func TestOpen_CacheUnreachable(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	app, _ := openApp(t, quickParams(), Options{RedisAddr: addr})
	assert.Nil(t, app.Cache)

	err := app.Optimize(context.Background(), true)
	assert.ErrorContains(t, err, "--purge-cache")
}

func TestOpen_InvalidTTL(t *testing.T) {
	f := quickParams()
	f.Cache = dto.CacheSection{RedisAddr: "localhost:0", TTL: "soon"}
	_, err := Open(context.Background(), f, Options{}, logging.NewNop(), io.Discard)
	assert.Error(t, err)
}

func TestNewServer(t *testing.T) {
	handler, cleanup, err := NewServer(context.Background(), quickParams(), Options{}, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	srv := httptest.NewServer(handler)
	defer srv.Close()

	body := `{"reactor":{"center":[0,0,0],"radius":10,"height":20},"chimney":{"width":4,"height":5},"meshing":{"size":0.5,"square_ratio":0.5,"curvature_ratio":0.1}}`
	resp, err := http.Post(srv.URL+"/v1/mesh", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `reactor_builds_total{outcome="ok"} 1`)
	assert.Contains(t, string(metrics), "go_goroutines")
}

func TestNewServer_RequestTimeout(t *testing.T) {
	handler, cleanup, err := NewServer(context.Background(), quickParams(), Options{RequestTimeout: time.Nanosecond}, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/v1/mesh", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
}
