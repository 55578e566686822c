package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/reactor"
	httpadapter "github.com/aretw0/reactor/pkg/adapters/http"
	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/observability"
)

const scenarioA = `{
	"reactor": {"center": [0, 0, 0], "radius": 10, "height": 20},
	"chimney": {"width": 2, "height": 5},
	"meshing": {"size": 0.5, "square_ratio": 0.5, "curvature_ratio": 0.1}
}`

func newServer(t *testing.T, opts ...reactor.Option) (http.Handler, *observability.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	opts = append(opts, reactor.WithMetrics(metrics))
	newMaker := func(ctx context.Context) (httpadapter.Maker, error) {
		m, err := reactor.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return httpadapter.NewHandler(newMaker, reg, nil, "test"), metrics, reg
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h, _, _ := newServer(t)

	w := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(h, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}

func TestCreateGeometry(t *testing.T) {
	h, _, _ := newServer(t)

	w := do(h, http.MethodPost, "/v1/geometry", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp httpadapter.GeometryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BuildID)
	assert.InDelta(t, 5.0, resp.SquareWidth, 1e-12)
	assert.InDelta(t, 0.5, resp.MeshSize, 1e-12)
	assert.False(t, resp.Optimized)
}

func TestCreateGeometry_Errors(t *testing.T) {
	h, metrics, _ := newServer(t)

	w := do(h, http.MethodPost, "/v1/geometry", `{"chimney": {"width": 9}, "meshing": {"curvature_ratio": 0.1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp httpadapter.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.KindGeometryConstraint), resp.Kind)
	assert.Equal(t, string(domain.StageValidating), resp.Stage)

	w = do(h, http.MethodPost, "/v1/geometry", `{"meshing": {"square_ratio": 1.5}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/geometry", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/geometry", `{"reactor": {"radius": "wide"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/v1/geometry", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Builds.WithLabelValues("failed")))
}

func TestMesh(t *testing.T) {
	h, _, reg := newServer(t)

	w := do(h, http.MethodPost, "/v1/mesh", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp httpadapter.MeshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Positive(t, resp.Elements)
	assert.Greater(t, resp.MinAspect, 0.0)
	assert.GreaterOrEqual(t, resp.MaxAspect, resp.MinAspect)
	require.NotEmpty(t, resp.Seeds)

	var radial httpadapter.SeedResponse
	for _, s := range resp.Seeds {
		if s.Label == "radial" {
			radial = s
		}
	}
	assert.Equal(t, "uniform", radial.Kind)

	w = do(h, http.MethodPost, "/v1/mesh?geometric=true", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"kind":"geometric"`)

	w = do(h, http.MethodPost, "/v1/mesh?geometric=maybe", scenarioA)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reactor_mesh_compute_duration_seconds")
	assert.Contains(t, w.Body.String(), `reactor_builds_total{outcome="ok"} 2`)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestExportMesh(t *testing.T) {
	h, _, _ := newServer(t)

	w := do(h, http.MethodPost, "/v1/mesh/export", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reactor.yaml")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc)

	w = do(h, http.MethodPost, "/v1/mesh/export?format=stl", scenarioA)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.KindKernelOperation))
}

func TestOptimize(t *testing.T) {
	s := domain.DefaultOptimizerSettings()
	s.MaxIterations = 2
	s.MaxEvaluations = 12
	h, _, _ := newServer(t, reactor.WithOptimizerSettings(s))

	w := do(h, http.MethodPost, "/v1/optimize", scenarioA)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp httpadapter.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, s.SquareBounds.Contains(resp.SquareFraction))
	assert.True(t, s.CurvatureBounds.Contains(resp.CurvatureFraction))
	assert.Positive(t, resp.Evaluations)
}

func TestMakerUnavailable(t *testing.T) {
	h := httpadapter.NewHandler(func(context.Context) (httpadapter.Maker, error) {
		return nil, errors.New("kernel license expired")
	}, nil, nil, "test")

	w := do(h, http.MethodPost, "/v1/geometry", scenarioA)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "kernel license expired")

	w = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// stalledMaker runs an optimization that only ends when its context does.
type stalledMaker struct {
	httpadapter.Maker
}

func (stalledMaker) Optimize(ctx context.Context, _ domain.GeometryParams) domain.Result[domain.OptimizationOutcome] {
	<-ctx.Done()
	return domain.Fail[domain.OptimizationOutcome](domain.WrapError("Optimize", domain.KindOptimizationFailed, ctx.Err()))
}

func (stalledMaker) Close() error { return nil }

func TestRequestTimeout(t *testing.T) {
	h := httpadapter.NewHandler(func(context.Context) (httpadapter.Maker, error) {
		return stalledMaker{}, nil
	}, nil, nil, "test", httpadapter.WithRequestTimeout(20*time.Millisecond))

	w := do(h, http.MethodPost, "/v1/optimize", scenarioA)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())

	var resp httpadapter.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.KindOptimizationFailed), resp.Kind)
	assert.Contains(t, resp.Error, context.DeadlineExceeded.Error())

	// Routes outside /v1 carry no deadline.
	w = do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestTimeout_ExpiredBeforeBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := httpadapter.NewHandler(func(ctx context.Context) (httpadapter.Maker, error) {
		m, err := reactor.New(ctx)
		if err != nil {
			return nil, err
		}
		return m, nil
	}, reg, nil, "test", httpadapter.WithRequestTimeout(time.Nanosecond))

	w := do(h, http.MethodPost, "/v1/mesh", scenarioA)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code, w.Body.String())
}
