package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Maker defines the subset of the reactor facade served over HTTP.
type Maker interface {
	CreateGeometry(ctx context.Context, p domain.GeometryParams) domain.Result[*domain.ReactorGeometry]
	Mesh(ctx context.Context, g *domain.ReactorGeometry, optimize bool) domain.Result[*domain.ReactorMesh]
	Stats(ctx context.Context, m *domain.ReactorMesh) domain.Result[domain.AspectStats]
	ExportMesh(m *domain.ReactorMesh, w io.Writer, format domain.ExportFormat) error
	Optimize(ctx context.Context, p domain.GeometryParams) domain.Result[domain.OptimizationOutcome]
	Close() error
}

// MakerFunc opens a Maker for one request. Every request builds in its own
// kernel session, so requests never share geometry.
type MakerFunc func(ctx context.Context) (Maker, error)

// Server serves reactor builds.
type Server struct {
	New      MakerFunc
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Version  string
	// Timeout bounds every /v1 request. Zero means no deadline.
	Timeout time.Duration
}

// Option configures the handler built by NewHandler.
type Option func(*Server)

// WithRequestTimeout gives every /v1 request a deadline. A request that runs
// out of time is answered with 504 Gateway Timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.Timeout = d
	}
}

// NewHandler creates a new HTTP handler for the maker.
// A nil gatherer disables /metrics.
func NewHandler(newMaker MakerFunc, gatherer prometheus.Gatherer, logger *slog.Logger, version string, opts ...Option) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Server{New: newMaker, Gatherer: gatherer, Logger: logger, Version: version}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if s.Timeout > 0 {
			r.Use(middleware.Timeout(s.Timeout))
		}
		r.Post("/geometry", s.CreateGeometry)
		r.Post("/mesh", s.Mesh)
		r.Post("/mesh/export", s.ExportMesh)
		r.Post("/optimize", s.Optimize)
	})
	return r
}

// GeometryResponse describes a finished geometry.
type GeometryResponse struct {
	BuildID           string  `json:"build_id"`
	SquareWidth       float64 `json:"square_width"`
	MeshSize          float64 `json:"mesh_size"`
	SquareFraction    float64 `json:"square_fraction"`
	CurvatureFraction float64 `json:"curvature_fraction"`
	Optimized         bool    `json:"optimized"`
}

// MeshResponse describes a computed mesh.
type MeshResponse struct {
	Geometry    GeometryResponse `json:"geometry"`
	Elements    int              `json:"elements"`
	MinAspect   float64          `json:"min_aspect_ratio"`
	MaxAspect   float64          `json:"max_aspect_ratio"`
	MeanAspect  float64          `json:"mean_aspect_ratio"`
	ComputeTime string           `json:"compute_time"`
	Seeds       []SeedResponse   `json:"seeds"`
}

// SeedResponse is one edge segment assignment.
type SeedResponse struct {
	Label  string  `json:"label"`
	Length float64 `json:"length"`
	Kind   string  `json:"kind"`
	Count  int     `json:"count,omitempty"`
	Start  float64 `json:"start,omitempty"`
	Ratio  float64 `json:"ratio,omitempty"`
}

// OptimizeResponse is the outcome of a fraction search.
type OptimizeResponse struct {
	SquareFraction    float64 `json:"square_fraction"`
	CurvatureFraction float64 `json:"curvature_fraction"`
	Objective         float64 `json:"objective"`
	Evaluations       int     `json:"evaluations"`
	Iterations        int     `json:"iterations"`
	Status            string  `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func geometryResponse(g *domain.ReactorGeometry) GeometryResponse {
	p := g.Profile()
	return GeometryResponse{
		BuildID:           g.BuildID(),
		SquareWidth:       p.SquareWidth,
		MeshSize:          p.MeshSize,
		SquareFraction:    p.SquareFraction,
		CurvatureFraction: p.CurvatureFraction,
		Optimized:         p.Optimized,
	}
}

func seedResponses(seeds []domain.EdgeSeed) []SeedResponse {
	out := make([]SeedResponse, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, SeedResponse{
			Label:  s.Label,
			Length: s.Length,
			Kind:   s.Hypothesis.Kind.String(),
			Count:  s.Hypothesis.Count,
			Start:  s.Hypothesis.Start,
			Ratio:  s.Hypothesis.Ratio,
		})
	}
	return out
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	// An exhausted deadline surfaces through whatever stage was running.
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.KindInvalidParameter):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.KindGeometryConstraint):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.KindOptimizationFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Kind = string(de.Kind)
		resp.Stage = string(de.Stage)
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.Logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", err)
	s.writeJSON(w, status, resp)
}

// decodeParams reads a parameter document. Missing keys keep their defaults.
func (s *Server) decodeParams(r *http.Request) (domain.GeometryParams, error) {
	raw := map[string]any{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return domain.GeometryParams{}, domain.WrapError("decode_request", domain.KindInvalidParameter, err)
	}
	f, unused, err := dto.Decode(raw)
	if err != nil {
		return domain.GeometryParams{}, err
	}
	if len(unused) > 0 {
		s.Logger.Debug("ignored request keys", "keys", unused)
	}
	return f.Params(), nil
}

// open decodes the parameters and opens a Maker for the request.
func (s *Server) open(w http.ResponseWriter, r *http.Request) (Maker, domain.GeometryParams, bool) {
	p, err := s.decodeParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, p, false
	}
	m, err := s.New(r.Context())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to open maker: %w", err))
		return nil, p, false
	}
	return m, p, true
}

func (s *Server) closeMaker(m Maker) {
	if err := m.Close(); err != nil {
		s.Logger.Warn("failed to close maker", "error", err)
	}
}

// buildMesh creates the geometry and meshes it. The radial edges use
// geometric spacing when the build is optimized or ?geometric=true is set.
func (s *Server) buildMesh(r *http.Request, m Maker, p domain.GeometryParams) (*domain.ReactorMesh, error) {
	geometric := p.Optimize
	if v := r.URL.Query().Get("geometric"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, domain.NewError("decode_request", domain.KindInvalidParameter, "invalid geometric flag %q", v)
		}
		geometric = b
	}
	g, err := m.CreateGeometry(r.Context(), p).Unwrap()
	if err != nil {
		return nil, err
	}
	return m.Mesh(r.Context(), g, geometric).Unwrap()
}

// CreateGeometry handles the POST /v1/geometry request.
func (s *Server) CreateGeometry(w http.ResponseWriter, r *http.Request) {
	m, p, ok := s.open(w, r)
	if !ok {
		return
	}
	defer s.closeMaker(m)

	g, err := m.CreateGeometry(r.Context(), p).Unwrap()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, geometryResponse(g))
}

// Mesh handles the POST /v1/mesh request.
func (s *Server) Mesh(w http.ResponseWriter, r *http.Request) {
	m, p, ok := s.open(w, r)
	if !ok {
		return
	}
	defer s.closeMaker(m)

	mesh, err := s.buildMesh(r, m, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := m.Stats(r.Context(), mesh).Unwrap()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MeshResponse{
		Geometry:    geometryResponse(mesh.Geometry()),
		Elements:    stats.Count,
		MinAspect:   stats.Min,
		MaxAspect:   stats.Max,
		MeanAspect:  stats.Mean,
		ComputeTime: mesh.ComputeTime().Round(time.Microsecond).String(),
		Seeds:       seedResponses(mesh.Seeds()),
	})
}

// ExportMesh handles the POST /v1/mesh/export?format= request.
func (s *Server) ExportMesh(w http.ResponseWriter, r *http.Request) {
	format := domain.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = domain.FormatYAML
	}

	m, p, ok := s.open(w, r)
	if !ok {
		return
	}
	defer s.closeMaker(m)

	mesh, err := s.buildMesh(r, m, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Buffer so that a failed export still yields a clean error response.
	var buf bytes.Buffer
	if err := m.ExportMesh(mesh, &buf, format); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "reactor."+string(format)))
	if _, err := buf.WriteTo(w); err != nil {
		s.Logger.Warn("export write failed", "error", err)
	}
}

// Optimize handles the POST /v1/optimize request.
func (s *Server) Optimize(w http.ResponseWriter, r *http.Request) {
	m, p, ok := s.open(w, r)
	if !ok {
		return
	}
	defer s.closeMaker(m)

	out, err := m.Optimize(r.Context(), p).Unwrap()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, OptimizeResponse{
		SquareFraction:    out.SquareFraction,
		CurvatureFraction: out.CurvatureFraction,
		Objective:         out.Objective,
		Evaluations:       out.Evaluations,
		Iterations:        out.Iterations,
		Status:            out.Status,
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "reactor-http",
		"version": s.Version,
	})
}
