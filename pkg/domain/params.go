package domain

import "math"

// GeometryParams are the caller-supplied inputs of a geometry build.
type GeometryParams struct {
	// Center is the base center of the reactor.
	Center Vector3
	// Reactor holds the reactor radius (X) and height (Y).
	Reactor Vector2
	// Chimney holds the chimney width (X) and height (Y).
	Chimney Vector2
	// PerSquare is the central square side as a fraction of the reactor radius.
	PerSquare float64
	// CurvatureFraction is the outward bulge of the square edges as a fraction of half the side.
	CurvatureFraction float64
	// MeshSize is the requested characteristic element length.
	MeshSize float64
	// Optimize replaces PerSquare and CurvatureFraction by an optimizer search and
	// switches the radial transition edge to geometric-progression spacing.
	Optimize bool
}

// DefaultGeometryParams mirrors the defaults offered by the interactive front end.
func DefaultGeometryParams() GeometryParams {
	return GeometryParams{
		Center:            V3(0, 0, 0),
		Reactor:           V2(10, 20),
		Chimney:           V2(2, 5),
		PerSquare:         0.5,
		CurvatureFraction: 0.5,
		MeshSize:          0.5,
	}
}

// Bounds is a closed interval.
type Bounds struct {
	Min float64
	Max float64
}

// Valid reports whether the interval is finite and non-empty.
func (b Bounds) Valid() bool {
	return finite(b.Min) && finite(b.Max) && b.Min < b.Max
}

// Contains reports whether v lies in the interval.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Clamp limits v to the interval.
func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}

// OptimizerSettings tune the square/curvature search.
type OptimizerSettings struct {
	// Start is the initial (square fraction, curvature fraction) pair.
	Start Vector2
	// Fallback is used when the search fails.
	Fallback        Vector2
	SquareBounds    Bounds
	CurvatureBounds Bounds
	// MaxIterations caps the quasi-Newton major iterations.
	MaxIterations int
	// MaxEvaluations caps objective evaluations (0 = unlimited).
	MaxEvaluations int
	// Penalty is returned by a trial whose geometry or mesh could not be built.
	Penalty float64
	// Step is the finite-difference step in the transformed search space.
	FiniteDifferenceStep float64
	// Parallelism is the number of kernel sessions evaluating trials concurrently.
	Parallelism int
}

// DefaultOptimizerSettings returns the reference search configuration.
func DefaultOptimizerSettings() OptimizerSettings {
	return OptimizerSettings{
		Start:                V2(0.8, 0.2),
		Fallback:             V2(0.99, 0.1),
		SquareBounds:         Bounds{Min: 0.05, Max: 0.99},
		CurvatureBounds:      Bounds{Min: 0.05, Max: 0.8},
		MaxIterations:        25,
		MaxEvaluations:       200,
		Penalty:              1e6,
		FiniteDifferenceStep: 1e-2,
		Parallelism:          1,
	}
}

// OptimizationOutcome is the result of a successful search.
type OptimizationOutcome struct {
	SquareFraction    float64
	CurvatureFraction float64
	// Objective is max(aspect ratio) - 1 at the returned pair.
	Objective   float64
	Evaluations int
	Iterations  int
	Status      string
}
