package domain

import (
	"fmt"
	"math"
	"time"
)

// EdgeSeed records one segment assignment made while planning a mesh.
type EdgeSeed struct {
	// Label names the reference the edge was located from, e.g. "chimney-x" or "radial".
	Label      string
	Edge       Shape
	Length     float64
	Hypothesis SegmentHypothesis
}

// ReactorMesh is a computed mesh bound to a geometry. It is immutable.
type ReactorMesh struct {
	handle   MeshHandle
	geometry *ReactorGeometry
	seeds    []EdgeSeed
	elapsed  time.Duration
}

// NewReactorMesh freezes a mesh record. The seed slice is copied.
func NewReactorMesh(handle MeshHandle, geometry *ReactorGeometry, seeds []EdgeSeed, elapsed time.Duration) *ReactorMesh {
	cp := make([]EdgeSeed, len(seeds))
	copy(cp, seeds)
	return &ReactorMesh{handle: handle, geometry: geometry, seeds: cp, elapsed: elapsed}
}

func (m *ReactorMesh) Handle() MeshHandle         { return m.handle }
func (m *ReactorMesh) Geometry() *ReactorGeometry { return m.geometry }
func (m *ReactorMesh) Dimensions() Dimensions     { return m.geometry.Dimensions() }
func (m *ReactorMesh) ComputeTime() time.Duration { return m.elapsed }

// Seeds returns a copy of the edge assignments used to build the mesh.
func (m *ReactorMesh) Seeds() []EdgeSeed {
	cp := make([]EdgeSeed, len(m.seeds))
	copy(cp, m.seeds)
	return cp
}

// AspectStats summarises a set of element aspect ratios.
type AspectStats struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
}

// Objective is the optimisation target: the worst ratio minus the ideal 1.
func (s AspectStats) Objective() float64 {
	return s.Max - 1
}

func (s AspectStats) String() string {
	return fmt.Sprintf("n=%d min=%.4f max=%.4f mean=%.4f", s.Count, s.Min, s.Max, s.Mean)
}

// Summarize computes statistics over ratios, ignoring non-positive and
// non-finite entries.
func Summarize(ratios []float64) AspectStats {
	var s AspectStats
	sum := 0.0
	for _, r := range ratios {
		if !(r > 0) || math.IsInf(r, 0) {
			continue
		}
		if s.Count == 0 || r < s.Min {
			s.Min = r
		}
		if r > s.Max {
			s.Max = r
		}
		sum += r
		s.Count++
	}
	if s.Count > 0 {
		s.Mean = sum / float64(s.Count)
	}
	return s
}
