package domain

import "fmt"

// ShapeType classifies kernel objects and sub-shapes.
type ShapeType int

const (
	ShapeVertex ShapeType = iota + 1
	ShapeEdge
	ShapeWire
	ShapeFace
	ShapeShell
	ShapeSolid
	ShapeCompound
)

func (t ShapeType) String() string {
	switch t {
	case ShapeVertex:
		return "vertex"
	case ShapeEdge:
		return "edge"
	case ShapeWire:
		return "wire"
	case ShapeFace:
		return "face"
	case ShapeShell:
		return "shell"
	case ShapeSolid:
		return "solid"
	case ShapeCompound:
		return "compound"
	default:
		return fmt.Sprintf("shape(%d)", int(t))
	}
}

// Shape is an opaque handle to an object owned by a kernel session.
// The zero value references nothing.
type Shape struct {
	ID   uint64
	Type ShapeType
}

// IsZero reports whether the handle is unset.
func (s Shape) IsZero() bool {
	return s.ID == 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%s#%d", s.Type, s.ID)
}

// MeshHandle is an opaque handle to a mesh owned by a meshing kernel session.
type MeshHandle struct {
	ID uint64
}

// IsZero reports whether the handle is unset.
func (m MeshHandle) IsZero() bool {
	return m.ID == 0
}

// SegmentKind selects the 1-D discretization rule of an edge.
type SegmentKind int

const (
	// SegmentsUniform splits an edge into Count equal segments.
	SegmentsUniform SegmentKind = iota + 1
	// SegmentsGeometric grows segment lengths by Ratio starting from Start.
	SegmentsGeometric
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentsUniform:
		return "uniform"
	case SegmentsGeometric:
		return "geometric"
	}
	return "unknown"
}

// SegmentHypothesis is a 1-D meshing assignment for an edge.
type SegmentHypothesis struct {
	Kind  SegmentKind
	Count int
	Start float64
	Ratio float64
	// Propagate applies the assignment to every topologically linked edge.
	Propagate bool
}

// UniformSegments returns a fixed segment-count hypothesis.
func UniformSegments(count int, propagate bool) SegmentHypothesis {
	return SegmentHypothesis{Kind: SegmentsUniform, Count: count, Propagate: propagate}
}

// GeometricSegments returns a geometric-progression hypothesis.
func GeometricSegments(start, ratio float64, propagate bool) SegmentHypothesis {
	return SegmentHypothesis{Kind: SegmentsGeometric, Start: start, Ratio: ratio, Propagate: propagate}
}

// Validate checks the hypothesis is usable by a meshing kernel.
func (h SegmentHypothesis) Validate() error {
	switch h.Kind {
	case SegmentsUniform:
		if h.Count < 1 {
			return fmt.Errorf("segment count must be positive, got %d", h.Count)
		}
	case SegmentsGeometric:
		if !(h.Start > 0) || !finite(h.Start) {
			return fmt.Errorf("geometric start length must be positive, got %g", h.Start)
		}
		if !(h.Ratio > 0) || !finite(h.Ratio) {
			return fmt.Errorf("geometric ratio must be positive, got %g", h.Ratio)
		}
	default:
		return fmt.Errorf("unknown segment kind %d", h.Kind)
	}
	return nil
}
