package ports

import (
	"context"
	"io"

	"github.com/aretw0/reactor/pkg/domain"
)

// GeometryKernel is the solid-modeling port.
//
// Shapes are handles owned by the session that created them. Sub-shape lists
// are returned in a stable order, and sub-shape IDs are 1-based positions in
// that order for the given shape type.
type GeometryKernel interface {
	// Vertex creates a point.
	Vertex(p domain.Vector3) (domain.Shape, error)
	// PointCoordinates returns the location of a vertex.
	PointCoordinates(vertex domain.Shape) (domain.Vector3, error)

	// Line creates a straight edge between two points.
	Line(from, to domain.Vector3) (domain.Shape, error)
	// Arc creates a circular edge from start through mid to end.
	Arc(start, mid, end domain.Vector3) (domain.Shape, error)
	// Circle creates a closed circular edge in the plane normal to normal.
	Circle(center, normal domain.Vector3, radius float64) (domain.Shape, error)
	// Wire assembles edges into a connected wire.
	Wire(edges []domain.Shape) (domain.Shape, error)
	// Face creates a planar face bounded by a closed wire.
	Face(wire domain.Shape) (domain.Shape, error)

	// Partition splits objects by the boundaries of tools.
	Partition(objects, tools []domain.Shape) (domain.Shape, error)
	// GlueFaces merges coincident faces within tolerance.
	GlueFaces(shape domain.Shape, tolerance float64) (domain.Shape, error)
	// GlueEdges merges coincident edges within tolerance.
	GlueEdges(shape domain.Shape, tolerance float64) (domain.Shape, error)

	// Rotate returns a copy of shape rotated by angle radians about axis through origin.
	Rotate(shape domain.Shape, origin, axis domain.Vector3, angle float64) (domain.Shape, error)
	// Extrude sweeps shape along vector, producing a prism.
	Extrude(shape domain.Shape, vector domain.Vector3) (domain.Shape, error)

	// SubShapes lists the sub-shapes of the given type in stable order.
	SubShapes(shape domain.Shape, typ domain.ShapeType) ([]domain.Shape, error)
	// SubShapeID returns the 1-based index of sub within main's sub-shapes of its type.
	SubShapeID(main, sub domain.Shape) (int, error)
	// EdgeNearPoint returns the edge of shape closest to p.
	EdgeNearPoint(shape domain.Shape, p domain.Vector3) (domain.Shape, error)
	// FaceNearPoint returns the face of shape closest to p.
	FaceNearPoint(shape domain.Shape, p domain.Vector3) (domain.Shape, error)
	// ShapesOnPlane returns the sub-shape IDs of the given type lying on the plane.
	ShapesOnPlane(shape domain.Shape, typ domain.ShapeType, point, normal domain.Vector3) ([]int, error)
	// Length is the length of an edge (or total edge length of a shape).
	Length(shape domain.Shape) (float64, error)
	// CheckShape reports an error when shape is not valid.
	CheckShape(shape domain.Shape) error

	// CreateGroup creates an empty named group of sub-shapes of main.
	CreateGroup(main domain.Shape, typ domain.ShapeType, name string) (domain.Shape, error)
	// UnionIDs adds sub-shapes by ID to a group.
	UnionIDs(group domain.Shape, ids []int) error
	// UnionList adds sub-shapes to a group.
	UnionList(group domain.Shape, shapes []domain.Shape) error
	// GroupMembers returns the sub-shapes of a group.
	GroupMembers(group domain.Shape) ([]domain.Shape, error)

	// Export writes shape in the given format.
	Export(shape domain.Shape, w io.Writer, format domain.ExportFormat) error
}

// MeshKernel is the meshing port.
type MeshKernel interface {
	// NewMesh creates an empty mesh bound to a solid (or a face compound).
	NewMesh(shape domain.Shape, name string) (domain.MeshHandle, error)
	// DefaultSegments sets the segment count of edges without any hypothesis.
	DefaultSegments(mesh domain.MeshHandle, count int) error
	// Segment assigns a 1-D hypothesis to an edge.
	Segment(mesh domain.MeshHandle, edge domain.Shape, hyp domain.SegmentHypothesis) error
	// Quadrangle enables the 2-D quadrilateral algorithm.
	Quadrangle(mesh domain.MeshHandle) error
	// Hexahedron enables the 3-D hexahedral algorithm.
	Hexahedron(mesh domain.MeshHandle) error
	// GroupOnGeometry tags the mesh elements lying on a geometry group.
	GroupOnGeometry(mesh domain.MeshHandle, group domain.Shape, name string) error
	// Compute builds the mesh. It may run for a long time.
	Compute(ctx context.Context, mesh domain.MeshHandle) error
	// AspectRatios returns one value per mesh element, 0 for elements without one.
	AspectRatios(mesh domain.MeshHandle) ([]float64, error)
	// ExportMesh writes a computed mesh in the given format.
	ExportMesh(mesh domain.MeshHandle, w io.Writer, format domain.ExportFormat) error
}

// KernelSession is one independent kernel document.
// A session must not be used by more than one goroutine at a time.
type KernelSession interface {
	GeometryKernel
	MeshKernel

	// ID identifies the session in logs.
	ID() string
	// Close releases the session's resources.
	Close() error
}

// SessionFactory creates independent kernel sessions.
type SessionFactory interface {
	NewSession(ctx context.Context) (KernelSession, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context) (KernelSession, error)

// NewSession calls f(ctx).
func (f SessionFactoryFunc) NewSession(ctx context.Context) (KernelSession, error) {
	return f(ctx)
}
