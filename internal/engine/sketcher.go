package engine

import (
	"math"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// axisSnap is the threshold below which a direction cosine is treated as zero.
const axisSnap = 1e-10

// Sketcher draws planar profiles in the horizontal plane z = Elevation.
type Sketcher struct {
	kernel    ports.GeometryKernel
	Elevation float64
}

// NewSketcher creates a sketcher drawing at height z.
func NewSketcher(kernel ports.GeometryKernel, z float64) *Sketcher {
	return &Sketcher{kernel: kernel, Elevation: z}
}

func (s *Sketcher) at(p domain.Vector2) domain.Vector3 {
	return domain.V3(p.X, p.Y, s.Elevation)
}

// Disk is a circular face.
func (s *Sketcher) Disk(center domain.Vector2, radius float64) (domain.Shape, error) {
	if !(radius > 0) {
		return domain.Shape{}, domain.NewError("sketch.disk", domain.KindInvalidParameter, "radius must be positive, got %g", radius)
	}
	circle, err := s.kernel.Circle(s.at(center), domain.V3(0, 0, 1), radius)
	if err != nil {
		return domain.Shape{}, kernelErr("sketch.disk", err)
	}
	return s.face("sketch.disk", []domain.Shape{circle})
}

// direction returns (cos, sin) of angle with near-zero components snapped to 0.
func direction(angle float64) (float64, float64) {
	c, sn := math.Cos(angle), math.Sin(angle)
	if math.Abs(c) < axisSnap {
		c = 0
	}
	if math.Abs(sn) < axisSnap {
		sn = 0
	}
	return c, sn
}

// RadialLine is a segment starting at from, heading along angle for length.
// A negative length draws the segment backwards.
func (s *Sketcher) RadialLine(from domain.Vector2, angle, length float64) (domain.Shape, error) {
	c, sn := direction(angle)
	to := domain.V2(from.X+length*c, from.Y+length*sn)
	line, err := s.kernel.Line(s.at(from), s.at(to))
	if err != nil {
		return domain.Shape{}, kernelErr("sketch.line", err)
	}
	return line, nil
}

// Rectangle is an axis-aligned rectangular face.
func (s *Sketcher) Rectangle(center, size domain.Vector2) (domain.Shape, error) {
	if !(size.X > 0) || !(size.Y > 0) {
		return domain.Shape{}, domain.NewError("sketch.rectangle", domain.KindInvalidParameter, "size must be positive, got %v", size)
	}
	left, right := center.X-size.X/2, center.X+size.X/2
	top, bottom := center.Y+size.Y/2, center.Y-size.Y/2

	var lines []domain.Shape
	for _, l := range []struct {
		from   domain.Vector2
		angle  float64
		length float64
	}{
		{domain.V2(left, top), 0, size.X},
		{domain.V2(left, bottom), 0, size.X},
		{domain.V2(left, top), -math.Pi / 2, size.Y},
		{domain.V2(right, top), -math.Pi / 2, size.Y},
	} {
		line, err := s.RadialLine(l.from, l.angle, l.length)
		if err != nil {
			return domain.Shape{}, err
		}
		lines = append(lines, line)
	}
	return s.face("sketch.rectangle", lines)
}

// CurvedSquare is a square whose sides bulge outward as circular arcs. Each
// arc passes through two corners and a point pushed out from the side's
// midpoint by curvature × size/2.
func (s *Sketcher) CurvedSquare(center, size domain.Vector2, curvature float64) (domain.Shape, error) {
	const op = "sketch.curved_square"
	if curvature == 0 {
		return domain.Shape{}, domain.NewError(op, domain.KindInvalidParameter, "curvature fraction must be non-zero")
	}
	if math.IsNaN(curvature) || math.IsInf(curvature, 0) {
		return domain.Shape{}, domain.NewError(op, domain.KindInvalidParameter, "curvature fraction must be finite, got %g", curvature)
	}
	if !(size.X > 0) || !(size.Y > 0) {
		return domain.Shape{}, domain.NewError(op, domain.KindInvalidParameter, "size must be positive, got %v", size)
	}

	hx, hy := size.X/2, size.Y/2
	dx, dy := curvature*hx, curvature*hy
	topLeft := s.at(domain.V2(center.X-hx, center.Y+hy))
	topRight := s.at(domain.V2(center.X+hx, center.Y+hy))
	bottomLeft := s.at(domain.V2(center.X-hx, center.Y-hy))
	bottomRight := s.at(domain.V2(center.X+hx, center.Y-hy))

	sides := [][3]domain.Vector3{
		{topRight, s.at(domain.V2(center.X+hx+dx, center.Y)), bottomRight},
		{topLeft, s.at(domain.V2(center.X-hx-dx, center.Y)), bottomLeft},
		{topLeft, s.at(domain.V2(center.X, center.Y+hy+dy)), topRight},
		{bottomLeft, s.at(domain.V2(center.X, center.Y-hy-dy)), bottomRight},
	}
	arcs := make([]domain.Shape, 0, len(sides))
	for _, p := range sides {
		arc, err := s.kernel.Arc(p[0], p[1], p[2])
		if err != nil {
			return domain.Shape{}, kernelErr(op, err)
		}
		arcs = append(arcs, arc)
	}
	return s.face(op, arcs)
}

func (s *Sketcher) face(op string, edges []domain.Shape) (domain.Shape, error) {
	wire, err := s.kernel.Wire(edges)
	if err != nil {
		return domain.Shape{}, kernelErr(op, err)
	}
	face, err := s.kernel.Face(wire)
	if err != nil {
		return domain.Shape{}, kernelErr(op, err)
	}
	return face, nil
}
