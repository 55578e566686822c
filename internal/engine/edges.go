package engine

import (
	"math"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// findEdgeByMidpoint returns the first edge whose endpoint midpoint lies within
// tol of point on every axis. Edges are scanned in the given order, so the
// kernel's stable sub-shape order decides ties. Closed edges are skipped.
func findEdgeByMidpoint(k ports.GeometryKernel, edges []domain.Shape, point domain.Vector3, tol float64) (domain.Shape, error) {
	for _, edge := range edges {
		vertices, err := k.SubShapes(edge, domain.ShapeVertex)
		if err != nil {
			return domain.Shape{}, kernelErr("find_edge", err)
		}
		if len(vertices) < 2 {
			continue
		}
		a, err := k.PointCoordinates(vertices[0])
		if err != nil {
			return domain.Shape{}, kernelErr("find_edge", err)
		}
		b, err := k.PointCoordinates(vertices[1])
		if err != nil {
			return domain.Shape{}, kernelErr("find_edge", err)
		}
		if math.Abs((a.X+b.X)/2-point.X) < tol &&
			math.Abs((a.Y+b.Y)/2-point.Y) < tol &&
			math.Abs((a.Z+b.Z)/2-point.Z) < tol {
			return edge, nil
		}
	}
	return domain.Shape{}, domain.NewError("find_edge", domain.KindEdgeNotFound,
		"no edge with midpoint within %g of (%g, %g, %g)", tol, point.X, point.Y, point.Z)
}
