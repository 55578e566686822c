package engine

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// Group names as tagged in exported meshes.
const (
	GroupInlet  = "Inlet"
	GroupOutlet = "Outlet"
	GroupWall   = "Wall"
)

// createGroups classifies the boundary faces of reactor.
//
// Inlet is the base plane and outlet the chimney top. Wall is the reactor rim,
// the chimney sides and every face of the reactor roof except the one under
// the chimney.
func createGroups(k ports.GeometryKernel, reactor domain.Shape, dims domain.Dimensions) (domain.FaceGroups, error) {
	c := dims.Center
	at := func(x, y, z float64) domain.Vector3 { return r3.Add(c, domain.V3(x, y, z)) }

	inlet, err := planeGroup(k, reactor, GroupInlet, c)
	if err != nil {
		return domain.FaceGroups{}, err
	}
	outlet, err := planeGroup(k, reactor, GroupOutlet, at(0, 0, dims.TotalHeight()))
	if err != nil {
		return domain.FaceGroups{}, err
	}

	wall, err := k.CreateGroup(reactor, domain.ShapeFace, GroupWall)
	if err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}
	r, h := dims.Radius(), dims.Height()
	cw, ch := dims.ChimneyWidth()/2, h+dims.ChimneyHeight()/2
	var sides []domain.Shape
	for _, p := range []domain.Vector3{
		at(r, 0, h/2), at(-r, 0, h/2), at(0, r, h/2), at(0, -r, h/2),
		at(cw, 0, ch), at(-cw, 0, ch), at(0, cw, ch), at(0, -cw, ch),
	} {
		f, err := k.FaceNearPoint(reactor, p)
		if err != nil {
			return domain.FaceGroups{}, kernelErr("group.wall", err)
		}
		sides = append(sides, f)
	}
	if err := k.UnionList(wall, sides); err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}

	roof := at(0, 0, h)
	ids, err := k.ShapesOnPlane(reactor, domain.ShapeFace, roof, up)
	if err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}
	under, err := k.FaceNearPoint(reactor, roof)
	if err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}
	underID, err := k.SubShapeID(reactor, under)
	if err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}
	ids = slices.DeleteFunc(ids, func(id int) bool { return id == underID })
	if err := k.UnionIDs(wall, ids); err != nil {
		return domain.FaceGroups{}, kernelErr("group.wall", err)
	}

	groups := domain.FaceGroups{Inlet: inlet, Outlet: outlet, Wall: wall}
	for _, g := range []domain.Shape{inlet, outlet, wall} {
		members, err := k.GroupMembers(g)
		if err != nil {
			return domain.FaceGroups{}, kernelErr("group.check", err)
		}
		if len(members) == 0 {
			return domain.FaceGroups{}, domain.NewError("group.check", domain.KindKernelOperation, "group %s has no faces", g)
		}
	}
	return groups, nil
}

// planeGroup groups every face lying on the horizontal plane through point.
func planeGroup(k ports.GeometryKernel, main domain.Shape, name string, point domain.Vector3) (domain.Shape, error) {
	op := "group." + name
	g, err := k.CreateGroup(main, domain.ShapeFace, name)
	if err != nil {
		return domain.Shape{}, kernelErr(op, err)
	}
	ids, err := k.ShapesOnPlane(main, domain.ShapeFace, point, up)
	if err != nil {
		return domain.Shape{}, kernelErr(op, err)
	}
	if err := k.UnionIDs(g, ids); err != nil {
		return domain.Shape{}, kernelErr(op, err)
	}
	return g, nil
}
