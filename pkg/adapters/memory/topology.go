package memory

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
)

// loopEdge is an edge used by a face loop, possibly against its own direction.
type loopEdge struct {
	edge uint64
	rev  bool
}

// lateral is the side face swept by a base edge.
type lateral struct {
	bottom, top uint64
	// left rises from the bottom edge's first vertex, right from its last.
	left, right uint64
	z0, z1      float64
}

type face struct {
	z    float64
	loop []loopEdge
	poly []r3.Vec
	lat  *lateral
}

// body is one prism of an extruded profile.
type body struct {
	base, top uint64
	laterals  []uint64
	z0, z1    float64
}

type group struct {
	main    uint64
	typ     domain.ShapeType
	name    string
	members []uint64
}

type shape struct {
	id  uint64
	typ domain.ShapeType

	pt     r3.Vec   // vertex
	crv    curve    // edge
	v0, v1 uint64   // edge vertices
	edges  []uint64 // wire
	face   *face    // face
	faces  []uint64 // planar compound
	bodies []*body  // extruded solid or compound
	grp    *group
}

func (s *Session) add(sh *shape) *shape {
	s.nextID++
	sh.id = s.nextID
	s.shapes[sh.id] = sh
	return sh
}

func (s *Session) get(h domain.Shape) (*shape, error) {
	sh, ok := s.shapes[h.ID]
	if !ok {
		return nil, fmt.Errorf("unknown shape %s", h)
	}
	return sh, nil
}

func (sh *shape) handle() domain.Shape {
	return domain.Shape{ID: sh.id, Type: sh.typ}
}

func (s *Session) newVertex(p r3.Vec) *shape {
	return s.add(&shape{typ: domain.ShapeVertex, pt: p})
}

func (s *Session) newEdge(c curve, v0, v1 uint64) *shape {
	return s.add(&shape{typ: domain.ShapeEdge, crv: c, v0: v0, v1: v1})
}

// newPlanarFace stores a CCW loop of edges as a horizontal face.
func (s *Session) newPlanarFace(loop []loopEdge) *shape {
	f := &face{loop: loop}
	f.poly = polygon(s.loopCurves(loop))
	f.z = f.poly[0].Z
	return s.add(&shape{typ: domain.ShapeFace, face: f})
}

func (s *Session) loopCurves(loop []loopEdge) []curve {
	cs := make([]curve, len(loop))
	for i, le := range loop {
		c := s.shapes[le.edge].crv
		if le.rev {
			c = c.reversed()
		}
		cs[i] = c
	}
	return cs
}

// is3D reports whether the shape is made of extruded bodies.
func (sh *shape) is3D() bool {
	return len(sh.bodies) > 0
}

// planarFaces returns the faces of a face or planar compound.
func (s *Session) planarFaces(sh *shape) ([]*shape, error) {
	switch {
	case sh.typ == domain.ShapeFace && sh.face.lat == nil:
		return []*shape{sh}, nil
	case sh.faces != nil:
		out := make([]*shape, len(sh.faces))
		for i, id := range sh.faces {
			out[i] = s.shapes[id]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not a planar face or face compound", sh.handle())
}

// collect gathers the ids of every sub-shape of the given type.
func (s *Session) collect(sh *shape, typ domain.ShapeType, seen map[uint64]bool, out *[]uint64) {
	if seen[sh.id] {
		return
	}
	seen[sh.id] = true
	if sh.typ == typ {
		*out = append(*out, sh.id)
	}
	visit := func(id uint64) { s.collect(s.shapes[id], typ, seen, out) }
	switch {
	case sh.grp != nil:
		for _, id := range sh.grp.members {
			visit(id)
		}
	case sh.typ == domain.ShapeEdge:
		visit(sh.v0)
		visit(sh.v1)
	case sh.typ == domain.ShapeWire:
		for _, id := range sh.edges {
			visit(id)
		}
	case sh.typ == domain.ShapeFace && sh.face.lat != nil:
		l := sh.face.lat
		for _, id := range []uint64{l.bottom, l.right, l.top, l.left} {
			visit(id)
		}
	case sh.typ == domain.ShapeFace:
		for _, le := range sh.face.loop {
			visit(le.edge)
		}
	case sh.is3D():
		for _, b := range sh.bodies {
			visit(b.base)
			visit(b.top)
			for _, id := range b.laterals {
				visit(id)
			}
		}
	default:
		for _, id := range sh.faces {
			visit(id)
		}
	}
}

// subShapes lists sub-shapes sorted by centre (x, then y, then z), then by id.
func (s *Session) subShapes(sh *shape, typ domain.ShapeType) []*shape {
	key := subKey{id: sh.id, typ: typ}
	if ids, ok := s.subCache[key]; ok {
		return s.lookup(ids)
	}
	var ids []uint64
	s.collect(sh, typ, map[uint64]bool{}, &ids)
	centres := make(map[uint64]r3.Vec, len(ids))
	for _, id := range ids {
		centres[id] = s.centre(s.shapes[id])
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := centres[ids[i]], centres[ids[j]]
		for _, d := range [][2]float64{{a.X, b.X}, {a.Y, b.Y}, {a.Z, b.Z}} {
			if math.Abs(d[0]-d[1]) > 1e-9 {
				return d[0] < d[1]
			}
		}
		return ids[i] < ids[j]
	})
	s.subCache[key] = ids
	return s.lookup(ids)
}

type subKey struct {
	id  uint64
	typ domain.ShapeType
}

func (s *Session) lookup(ids []uint64) []*shape {
	out := make([]*shape, len(ids))
	for i, id := range ids {
		out[i] = s.shapes[id]
	}
	return out
}

func (s *Session) centre(sh *shape) r3.Vec {
	switch sh.typ {
	case domain.ShapeVertex:
		return sh.pt
	case domain.ShapeEdge:
		return sh.crv.at(0.5)
	case domain.ShapeFace:
		if l := sh.face.lat; l != nil {
			p := s.shapes[l.bottom].crv.at(0.5)
			p.Z = (l.z0 + l.z1) / 2
			return p
		}
		return centroid(sh.face.poly)
	}
	var sum r3.Vec
	vs := s.subShapes(sh, domain.ShapeVertex)
	for _, v := range vs {
		sum = r3.Add(sum, v.pt)
	}
	if len(vs) == 0 {
		return sum
	}
	return r3.Scale(1/float64(len(vs)), sum)
}

// contains reports whether p lies inside or on a planar face, in the xy plane.
func (s *Session) contains(f *face, p r3.Vec) bool {
	if insidePolygon(f.poly, p) {
		return true
	}
	return s.boundaryDistance(f, p) <= onTol
}

func (s *Session) boundaryDistance(f *face, p r3.Vec) float64 {
	q := r3.Vec{X: p.X, Y: p.Y, Z: f.z}
	d := math.Inf(1)
	for _, c := range s.loopCurves(f.loop) {
		d = math.Min(d, c.distance(q))
	}
	return d
}

// faceDistance is the 3-D distance from p to a face.
func (s *Session) faceDistance(sh *shape, p r3.Vec) float64 {
	f := sh.face
	if l := f.lat; l != nil {
		c := s.shapes[l.bottom].crv
		q := r3.Vec{X: p.X, Y: p.Y, Z: c.z()}
		dxy := c.distance(q)
		dz := 0.0
		if p.Z < l.z0 {
			dz = l.z0 - p.Z
		} else if p.Z > l.z1 {
			dz = p.Z - l.z1
		}
		return math.Hypot(dxy, dz)
	}
	dz := math.Abs(p.Z - f.z)
	if insidePolygon(f.poly, p) {
		return dz
	}
	return math.Hypot(s.boundaryDistance(f, p), dz)
}

func (s *Session) faceArea(sh *shape) float64 {
	f := sh.face
	if l := f.lat; l != nil {
		return s.shapes[l.bottom].crv.length() * (l.z1 - l.z0)
	}
	return signedArea(f.poly)
}
