package memory

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// Session is an in-process geometry and meshing kernel.
//
// It supports the subset of solid modeling the reactor needs: horizontal
// planar profiles made of segments and circular arcs, planar partitions,
// rotations about vertical axes and vertical prism extrusion.
// A Session is not safe for concurrent use.
type Session struct {
	id       string
	nextID   uint64
	shapes   map[uint64]*shape
	meshes   map[uint64]*mesh
	subCache map[subKey][]uint64
	closed   bool
}

var _ ports.KernelSession = (*Session)(nil)

var errClosed = errors.New("session closed")

// NewSession creates an empty kernel session.
func NewSession() *Session {
	return &Session{
		id:       uuid.NewString(),
		shapes:   make(map[uint64]*shape),
		meshes:   make(map[uint64]*mesh),
		subCache: make(map[subKey][]uint64),
	}
}

// NewFactory returns a SessionFactory producing independent memory sessions.
func NewFactory() ports.SessionFactory {
	return ports.SessionFactoryFunc(func(ctx context.Context) (ports.KernelSession, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSession(), nil
	})
}

func (s *Session) ID() string { return s.id }

// Close drops every shape and mesh of the session.
func (s *Session) Close() error {
	s.shapes = map[uint64]*shape{}
	s.meshes = map[uint64]*mesh{}
	s.subCache = map[subKey][]uint64{}
	s.closed = true
	return nil
}

// ShapeCount is the number of live shapes, including intermediate ones.
func (s *Session) ShapeCount() int {
	return len(s.shapes)
}

func (s *Session) check() error {
	if s.closed {
		return errClosed
	}
	return nil
}

func verticalAxis(v r3.Vec) bool {
	n := r3.Norm(v)
	return n > 0 && math.Hypot(v.X, v.Y) <= 1e-9*n
}

func (s *Session) Vertex(p domain.Vector3) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	if !domain.Finite3(p) {
		return domain.Shape{}, fmt.Errorf("vertex: non-finite point %v", p)
	}
	return s.newVertex(p).handle(), nil
}

func (s *Session) PointCoordinates(v domain.Shape) (domain.Vector3, error) {
	sh, err := s.get(v)
	if err != nil {
		return domain.Vector3{}, err
	}
	if sh.typ != domain.ShapeVertex {
		return domain.Vector3{}, fmt.Errorf("point coordinates: %s is not a vertex", v)
	}
	return sh.pt, nil
}

func (s *Session) Line(from, to domain.Vector3) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	if !domain.Finite3(from) || !domain.Finite3(to) {
		return domain.Shape{}, errors.New("line: non-finite end point")
	}
	if r3.Norm(r3.Sub(to, from)) <= mergeTol {
		return domain.Shape{}, errors.New("line: coincident end points")
	}
	a, b := s.newVertex(from), s.newVertex(to)
	return s.newEdge(newSegment(from, to), a.id, b.id).handle(), nil
}

func (s *Session) Arc(start, mid, end domain.Vector3) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	c, err := arcThrough(start, mid, end)
	if err != nil {
		return domain.Shape{}, fmt.Errorf("arc: %w", err)
	}
	a, b := s.newVertex(start), s.newVertex(end)
	return s.newEdge(c, a.id, b.id).handle(), nil
}

func (s *Session) Circle(center, normal domain.Vector3, radius float64) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	if !verticalAxis(normal) {
		return domain.Shape{}, errors.New("circle: only horizontal circles are supported")
	}
	if !(radius > mergeTol) {
		return domain.Shape{}, fmt.Errorf("circle: invalid radius %g", radius)
	}
	c := newCircle(center, radius, normal.Z > 0)
	v := s.newVertex(c.start())
	return s.newEdge(c, v.id, v.id).handle(), nil
}

func (s *Session) Wire(edges []domain.Shape) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	var curves []curve
	for _, h := range edges {
		sh, err := s.get(h)
		if err != nil {
			return domain.Shape{}, err
		}
		for _, e := range s.subShapes(sh, domain.ShapeEdge) {
			curves = append(curves, e.crv)
		}
	}
	if len(curves) == 0 {
		return domain.Shape{}, errors.New("wire: no edges")
	}

	chain := []curve{curves[0]}
	rest := curves[1:]
	for len(rest) > 0 {
		tail := chain[len(chain)-1].end()
		found := -1
		for i, c := range rest {
			switch {
			case r3.Norm(r3.Sub(c.start(), tail)) <= mergeTol:
				found = i
			case r3.Norm(r3.Sub(c.end(), tail)) <= mergeTol:
				rest[i] = c.reversed()
				found = i
			}
			if found >= 0 {
				break
			}
		}
		if found < 0 {
			return domain.Shape{}, errors.New("wire: edges are not connected")
		}
		chain = append(chain, rest[found])
		rest = append(rest[:found], rest[found+1:]...)
	}

	pool := &pointPool{}
	ids := map[int]uint64{}
	vertex := func(p r3.Vec) uint64 {
		i := pool.index(p)
		if id, ok := ids[i]; ok {
			return id
		}
		ids[i] = s.newVertex(p).id
		return ids[i]
	}
	w := &shape{typ: domain.ShapeWire}
	for _, c := range chain {
		w.edges = append(w.edges, s.newEdge(c, vertex(c.start()), vertex(c.end())).id)
	}
	return s.add(w).handle(), nil
}

// wireClosed reports whether the last edge of w ends where the first starts.
func (s *Session) wireClosed(w *shape) bool {
	first := s.shapes[w.edges[0]]
	last := s.shapes[w.edges[len(w.edges)-1]]
	return first.v0 == last.v1
}

func (s *Session) Face(wire domain.Shape) (domain.Shape, error) {
	w, err := s.get(wire)
	if err != nil {
		return domain.Shape{}, err
	}
	if w.typ != domain.ShapeWire {
		return domain.Shape{}, fmt.Errorf("face: %s is not a wire", wire)
	}
	if !s.wireClosed(w) {
		return domain.Shape{}, errors.New("face: wire is not closed")
	}
	z := s.shapes[w.edges[0]].crv.start().Z
	loop := make([]loopEdge, len(w.edges))
	for i, id := range w.edges {
		c := s.shapes[id].crv
		if !c.horizontal() || math.Abs(c.z()-z) > mergeTol {
			return domain.Shape{}, errors.New("face: only horizontal planar wires are supported")
		}
		loop[i] = loopEdge{edge: id}
	}
	area := signedArea(polygon(s.loopCurves(loop)))
	if math.Abs(area) <= 1e-12 {
		return domain.Shape{}, errors.New("face: wire encloses no area")
	}
	if area < 0 {
		rev := make([]loopEdge, len(loop))
		for i, le := range loop {
			rev[len(loop)-1-i] = loopEdge{edge: le.edge, rev: true}
		}
		loop = rev
	}
	return s.newPlanarFace(loop).handle(), nil
}

func (s *Session) Partition(objects, tools []domain.Shape) (domain.Shape, error) {
	if err := s.check(); err != nil {
		return domain.Shape{}, err
	}
	if len(objects) == 0 {
		return domain.Shape{}, errors.New("partition: no objects")
	}
	objs := make([]*shape, 0, len(objects))
	solid := false
	for _, h := range objects {
		sh, err := s.get(h)
		if err != nil {
			return domain.Shape{}, err
		}
		solid = solid || sh.is3D()
		objs = append(objs, sh)
	}
	tls := make([]*shape, 0, len(tools))
	for _, h := range tools {
		sh, err := s.get(h)
		if err != nil {
			return domain.Shape{}, err
		}
		tls = append(tls, sh)
	}
	if solid {
		return s.partitionSolids(append(objs, tls...))
	}
	return s.partitionPlanar(objs, tls)
}

func (s *Session) partitionPlanar(objs, tools []*shape) (domain.Shape, error) {
	var region []*face
	seen := map[uint64]bool{}
	var curves []curve
	addEdges := func(sh *shape) {
		for _, e := range s.subShapes(sh, domain.ShapeEdge) {
			if !seen[e.id] {
				seen[e.id] = true
				curves = append(curves, e.crv)
			}
		}
	}
	for _, o := range objs {
		faces, err := s.planarFaces(o)
		if err != nil {
			return domain.Shape{}, fmt.Errorf("partition: %w", err)
		}
		for _, f := range faces {
			region = append(region, f.face)
		}
		addEdges(o)
	}
	for _, t := range tools {
		if t.is3D() {
			return domain.Shape{}, errors.New("partition: cannot cut a profile with a solid")
		}
		addEdges(t)
	}

	z := region[0].z
	for _, c := range curves {
		if !c.horizontal() || math.Abs(c.z()-z) > mergeTol {
			return domain.Shape{}, errors.New("partition: tools must lie in the plane of the objects")
		}
	}

	arr, err := arrange(curves, func(p r3.Vec) bool {
		for _, f := range region {
			if s.contains(f, p) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return domain.Shape{}, fmt.Errorf("partition: %w", err)
	}

	vertices := make(map[int]uint64)
	vertex := func(i int) uint64 {
		if id, ok := vertices[i]; ok {
			return id
		}
		vertices[i] = s.newVertex(arr.points[i]).id
		return vertices[i]
	}
	edges := make([]uint64, len(arr.pieces))
	for i, p := range arr.pieces {
		edges[i] = s.newEdge(p.crv, vertex(p.u), vertex(p.v)).id
	}
	out := &shape{typ: domain.ShapeCompound}
	for _, hs := range arr.faces {
		loop := make([]loopEdge, len(hs))
		for i, h := range hs {
			loop[i] = loopEdge{edge: edges[h/2], rev: h%2 == 1}
		}
		out.faces = append(out.faces, s.newPlanarFace(loop).id)
	}
	return s.add(out).handle(), nil
}

func (s *Session) partitionSolids(parts []*shape) (domain.Shape, error) {
	var bodies []*body
	for _, p := range parts {
		if !p.is3D() {
			return domain.Shape{}, fmt.Errorf("partition: %s mixes profiles and solids", p.handle())
		}
		// Bodies of one part are already a partition; only check against earlier parts.
		earlier := len(bodies)
	next:
		for _, b := range p.bodies {
			for _, o := range bodies[:earlier] {
				if o == b {
					continue next
				}
				if err := s.overlap(o, b); err != nil {
					return domain.Shape{}, fmt.Errorf("partition: %w", err)
				}
			}
			bodies = append(bodies, b)
		}
	}
	out := &shape{typ: domain.ShapeCompound, bodies: bodies}
	return s.add(out).handle(), nil
}

// overlap rejects bodies sharing volume, which the memory kernel cannot split.
func (s *Session) overlap(a, b *body) error {
	lo := math.Max(a.z0, b.z0)
	hi := math.Min(a.z1, b.z1)
	if hi-lo <= mergeTol {
		return nil
	}
	if a.base == b.base || polygonsOverlap(s.shapes[a.base].face.poly, s.shapes[b.base].face.poly) {
		return errors.New("overlapping solids are not supported")
	}
	return nil
}

func (s *Session) GlueFaces(h domain.Shape, tolerance float64) (domain.Shape, error) {
	return s.glue(h, tolerance)
}

func (s *Session) GlueEdges(h domain.Shape, tolerance float64) (domain.Shape, error) {
	return s.glue(h, tolerance)
}

// glue is the identity: partitions and extrusions already share coincident topology.
func (s *Session) glue(h domain.Shape, tolerance float64) (domain.Shape, error) {
	if !(tolerance > 0) {
		return domain.Shape{}, fmt.Errorf("glue: invalid tolerance %g", tolerance)
	}
	if _, err := s.get(h); err != nil {
		return domain.Shape{}, err
	}
	return h, nil
}

func (s *Session) Rotate(h domain.Shape, origin, axis domain.Vector3, angle float64) (domain.Shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return domain.Shape{}, err
	}
	if !verticalAxis(axis) {
		return domain.Shape{}, errors.New("rotate: only vertical axes are supported")
	}
	if axis.Z < 0 {
		angle = -angle
	}
	id, err := s.transformed(sh,
		func(c curve) curve { return c.rotate(origin, angle) },
		func(p r3.Vec) r3.Vec { return rotateZ(p, origin, angle) },
		map[uint64]uint64{})
	if err != nil {
		return domain.Shape{}, fmt.Errorf("rotate: %w", err)
	}
	return s.shapes[id].handle(), nil
}

func (s *Session) transformed(sh *shape, tc func(curve) curve, tp func(r3.Vec) r3.Vec, memo map[uint64]uint64) (uint64, error) {
	if id, ok := memo[sh.id]; ok {
		return id, nil
	}
	sub := func(id uint64) (uint64, error) { return s.transformed(s.shapes[id], tc, tp, memo) }
	var out *shape
	switch {
	case sh.grp != nil || sh.is3D():
		return 0, fmt.Errorf("cannot transform %s", sh.handle())
	case sh.typ == domain.ShapeVertex:
		out = s.newVertex(tp(sh.pt))
	case sh.typ == domain.ShapeEdge:
		v0, err := sub(sh.v0)
		if err != nil {
			return 0, err
		}
		v1, err := sub(sh.v1)
		if err != nil {
			return 0, err
		}
		out = s.newEdge(tc(sh.crv), v0, v1)
	case sh.typ == domain.ShapeWire:
		w := &shape{typ: domain.ShapeWire}
		for _, e := range sh.edges {
			id, err := sub(e)
			if err != nil {
				return 0, err
			}
			w.edges = append(w.edges, id)
		}
		out = s.add(w)
	case sh.typ == domain.ShapeFace:
		if sh.face.lat != nil {
			return 0, fmt.Errorf("cannot transform %s", sh.handle())
		}
		loop := make([]loopEdge, len(sh.face.loop))
		for i, le := range sh.face.loop {
			id, err := sub(le.edge)
			if err != nil {
				return 0, err
			}
			loop[i] = loopEdge{edge: id, rev: le.rev}
		}
		out = s.newPlanarFace(loop)
	default:
		c := &shape{typ: sh.typ}
		for _, f := range sh.faces {
			id, err := sub(f)
			if err != nil {
				return 0, err
			}
			c.faces = append(c.faces, id)
		}
		out = s.add(c)
	}
	memo[sh.id] = out.id
	return out.id, nil
}

func (s *Session) Extrude(h domain.Shape, vector domain.Vector3) (domain.Shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return domain.Shape{}, err
	}
	if !verticalAxis(vector) || vector.Z <= 0 {
		return domain.Shape{}, errors.New("extrude: only upward vertical extrusion is supported")
	}
	faces, err := s.planarFaces(sh)
	if err != nil {
		return domain.Shape{}, fmt.Errorf("extrude: %w", err)
	}
	height := vector.Z
	up := r3.Vec{Z: height}

	tops := map[uint64]uint64{}
	verticals := map[uint64]uint64{}
	topVertex := func(v uint64) uint64 {
		if id, ok := tops[v]; ok {
			return id
		}
		p := s.shapes[v].pt
		t := s.newVertex(r3.Add(p, up))
		tops[v] = t.id
		verticals[v] = s.newEdge(newSegment(p, t.pt), v, t.id).id
		return t.id
	}
	topEdges := map[uint64]uint64{}
	laterals := map[uint64]uint64{}
	sweep := func(e uint64) (uint64, uint64) {
		if id, ok := topEdges[e]; ok {
			return id, laterals[e]
		}
		base := s.shapes[e]
		top := s.newEdge(base.crv.translate(up), topVertex(base.v0), topVertex(base.v1))
		z0 := base.crv.z()
		lat := &face{z: z0, lat: &lateral{
			bottom: e, top: top.id,
			left: verticals[base.v0], right: verticals[base.v1],
			z0: z0, z1: z0 + height,
		}}
		topEdges[e] = top.id
		laterals[e] = s.add(&shape{typ: domain.ShapeFace, face: lat}).id
		return top.id, laterals[e]
	}

	out := &shape{typ: domain.ShapeSolid}
	for _, f := range faces {
		b := &body{base: f.id, z0: f.face.z, z1: f.face.z + height}
		loop := make([]loopEdge, len(f.face.loop))
		for i, le := range f.face.loop {
			top, lat := sweep(le.edge)
			loop[i] = loopEdge{edge: top, rev: le.rev}
			b.laterals = append(b.laterals, lat)
		}
		b.top = s.newPlanarFace(loop).id
		out.bodies = append(out.bodies, b)
	}
	if len(out.bodies) > 1 {
		out.typ = domain.ShapeCompound
	}
	return s.add(out).handle(), nil
}

func (s *Session) SubShapes(h domain.Shape, typ domain.ShapeType) ([]domain.Shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return nil, err
	}
	subs := s.subShapes(sh, typ)
	out := make([]domain.Shape, len(subs))
	for i, x := range subs {
		out[i] = x.handle()
	}
	return out, nil
}

func (s *Session) SubShapeID(main, sub domain.Shape) (int, error) {
	sh, err := s.get(main)
	if err != nil {
		return 0, err
	}
	for i, x := range s.subShapes(sh, sub.Type) {
		if x.id == sub.ID {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%s is not a sub-shape of %s", sub, main)
}

func (s *Session) EdgeNearPoint(h domain.Shape, p domain.Vector3) (domain.Shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return domain.Shape{}, err
	}
	var best *shape
	bestD := math.Inf(1)
	for _, e := range s.subShapes(sh, domain.ShapeEdge) {
		if d := e.crv.distance(p); d < bestD-1e-12 {
			best, bestD = e, d
		}
	}
	if best == nil {
		return domain.Shape{}, fmt.Errorf("edge near point: %s has no edges", h)
	}
	return best.handle(), nil
}

func (s *Session) FaceNearPoint(h domain.Shape, p domain.Vector3) (domain.Shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return domain.Shape{}, err
	}
	var best *shape
	bestD := math.Inf(1)
	for _, f := range s.subShapes(sh, domain.ShapeFace) {
		if d := s.faceDistance(f, p); d < bestD-1e-12 {
			best, bestD = f, d
		}
	}
	if best == nil {
		return domain.Shape{}, fmt.Errorf("face near point: %s has no faces", h)
	}
	return best.handle(), nil
}

func (s *Session) ShapesOnPlane(h domain.Shape, typ domain.ShapeType, point, normal domain.Vector3) ([]int, error) {
	sh, err := s.get(h)
	if err != nil {
		return nil, err
	}
	if !verticalAxis(normal) {
		return nil, errors.New("shapes on plane: only horizontal planes are supported")
	}
	var ids []int
	for i, x := range s.subShapes(sh, typ) {
		var on bool
		switch typ {
		case domain.ShapeFace:
			on = x.face.lat == nil && math.Abs(x.face.z-point.Z) <= onTol
		case domain.ShapeEdge:
			on = x.crv.horizontal() && math.Abs(x.crv.z()-point.Z) <= onTol
		case domain.ShapeVertex:
			on = math.Abs(x.pt.Z-point.Z) <= onTol
		default:
			return nil, fmt.Errorf("shapes on plane: unsupported type %s", typ)
		}
		if on {
			ids = append(ids, i+1)
		}
	}
	return ids, nil
}

func (s *Session) Length(h domain.Shape) (float64, error) {
	sh, err := s.get(h)
	if err != nil {
		return 0, err
	}
	if sh.typ == domain.ShapeEdge {
		return sh.crv.length(), nil
	}
	total := 0.0
	for _, e := range s.subShapes(sh, domain.ShapeEdge) {
		total += e.crv.length()
	}
	return total, nil
}

func (s *Session) CheckShape(h domain.Shape) error {
	sh, err := s.get(h)
	if err != nil {
		return err
	}
	for _, e := range s.subShapes(sh, domain.ShapeEdge) {
		if e.crv.length() <= mergeTol {
			return fmt.Errorf("check: degenerate edge %s", e.handle())
		}
	}
	if sh.typ == domain.ShapeWire && !s.wireClosed(sh) && len(sh.edges) > 1 {
		if !s.wireConnected(sh) {
			return errors.New("check: wire is not connected")
		}
	}
	for _, f := range s.subShapes(sh, domain.ShapeFace) {
		if s.faceArea(f) <= 1e-12 {
			return fmt.Errorf("check: face %s has no area", f.handle())
		}
	}
	return nil
}

func (s *Session) wireConnected(w *shape) bool {
	for i := 1; i < len(w.edges); i++ {
		if s.shapes[w.edges[i-1]].v1 != s.shapes[w.edges[i]].v0 {
			return false
		}
	}
	return true
}

func (s *Session) CreateGroup(main domain.Shape, typ domain.ShapeType, name string) (domain.Shape, error) {
	if _, err := s.get(main); err != nil {
		return domain.Shape{}, err
	}
	switch typ {
	case domain.ShapeVertex, domain.ShapeEdge, domain.ShapeFace:
	default:
		return domain.Shape{}, fmt.Errorf("create group: unsupported type %s", typ)
	}
	g := &shape{typ: domain.ShapeCompound, grp: &group{main: main.ID, typ: typ, name: name}}
	return s.add(g).handle(), nil
}

func (s *Session) groupOf(h domain.Shape) (*shape, error) {
	sh, err := s.get(h)
	if err != nil {
		return nil, err
	}
	if sh.grp == nil {
		return nil, fmt.Errorf("%s is not a group", h)
	}
	return sh, nil
}

func (s *Session) addMember(g *shape, id uint64) {
	for _, m := range g.grp.members {
		if m == id {
			return
		}
	}
	g.grp.members = append(g.grp.members, id)
	for k := range s.subCache {
		if k.id == g.id {
			delete(s.subCache, k)
		}
	}
}

func (s *Session) UnionIDs(h domain.Shape, ids []int) error {
	g, err := s.groupOf(h)
	if err != nil {
		return err
	}
	subs := s.subShapes(s.shapes[g.grp.main], g.grp.typ)
	for _, id := range ids {
		if id < 1 || id > len(subs) {
			return fmt.Errorf("union ids: %d out of range 1..%d", id, len(subs))
		}
		s.addMember(g, subs[id-1].id)
	}
	return nil
}

func (s *Session) UnionList(h domain.Shape, list []domain.Shape) error {
	g, err := s.groupOf(h)
	if err != nil {
		return err
	}
	main := s.shapes[g.grp.main]
	for _, x := range list {
		if x.Type != g.grp.typ {
			return fmt.Errorf("union list: %s is not a %s", x, g.grp.typ)
		}
		id, err := s.SubShapeID(main.handle(), x)
		if err != nil {
			return fmt.Errorf("union list: %w", err)
		}
		s.addMember(g, s.subShapes(main, g.grp.typ)[id-1].id)
	}
	return nil
}

func (s *Session) GroupMembers(h domain.Shape) ([]domain.Shape, error) {
	g, err := s.groupOf(h)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Shape, len(g.grp.members))
	for i, id := range g.grp.members {
		out[i] = s.shapes[id].handle()
	}
	return out, nil
}
