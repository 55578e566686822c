package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/aretw0/reactor/pkg/domain"
)

// maxSegments bounds the node count of a single edge.
const maxSegments = 100000

type elemKind int

const (
	elemSegment elemKind = iota + 1
	elemQuad
	elemHexa
)

func (k elemKind) String() string {
	switch k {
	case elemSegment:
		return "segment"
	case elemQuad:
		return "quad"
	default:
		return "hexa"
	}
}

type element struct {
	kind  elemKind
	nodes []int
	ratio float64
}

type meshGroup struct {
	name  string
	group uint64
}

type groupResult struct {
	name     string
	faces    int
	elements int
}

type meshResult struct {
	nodes    []r3.Vec
	elements []element
	groups   []groupResult
}

type mesh struct {
	id         uint64
	shape      uint64
	name       string
	defaults   int
	hyps       map[uint64]domain.SegmentHypothesis
	order      []uint64
	quad, hexa bool
	groups     []meshGroup
	result     *meshResult
}

func (s *Session) NewMesh(h domain.Shape, name string) (domain.MeshHandle, error) {
	if err := s.check(); err != nil {
		return domain.MeshHandle{}, err
	}
	sh, err := s.get(h)
	if err != nil {
		return domain.MeshHandle{}, err
	}
	if !sh.is3D() {
		if _, err := s.planarFaces(sh); err != nil {
			return domain.MeshHandle{}, fmt.Errorf("new mesh: %w", err)
		}
	}
	s.nextID++
	m := &mesh{id: s.nextID, shape: sh.id, name: name, hyps: map[uint64]domain.SegmentHypothesis{}}
	s.meshes[m.id] = m
	return domain.MeshHandle{ID: m.id}, nil
}

func (s *Session) mesh(h domain.MeshHandle) (*mesh, error) {
	m, ok := s.meshes[h.ID]
	if !ok {
		return nil, fmt.Errorf("unknown mesh %d", h.ID)
	}
	return m, nil
}

func (s *Session) DefaultSegments(h domain.MeshHandle, count int) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("default segments: count must be positive, got %d", count)
	}
	m.defaults = count
	return nil
}

func (s *Session) Segment(h domain.MeshHandle, edge domain.Shape, hyp domain.SegmentHypothesis) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	if err := hyp.Validate(); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	if edge.Type != domain.ShapeEdge {
		return fmt.Errorf("segment: %s is not an edge", edge)
	}
	if _, err := s.SubShapeID(domain.Shape{ID: m.shape}, edge); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	if _, ok := m.hyps[edge.ID]; !ok {
		m.order = append(m.order, edge.ID)
	}
	m.hyps[edge.ID] = hyp
	return nil
}

func (s *Session) Quadrangle(h domain.MeshHandle) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.quad = true
	return nil
}

func (s *Session) Hexahedron(h domain.MeshHandle) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.hexa = true
	return nil
}

func (s *Session) GroupOnGeometry(h domain.MeshHandle, grp domain.Shape, name string) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	g, err := s.groupOf(grp)
	if err != nil {
		return err
	}
	if g.grp.main != m.shape {
		return fmt.Errorf("group on geometry: %s does not belong to the meshed shape", grp)
	}
	if g.grp.typ != domain.ShapeFace {
		return fmt.Errorf("group on geometry: %s is not a face group", grp)
	}
	m.groups = append(m.groups, meshGroup{name: name, group: g.id})
	return nil
}

func (s *Session) Compute(ctx context.Context, h domain.MeshHandle) error {
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	m.result = nil
	res, err := newMesher(s, m).run(ctx)
	if err != nil {
		return err
	}
	m.result = res
	return nil
}

func (s *Session) AspectRatios(h domain.MeshHandle) ([]float64, error) {
	m, err := s.mesh(h)
	if err != nil {
		return nil, err
	}
	if m.result == nil {
		return nil, errors.New("aspect ratios: mesh is not computed")
	}
	out := make([]float64, len(m.result.elements))
	for i, e := range m.result.elements {
		out[i] = e.ratio
	}
	return out, nil
}

// fractions returns the node parameters of an edge of length l under hyp.
func fractions(l float64, hyp domain.SegmentHypothesis) ([]float64, error) {
	switch hyp.Kind {
	case domain.SegmentsUniform:
		return uniform(hyp.Count), nil
	case domain.SegmentsGeometric:
		q, s0 := hyp.Ratio, hyp.Start
		if math.Abs(q-1) < 1e-12 {
			return uniform(max(1, int(math.Round(l/s0)))), nil
		}
		n := math.Round(math.Log(1+l*(q-1)/s0) / math.Log(q))
		if math.IsNaN(n) || math.IsInf(n, 0) || n > maxSegments {
			return nil, fmt.Errorf("geometric progression start=%g ratio=%g does not fit length %g", s0, q, l)
		}
		count := max(1, int(n))
		fr := make([]float64, count+1)
		step, total := 1.0, 0.0
		for i := 1; i <= count; i++ {
			total += step
			fr[i] = total
			step *= q
		}
		for i := range fr {
			fr[i] /= total
		}
		fr[count] = 1
		return fr, nil
	}
	return nil, fmt.Errorf("unknown segment kind %d", hyp.Kind)
}

func uniform(n int) []float64 {
	fr := make([]float64, n+1)
	for i := range fr {
		fr[i] = float64(i) / float64(n)
	}
	return fr
}

// opposite maps node parameters across a four-sided face from a side edge to
// the edge facing it.
func opposite(fr []float64, fromRev, toRev bool) []float64 {
	out := make([]float64, len(fr))
	for i, f := range fr {
		s := f
		if fromRev {
			s = 1 - f
		}
		if toRev {
			out[i] = s
		} else {
			out[i] = 1 - s
		}
	}
	sort.Float64s(out)
	return out
}

type nodeKey [3]int64

type nodePool struct {
	pts   []r3.Vec
	index map[nodeKey]int
}

func (np *nodePool) add(p r3.Vec) int {
	k := nodeKey{int64(math.Round(p.X / mergeTol)), int64(math.Round(p.Y / mergeTol)), int64(math.Round(p.Z / mergeTol))}
	if i, ok := np.index[k]; ok {
		return i
	}
	np.pts = append(np.pts, p)
	np.index[k] = len(np.pts) - 1
	return len(np.pts) - 1
}

type faceGrid struct {
	n, m  int
	nodes [][]int
}

type mesher struct {
	s         *Session
	m         *mesh
	main      *shape
	pool      *nodePool
	sides     map[uint64][4][]loopEdge
	dist      map[uint64][]float64
	edgeNodes map[uint64][]int
}

func newMesher(s *Session, m *mesh) *mesher {
	return &mesher{
		s:         s,
		m:         m,
		main:      s.shapes[m.shape],
		pool:      &nodePool{index: map[nodeKey]int{}},
		sides:     map[uint64][4][]loopEdge{},
		dist:      map[uint64][]float64{},
		edgeNodes: map[uint64][]int{},
	}
}

func (ms *mesher) run(ctx context.Context) (*meshResult, error) {
	if !ms.m.quad {
		return nil, errors.New("compute: no 2-D algorithm assigned")
	}
	if ms.m.hexa && !ms.main.is3D() {
		return nil, errors.New("compute: hexahedral meshing needs a solid")
	}
	if !ms.m.hexa && ms.main.is3D() {
		return nil, errors.New("compute: no 3-D algorithm assigned")
	}

	faces := ms.s.subShapes(ms.main, domain.ShapeFace)
	edgeFaces := map[uint64][]uint64{}
	for _, f := range faces {
		sd, err := ms.s.faceSides(f)
		if err != nil {
			return nil, err
		}
		ms.sides[f.id] = sd
		for _, side := range sd {
			for _, le := range side {
				edgeFaces[le.edge] = append(edgeFaces[le.edge], f.id)
			}
		}
	}
	if err := ms.distribute(edgeFaces); err != nil {
		return nil, err
	}

	res := &meshResult{}
	for _, e := range ms.s.subShapes(ms.main, domain.ShapeEdge) {
		nodes := ms.nodesOf(e.id)
		for i := 0; i+1 < len(nodes); i++ {
			res.elements = append(res.elements, element{kind: elemSegment, nodes: []int{nodes[i], nodes[i+1]}})
		}
	}

	if ms.main.is3D() {
		for _, b := range ms.main.bodies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := ms.sweep(b, res); err != nil {
				return nil, err
			}
		}
	} else {
		for _, f := range faces {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			g, err := ms.grid(f)
			if err != nil {
				return nil, err
			}
			for i := 0; i < g.n; i++ {
				for j := 0; j < g.m; j++ {
					q := []int{g.nodes[i][j], g.nodes[i+1][j], g.nodes[i+1][j+1], g.nodes[i][j+1]}
					res.elements = append(res.elements, element{kind: elemQuad, nodes: q, ratio: ms.quadRatio(q, 0)})
				}
			}
		}
	}

	for _, mg := range ms.m.groups {
		gr := groupResult{name: mg.name}
		for _, id := range ms.s.shapes[mg.group].grp.members {
			sd := ms.sides[id]
			gr.faces++
			gr.elements += (len(ms.nodesOfSide(sd[0])) - 1) * (len(ms.nodesOfSide(sd[1])) - 1)
		}
		res.groups = append(res.groups, gr)
	}
	res.nodes = ms.pool.pts
	return res, nil
}

// distribute assigns node parameters to every edge: explicit hypotheses
// first, then propagation across four-sided faces, then the default count.
func (ms *mesher) distribute(edgeFaces map[uint64][]uint64) error {
	for _, id := range ms.m.order {
		fr, err := fractions(ms.s.shapes[id].crv.length(), ms.m.hyps[id])
		if err != nil {
			return fmt.Errorf("compute: edge %d: %w", id, err)
		}
		ms.dist[id] = fr
	}
	for _, id := range ms.m.order {
		if !ms.m.hyps[id].Propagate {
			continue
		}
		queue := []uint64{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, f := range edgeFaces[cur] {
				sd := ms.sides[f]
				for k, side := range sd {
					if len(side) != 1 || side[0].edge != cur {
						continue
					}
					opp := sd[(k+2)%4]
					if len(opp) != 1 {
						continue
					}
					to := opp[0]
					if _, done := ms.dist[to.edge]; done {
						continue
					}
					ms.dist[to.edge] = opposite(ms.dist[cur], side[0].rev, to.rev)
					queue = append(queue, to.edge)
				}
			}
		}
	}
	for _, e := range ms.s.subShapes(ms.main, domain.ShapeEdge) {
		if _, ok := ms.dist[e.id]; ok {
			continue
		}
		if ms.m.defaults < 1 {
			return fmt.Errorf("compute: edge %d has no segment hypothesis", e.id)
		}
		ms.dist[e.id] = uniform(ms.m.defaults)
	}
	return nil
}

func (ms *mesher) nodesOf(edge uint64) []int {
	if nodes, ok := ms.edgeNodes[edge]; ok {
		return nodes
	}
	c := ms.s.shapes[edge].crv
	fr := ms.dist[edge]
	nodes := make([]int, len(fr))
	for i, t := range fr {
		nodes[i] = ms.pool.add(c.at(t))
	}
	ms.edgeNodes[edge] = nodes
	return nodes
}

func (ms *mesher) nodesOfSide(side []loopEdge) []int {
	var out []int
	for k, le := range side {
		nodes := ms.nodesOf(le.edge)
		if le.rev {
			rev := make([]int, len(nodes))
			for i, n := range nodes {
				rev[len(nodes)-1-i] = n
			}
			nodes = rev
		}
		if k > 0 {
			nodes = nodes[1:]
		}
		out = append(out, nodes...)
	}
	return out
}

// faceSides splits a face boundary into four sides at its sharpest corners.
func (s *Session) faceSides(f *shape) ([4][]loopEdge, error) {
	if l := f.face.lat; l != nil {
		return [4][]loopEdge{{{edge: l.bottom}}, {{edge: l.right}}, {{edge: l.top, rev: true}}, {{edge: l.left, rev: true}}}, nil
	}
	loop := f.face.loop
	n := len(loop)
	if n < 4 {
		return [4][]loopEdge{}, fmt.Errorf("compute: face %d has %d edges, need at least 4 for quadrangles", f.id, n)
	}
	curves := s.loopCurves(loop)
	turns := make([]float64, n)
	for i := range loop {
		a := curves[(i-1+n)%n].tangent(1)
		b := curves[i].tangent(0)
		turns[i] = math.Abs(math.Atan2(cross2(a, b), a.X*b.X+a.Y*b.Y))
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return turns[idx[a]] > turns[idx[b]]+1e-9 })
	corners := append([]int(nil), idx[:4]...)
	sort.Ints(corners)

	var sides [4][]loopEdge
	for k := 0; k < 4; k++ {
		from, to := corners[k], corners[(k+1)%4]
		for i := from; i != to; i = (i + 1) % n {
			sides[k] = append(sides[k], loop[i])
		}
	}
	return sides, nil
}

func cumulative(pts []r3.Vec, nodes []int) []float64 {
	out := make([]float64, len(nodes))
	for i := 1; i < len(nodes); i++ {
		out[i] = out[i-1] + r3.Norm(r3.Sub(pts[nodes[i]], pts[nodes[i-1]]))
	}
	total := out[len(out)-1]
	for i := range out {
		out[i] /= total
	}
	return out
}

func reversedNodes(nodes []int) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// grid meshes a four-sided face by transfinite interpolation of its sides.
func (ms *mesher) grid(f *shape) (*faceGrid, error) {
	sd := ms.sides[f.id]
	bottom := ms.nodesOfSide(sd[0])
	right := ms.nodesOfSide(sd[1])
	top := reversedNodes(ms.nodesOfSide(sd[2]))
	left := reversedNodes(ms.nodesOfSide(sd[3]))
	if len(bottom) != len(top) || len(left) != len(right) {
		return nil, fmt.Errorf("compute: face %d has opposite sides with %d/%d and %d/%d segments",
			f.id, len(bottom)-1, len(top)-1, len(left)-1, len(right)-1)
	}
	n, m := len(bottom)-1, len(left)-1
	pts := ms.pool.pts
	sB, sT := cumulative(pts, bottom), cumulative(pts, top)
	sL, sR := cumulative(pts, left), cumulative(pts, right)
	p00, p10 := pts[bottom[0]], pts[bottom[n]]
	p01, p11 := pts[top[0]], pts[top[n]]

	g := &faceGrid{n: n, m: m, nodes: make([][]int, n+1)}
	for i := 0; i <= n; i++ {
		g.nodes[i] = make([]int, m+1)
		for j := 0; j <= m; j++ {
			switch {
			case j == 0:
				g.nodes[i][j] = bottom[i]
			case j == m:
				g.nodes[i][j] = top[i]
			case i == 0:
				g.nodes[i][j] = left[j]
			case i == n:
				g.nodes[i][j] = right[j]
			default:
				u, v := sB[i], sL[j]
				for it := 0; it < 4; it++ {
					u = (1-v)*sB[i] + v*sT[i]
					v = (1-u)*sL[j] + u*sR[j]
				}
				b, t := ms.pool.pts[bottom[i]], ms.pool.pts[top[i]]
				l, r := ms.pool.pts[left[j]], ms.pool.pts[right[j]]
				p := r3.Add(r3.Add(r3.Scale(1-v, b), r3.Scale(v, t)), r3.Add(r3.Scale(1-u, l), r3.Scale(u, r)))
				corner := r3.Add(
					r3.Add(r3.Scale((1-u)*(1-v), p00), r3.Scale(u*(1-v), p10)),
					r3.Add(r3.Scale(u*v, p11), r3.Scale((1-u)*v, p01)))
				g.nodes[i][j] = ms.pool.add(r3.Sub(p, corner))
			}
		}
	}
	return g, nil
}

// sweep extrudes the quadrangle mesh of a body's base face into hexahedra.
func (ms *mesher) sweep(b *body, res *meshResult) error {
	fr, err := ms.layers(b)
	if err != nil {
		return err
	}
	g, err := ms.grid(ms.s.shapes[b.base])
	if err != nil {
		return err
	}
	z := make([]float64, len(fr))
	for k, f := range fr {
		z[k] = b.z0 + f*(b.z1-b.z0)
	}
	layer := func(node, k int) int {
		if k == 0 {
			return node
		}
		p := ms.pool.pts[node]
		p.Z = z[k]
		return ms.pool.add(p)
	}
	for i := 0; i < g.n; i++ {
		for j := 0; j < g.m; j++ {
			q := []int{g.nodes[i][j], g.nodes[i+1][j], g.nodes[i+1][j+1], g.nodes[i][j+1]}
			for k := 0; k+1 < len(z); k++ {
				hex := make([]int, 0, 8)
				for _, n := range q {
					hex = append(hex, layer(n, k))
				}
				for _, n := range q {
					hex = append(hex, layer(n, k+1))
				}
				res.elements = append(res.elements, element{kind: elemHexa, nodes: hex, ratio: ms.quadRatio(q, z[k+1]-z[k])})
			}
		}
	}
	return nil
}

// layers returns the vertical node parameters shared by every vertical edge of a body.
func (ms *mesher) layers(b *body) ([]float64, error) {
	var fr []float64
	for _, id := range b.laterals {
		l := ms.s.shapes[id].face.lat
		for _, v := range []uint64{l.left, l.right} {
			d := ms.dist[v]
			if fr == nil {
				fr = d
				continue
			}
			if len(d) != len(fr) {
				return nil, fmt.Errorf("compute: body on face %d has vertical edges with %d and %d segments",
					b.base, len(fr)-1, len(d)-1)
			}
		}
	}
	if fr == nil {
		return nil, fmt.Errorf("compute: body on face %d has no vertical edges", b.base)
	}
	return fr, nil
}

// quadRatio is the ratio of the longest to the shortest of the four sides,
// the two diagonals scaled by 1/sqrt(2) and, for hexahedra, the layer height.
func (ms *mesher) quadRatio(q []int, height float64) float64 {
	p := make([]r3.Vec, 4)
	for i, n := range q {
		p[i] = ms.pool.pts[n]
	}
	lens := []float64{
		r3.Norm(r3.Sub(p[1], p[0])),
		r3.Norm(r3.Sub(p[2], p[1])),
		r3.Norm(r3.Sub(p[3], p[2])),
		r3.Norm(r3.Sub(p[0], p[3])),
		r3.Norm(r3.Sub(p[2], p[0])) / math.Sqrt2,
		r3.Norm(r3.Sub(p[3], p[1])) / math.Sqrt2,
	}
	if height > 0 {
		lens = append(lens, height)
	}
	lo, hi := math.Inf(1), 0.0
	for _, l := range lens {
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	if lo < 1e-12 {
		return 1e12
	}
	return hi / lo
}
