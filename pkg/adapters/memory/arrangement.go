package memory

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// piece is an edge of a planar arrangement, running from vertex u to vertex v.
type piece struct {
	crv  curve
	u, v int
}

// arrangement is the planar subdivision induced by a set of curves.
type arrangement struct {
	points []r3.Vec
	pieces []piece
	// faces are CCW loops of half-edges; half-edge 2k runs piece k forward, 2k+1 backward.
	faces [][]int
}

type pointPool struct {
	pts []r3.Vec
}

func (pp *pointPool) index(p r3.Vec) int {
	for i, q := range pp.pts {
		if r3.Norm(r3.Sub(p, q)) <= mergeTol {
			return i
		}
	}
	pp.pts = append(pp.pts, p)
	return len(pp.pts) - 1
}

var (
	errEmptyArrangement = errors.New("partition produced no faces")
	errDisconnected     = errors.New("partition produced disconnected regions")
)

// arrange splits curves at their mutual crossings, keeps the pieces accepted
// by keep and traces the bounded faces of the result.
func arrange(curves []curve, keep func(r3.Vec) bool) (*arrangement, error) {
	pool := &pointPool{}
	var pieces []piece

	for i, c := range curves {
		ts := splitParams(c, i, curves)
		for _, seg := range cutAt(c, ts) {
			if !keep(seg.at(0.5)) {
				continue
			}
			u := pool.index(seg.start())
			v := pool.index(seg.end())
			if u == v && !seg.closed() {
				continue
			}
			if duplicatePiece(pieces, seg, u, v) {
				continue
			}
			pieces = append(pieces, piece{crv: seg, u: u, v: v})
		}
	}

	pieces = pruneDangling(pieces)
	if len(pieces) == 0 {
		return nil, errEmptyArrangement
	}
	if components(pieces) > 1 {
		return nil, errDisconnected
	}

	arr := &arrangement{points: pool.pts, pieces: pieces}
	arr.faces = traceFaces(pieces, len(pool.pts))
	if len(arr.faces) == 0 {
		return nil, errEmptyArrangement
	}
	return arr, nil
}

// splitParams collects the parameters at which curve i must be cut.
func splitParams(c curve, i int, curves []curve) []float64 {
	var ts []float64
	if !c.closed() {
		ts = append(ts, 0, 1)
	}
	for j, o := range curves {
		if j == i {
			continue
		}
		for _, p := range intersect(c, o) {
			ts = append(ts, c.param(p))
		}
		if o.closed() {
			continue
		}
		for _, p := range []r3.Vec{o.start(), o.end()} {
			if c.distance(p) <= onTol {
				ts = append(ts, c.param(p))
			}
		}
	}
	sort.Float64s(ts)

	var out []float64
	for _, t := range ts {
		if len(out) > 0 && r3.Norm(r3.Sub(c.at(t), c.at(out[len(out)-1]))) <= mergeTol {
			continue
		}
		out = append(out, t)
	}
	if c.closed() && len(out) > 1 && r3.Norm(r3.Sub(c.at(out[0]), c.at(out[len(out)-1]))) <= mergeTol {
		out = out[:len(out)-1]
	}
	return out
}

func cutAt(c curve, ts []float64) []curve {
	if c.closed() {
		switch len(ts) {
		case 0:
			return []curve{c}
		case 1:
			return []curve{c.sub(ts[0], ts[0]+1)}
		}
		out := make([]curve, 0, len(ts))
		for k := 0; k+1 < len(ts); k++ {
			out = append(out, c.sub(ts[k], ts[k+1]))
		}
		return append(out, c.sub(ts[len(ts)-1], ts[0]+1))
	}
	var out []curve
	for k := 0; k+1 < len(ts); k++ {
		s := c.sub(ts[k], ts[k+1])
		if s.length() > mergeTol {
			out = append(out, s)
		}
	}
	return out
}

func duplicatePiece(pieces []piece, c curve, u, v int) bool {
	mid := c.at(0.5)
	for _, p := range pieces {
		if (p.u == u && p.v == v) || (p.u == v && p.v == u) {
			if r3.Norm(r3.Sub(p.crv.at(0.5), mid)) <= onTol {
				return true
			}
		}
	}
	return false
}

func pruneDangling(pieces []piece) []piece {
	for {
		deg := map[int]int{}
		for _, p := range pieces {
			deg[p.u]++
			deg[p.v]++
		}
		kept := pieces[:0]
		for _, p := range pieces {
			if deg[p.u] > 1 && deg[p.v] > 1 {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(pieces) {
			return kept
		}
		pieces = kept
	}
}

func components(pieces []piece) int {
	parent := map[int]int{}
	var find func(int) int
	find = func(x int) int {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, p := range pieces {
		parent[find(p.u)] = find(p.v)
	}
	roots := map[int]bool{}
	for x := range parent {
		roots[find(x)] = true
	}
	return len(roots)
}

func halfOrigin(pieces []piece, h int) int {
	if h%2 == 0 {
		return pieces[h/2].u
	}
	return pieces[h/2].v
}

// halfAngles returns the leaving direction of a half-edge and, for ties,
// the direction towards a point slightly further along it.
func halfAngles(pieces []piece, h int) (float64, float64) {
	c := pieces[h/2].crv
	var dir, ahead r3.Vec
	if h%2 == 0 {
		dir = c.tangent(0)
		ahead = r3.Sub(c.at(0.02), c.start())
	} else {
		dir = r3.Scale(-1, c.tangent(1))
		ahead = r3.Sub(c.at(0.98), c.end())
	}
	return math.Atan2(dir.Y, dir.X), math.Atan2(ahead.Y, ahead.X)
}

func traceFaces(pieces []piece, nPoints int) [][]int {
	out := make([][]int, nPoints)
	for h := 0; h < 2*len(pieces); h++ {
		o := halfOrigin(pieces, h)
		out[o] = append(out[o], h)
	}
	pos := make(map[int]int, 2*len(pieces))
	for _, hs := range out {
		sort.SliceStable(hs, func(i, j int) bool {
			ai, si := halfAngles(pieces, hs[i])
			aj, sj := halfAngles(pieces, hs[j])
			if math.Abs(ai-aj) > 1e-9 {
				return ai < aj
			}
			return si < sj
		})
		for i, h := range hs {
			pos[h] = i
		}
	}

	next := func(h int) int {
		twin := h ^ 1
		hs := out[halfOrigin(pieces, twin)]
		i := pos[twin]
		return hs[(i-1+len(hs))%len(hs)]
	}

	visited := make([]bool, 2*len(pieces))
	var faces [][]int
	for h := range visited {
		if visited[h] {
			continue
		}
		var loop []int
		for cur := h; !visited[cur]; cur = next(cur) {
			visited[cur] = true
			loop = append(loop, cur)
		}
		if signedArea(polygon(halfCurves(pieces, loop))) > 1e-12 {
			faces = append(faces, loop)
		}
	}
	return faces
}

func halfCurves(pieces []piece, loop []int) []curve {
	cs := make([]curve, len(loop))
	for i, h := range loop {
		c := pieces[h/2].crv
		if h%2 == 1 {
			c = c.reversed()
		}
		cs[i] = c
	}
	return cs
}
