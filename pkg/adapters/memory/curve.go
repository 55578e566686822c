package memory

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// mergeTol is the distance under which two points are the same vertex.
	mergeTol = 1e-7
	// onTol is the distance under which a point lies on a curve or boundary.
	onTol = 1e-6
)

type curveKind int

const (
	curveSegment curveKind = iota + 1
	curveArc
)

// curve is an edge geometry parameterised on [0,1] proportionally to arc length.
// Arcs are horizontal: they lie in the plane z = c.Z.
type curve struct {
	kind   curveKind
	p0, p1 r3.Vec
	c      r3.Vec
	r      float64
	a0     float64
	sweep  float64
}

func newSegment(a, b r3.Vec) curve {
	return curve{kind: curveSegment, p0: a, p1: b}
}

func newCircle(center r3.Vec, radius float64, ccw bool) curve {
	sweep := 2 * math.Pi
	if !ccw {
		sweep = -sweep
	}
	return curve{kind: curveArc, c: center, r: radius, sweep: sweep}
}

var errDegenerateArc = errors.New("arc points are collinear or coincident")

// arcThrough builds the arc from a through m to b.
func arcThrough(a, m, b r3.Vec) (curve, error) {
	if math.Abs(a.Z-m.Z) > mergeTol || math.Abs(a.Z-b.Z) > mergeTol {
		return curve{}, errors.New("arc must be horizontal")
	}
	ax, ay := a.X, a.Y
	bx, by := m.X, m.Y
	cx, cy := b.X, b.Y
	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	scale := math.Max(r3.Norm(r3.Sub(m, a)), r3.Norm(r3.Sub(b, a)))
	if scale < mergeTol || math.Abs(d) < 1e-12*scale*scale {
		return curve{}, errDegenerateArc
	}
	a2, b2, c2 := ax*ax+ay*ay, bx*bx+by*by, cx*cx+cy*cy
	ux := (a2*(by-cy) + b2*(cy-ay) + c2*(ay-by)) / d
	uy := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d
	center := r3.Vec{X: ux, Y: uy, Z: a.Z}

	as := math.Atan2(ay-uy, ax-ux)
	am := math.Atan2(by-uy, bx-ux)
	ae := math.Atan2(cy-uy, cx-ux)
	ccw := posMod(ae-as, 2*math.Pi)
	mid := posMod(am-as, 2*math.Pi)
	sweep := ccw
	if mid > ccw {
		sweep = ccw - 2*math.Pi
	}
	return curve{kind: curveArc, c: center, r: r3.Norm(r3.Sub(a, center)), a0: as, sweep: sweep}, nil
}

func posMod(x, m float64) float64 {
	x = math.Mod(x, m)
	if x < 0 {
		x += m
	}
	return x
}

func (c curve) closed() bool {
	return c.kind == curveArc && math.Abs(math.Abs(c.sweep)-2*math.Pi) < 1e-12
}

func (c curve) at(t float64) r3.Vec {
	if c.kind == curveSegment {
		return r3.Add(c.p0, r3.Scale(t, r3.Sub(c.p1, c.p0)))
	}
	a := c.a0 + t*c.sweep
	return r3.Vec{X: c.c.X + c.r*math.Cos(a), Y: c.c.Y + c.r*math.Sin(a), Z: c.c.Z}
}

func (c curve) start() r3.Vec { return c.at(0) }
func (c curve) end() r3.Vec   { return c.at(1) }

// tangent is the derivative with respect to t.
func (c curve) tangent(t float64) r3.Vec {
	if c.kind == curveSegment {
		return r3.Sub(c.p1, c.p0)
	}
	a := c.a0 + t*c.sweep
	return r3.Vec{X: -c.sweep * c.r * math.Sin(a), Y: c.sweep * c.r * math.Cos(a)}
}

func (c curve) length() float64 {
	if c.kind == curveSegment {
		return r3.Norm(r3.Sub(c.p1, c.p0))
	}
	return math.Abs(c.sweep) * c.r
}

func (c curve) horizontal() bool {
	return c.kind == curveArc || math.Abs(c.p0.Z-c.p1.Z) <= mergeTol
}

func (c curve) z() float64 {
	if c.kind == curveArc {
		return c.c.Z
	}
	return c.p0.Z
}

// sub returns the portion between t0 and t1; t1 may exceed 1 on closed arcs.
func (c curve) sub(t0, t1 float64) curve {
	if c.kind == curveSegment {
		return newSegment(c.at(t0), c.at(t1))
	}
	out := c
	out.a0 = c.a0 + t0*c.sweep
	out.sweep = (t1 - t0) * c.sweep
	return out
}

func (c curve) reversed() curve {
	if c.kind == curveSegment {
		return newSegment(c.p1, c.p0)
	}
	out := c
	out.a0 = c.a0 + c.sweep
	out.sweep = -c.sweep
	return out
}

func (c curve) translate(d r3.Vec) curve {
	out := c
	out.p0 = r3.Add(c.p0, d)
	out.p1 = r3.Add(c.p1, d)
	out.c = r3.Add(c.c, d)
	return out
}

func rotateZ(p, o r3.Vec, angle float64) r3.Vec {
	s, co := math.Sin(angle), math.Cos(angle)
	dx, dy := p.X-o.X, p.Y-o.Y
	return r3.Vec{X: o.X + dx*co - dy*s, Y: o.Y + dx*s + dy*co, Z: p.Z}
}

func (c curve) rotate(o r3.Vec, angle float64) curve {
	out := c
	out.p0 = rotateZ(c.p0, o, angle)
	out.p1 = rotateZ(c.p1, o, angle)
	out.c = rotateZ(c.c, o, angle)
	if c.kind == curveArc {
		out.a0 = c.a0 + angle
	}
	return out
}

// param returns the parameter of the point of c closest to p.
func (c curve) param(p r3.Vec) float64 {
	if c.kind == curveSegment {
		d := r3.Sub(c.p1, c.p0)
		l2 := r3.Dot(d, d)
		if l2 == 0 {
			return 0
		}
		return clamp01(r3.Dot(r3.Sub(p, c.p0), d) / l2)
	}
	phi := math.Atan2(p.Y-c.c.Y, p.X-c.c.X)
	span := math.Abs(c.sweep)
	var d float64
	if c.sweep > 0 {
		d = posMod(phi-c.a0, 2*math.Pi)
	} else {
		d = posMod(c.a0-phi, 2*math.Pi)
	}
	if c.closed() {
		return d / span
	}
	if d <= span {
		return d / span
	}
	if d-span < 2*math.Pi-d {
		return 1
	}
	return 0
}

func (c curve) distance(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, c.at(c.param(p))))
}

func clamp01(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

// pieces is the number of chords used to approximate the curve.
func (c curve) pieces() int {
	if c.kind == curveSegment {
		return 1
	}
	return max(4, int(math.Ceil(math.Abs(c.sweep)/(2*math.Pi)*96)))
}

func cross2(a, b r3.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}

// intersect returns the planar crossing points of two horizontal curves at the same height.
func intersect(a, b curve) []r3.Vec {
	var pts []r3.Vec
	switch {
	case a.kind == curveSegment && b.kind == curveSegment:
		pts = segSeg(a, b)
	case a.kind == curveSegment:
		pts = segArc(a, b)
	case b.kind == curveSegment:
		pts = segArc(b, a)
	default:
		pts = arcArc(a, b)
	}
	out := pts[:0]
	for _, p := range pts {
		if a.distance(p) <= onTol && b.distance(p) <= onTol {
			out = append(out, p)
		}
	}
	return out
}

func segSeg(a, b curve) []r3.Vec {
	d1 := r3.Sub(a.p1, a.p0)
	d2 := r3.Sub(b.p1, b.p0)
	den := cross2(d1, d2)
	if math.Abs(den) < 1e-12*r3.Norm(d1)*r3.Norm(d2) {
		return nil
	}
	w := r3.Sub(b.p0, a.p0)
	t := cross2(w, d2) / den
	u := cross2(w, d1) / den
	ta := onTol / r3.Norm(d1)
	tb := onTol / r3.Norm(d2)
	if t < -ta || t > 1+ta || u < -tb || u > 1+tb {
		return nil
	}
	return []r3.Vec{a.at(clamp01(t))}
}

func segArc(s, a curve) []r3.Vec {
	d := r3.Sub(s.p1, s.p0)
	d.Z = 0
	f := r3.Sub(s.p0, a.c)
	f.Z = 0
	qa := r3.Dot(d, d)
	qb := 2 * r3.Dot(f, d)
	qc := r3.Dot(f, f) - a.r*a.r
	disc := qb*qb - 4*qa*qc
	if qa == 0 || disc < -1e-12*qa*a.r*a.r {
		return nil
	}
	disc = math.Max(0, disc)
	sq := math.Sqrt(disc)
	var pts []r3.Vec
	for _, t := range []float64{(-qb - sq) / (2 * qa), (-qb + sq) / (2 * qa)} {
		p := s.at(clamp01(t))
		if len(pts) > 0 && r3.Norm(r3.Sub(p, pts[0])) <= mergeTol {
			continue
		}
		pts = append(pts, p)
	}
	return pts
}

func arcArc(a, b curve) []r3.Vec {
	dv := r3.Sub(b.c, a.c)
	dv.Z = 0
	d := r3.Norm(dv)
	if d < mergeTol || d > a.r+b.r+onTol || d < math.Abs(a.r-b.r)-onTol {
		return nil
	}
	l := (a.r*a.r - b.r*b.r + d*d) / (2 * d)
	h := math.Sqrt(math.Max(0, a.r*a.r-l*l))
	ux, uy := dv.X/d, dv.Y/d
	px, py := a.c.X+l*ux, a.c.Y+l*uy
	p1 := r3.Vec{X: px - h*uy, Y: py + h*ux, Z: a.c.Z}
	p2 := r3.Vec{X: px + h*uy, Y: py - h*ux, Z: a.c.Z}
	if h <= mergeTol {
		return []r3.Vec{p1}
	}
	return []r3.Vec{p1, p2}
}

// polygon approximates a sequence of oriented curves as a closed point list.
func polygon(curves []curve) []r3.Vec {
	var pts []r3.Vec
	for _, c := range curves {
		n := c.pieces()
		for i := 0; i < n; i++ {
			pts = append(pts, c.at(float64(i)/float64(n)))
		}
	}
	return pts
}

func signedArea(pts []r3.Vec) float64 {
	a := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

func centroid(pts []r3.Vec) r3.Vec {
	a := signedArea(pts)
	if math.Abs(a) < 1e-15 {
		var s r3.Vec
		for _, p := range pts {
			s = r3.Add(s, p)
		}
		return r3.Scale(1/float64(len(pts)), s)
	}
	var cx, cy float64
	for i := range pts {
		j := (i + 1) % len(pts)
		k := pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
		cx += (pts[i].X + pts[j].X) * k
		cy += (pts[i].Y + pts[j].Y) * k
	}
	return r3.Vec{X: cx / (6 * a), Y: cy / (6 * a), Z: pts[0].Z}
}

// insidePolygon is an even-odd test in the xy plane.
func insidePolygon(pts []r3.Vec, p r3.Vec) bool {
	in := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// interiorPoint returns a point strictly inside a simple polygon. The
// centroid of a concave cell can fall outside it, so the point is taken at the
// middle of the widest horizontal chord instead.
func interiorPoint(pts []r3.Vec) r3.Vec {
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	best, width := centroid(pts), 0.0
	for _, f := range []float64{0.5, 0.37, 0.63, 0.21, 0.79} {
		y := ymin + f*(ymax-ymin)
		var xs []float64
		for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
			a, b := pts[i], pts[j]
			if (a.Y > y) != (b.Y > y) {
				xs = append(xs, a.X+(y-a.Y)*(b.X-a.X)/(b.Y-a.Y))
			}
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			if w := xs[k+1] - xs[k]; w > width {
				best, width = r3.Vec{X: (xs[k] + xs[k+1]) / 2, Y: y, Z: pts[0].Z}, w
			}
		}
	}
	return best
}

// polygonsOverlap reports whether two simple polygons share area, judged by
// their interior points. Polygons that only touch along their boundaries do
// not overlap.
func polygonsOverlap(a, b []r3.Vec) bool {
	return insidePolygon(b, interiorPoint(a)) || insidePolygon(a, interiorPoint(b))
}
