package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/reactor/internal/engine"
	"github.com/aretw0/reactor/pkg/domain"
)

// Report collects what a build produced. Mesh and Outcome are optional.
type Report struct {
	Params   domain.GeometryParams
	Geometry *domain.ReactorGeometry
	Mesh     *domain.ReactorMesh
	Stats    domain.AspectStats
	Outcome  *domain.OptimizationOutcome
	Exported []string
}

// Markdown renders the report as a markdown document.
func (r Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Reactor build\n\n")
	if r.Geometry != nil {
		fmt.Fprintf(&b, "Build `%s`\n\n", r.Geometry.BuildID())
	}

	b.WriteString("## Dimensions\n\n")
	b.WriteString("| | value |\n|---|---|\n")
	c := r.Params.Center
	fmt.Fprintf(&b, "| center | (%g, %g, %g) |\n", c.X, c.Y, c.Z)
	fmt.Fprintf(&b, "| reactor radius | %g |\n", r.Params.Reactor.X)
	fmt.Fprintf(&b, "| reactor height | %g |\n", r.Params.Reactor.Y)
	fmt.Fprintf(&b, "| chimney width | %g |\n", r.Params.Chimney.X)
	fmt.Fprintf(&b, "| chimney height | %g |\n", r.Params.Chimney.Y)
	b.WriteString("\n")

	if r.Geometry != nil {
		p := r.Geometry.Profile()
		b.WriteString("## Profile\n\n")
		b.WriteString("| | value |\n|---|---|\n")
		fmt.Fprintf(&b, "| requested mesh size | %g |\n", r.Params.MeshSize)
		fmt.Fprintf(&b, "| adjusted mesh size | %.6g |\n", p.MeshSize)
		fmt.Fprintf(&b, "| square width | %.6g |\n", p.SquareWidth)
		fmt.Fprintf(&b, "| square ratio | %.4f |\n", p.SquareFraction)
		fmt.Fprintf(&b, "| curvature ratio | %.4f |\n", p.CurvatureFraction)
		fmt.Fprintf(&b, "| optimized | %t |\n", p.Optimized)
		b.WriteString("\n")
	}

	if o := r.Outcome; o != nil {
		b.WriteString("## Optimization\n\n")
		fmt.Fprintf(&b, "- status: %s\n", o.Status)
		fmt.Fprintf(&b, "- objective (max aspect ratio - 1): %.6g\n", o.Objective)
		fmt.Fprintf(&b, "- evaluations: %d, iterations: %d\n\n", o.Evaluations, o.Iterations)
	}

	if r.Mesh != nil {
		r.writeMesh(&b)
	}

	if len(r.Exported) > 0 {
		b.WriteString("## Files\n\n")
		for _, f := range r.Exported {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (r Report) writeMesh(b *strings.Builder) {
	b.WriteString("## Mesh\n\n")
	b.WriteString("| | value |\n|---|---|\n")
	fmt.Fprintf(b, "| elements | %d |\n", r.Stats.Count)
	fmt.Fprintf(b, "| min aspect ratio | %.4f |\n", r.Stats.Min)
	fmt.Fprintf(b, "| max aspect ratio | %.4f |\n", r.Stats.Max)
	fmt.Fprintf(b, "| mean aspect ratio | %.4f |\n", r.Stats.Mean)
	fmt.Fprintf(b, "| compute time | %s |\n", r.Mesh.ComputeTime().Round(time.Microsecond))
	b.WriteString("\n")

	b.WriteString("### Edge seeds\n\n")
	b.WriteString("| edge | length | rule |\n|---|---|---|\n")
	geometric := false
	for _, s := range r.Mesh.Seeds() {
		fmt.Fprintf(b, "| %s | %.4g | %s |\n", s.Label, s.Length, rule(s.Hypothesis))
		geometric = geometric || s.Hypothesis.Kind == domain.SegmentsGeometric
	}
	b.WriteString("\n")

	g := r.Mesh.Geometry()
	if !geometric || g == nil {
		return
	}
	prog, err := engine.GeometricProgression(g.Dimensions().Radius(), g.SquareWidth(), g.MeshSize())
	if err != nil {
		return
	}
	b.WriteString("### Radial progression\n\n")
	fmt.Fprintf(b, "- divisions of the square: %d\n", prog.Divisions)
	fmt.Fprintf(b, "- r0 = %.6g, q = %.6g, rings = %.3f\n", prog.R0, prog.Ratio, prog.Rings)
	fmt.Fprintf(b, "- dr min = %.6g, dr max = %.6g\n\n", prog.MinLength, prog.MaxLength)
}

func rule(h domain.SegmentHypothesis) string {
	switch h.Kind {
	case domain.SegmentsUniform:
		return fmt.Sprintf("uniform × %d", h.Count)
	case domain.SegmentsGeometric:
		return fmt.Sprintf("geometric from %.4g, q = %.4f", h.Start, h.Ratio)
	}
	return h.Kind.String()
}
