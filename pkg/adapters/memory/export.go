package memory

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/reactor/pkg/domain"
)

type shapeDoc struct {
	Kind     string       `yaml:"kind"`
	ID       uint64       `yaml:"id"`
	Vertices [][3]float64 `yaml:"vertices"`
	Edges    []edgeDoc    `yaml:"edges"`
	Faces    []faceDoc    `yaml:"faces"`
	Groups   []groupDoc   `yaml:"groups,omitempty"`
}

type edgeDoc struct {
	Kind   string    `yaml:"kind"`
	From   int       `yaml:"from"`
	To     int       `yaml:"to"`
	Center []float64 `yaml:"center,omitempty"`
	Radius float64   `yaml:"radius,omitempty"`
	Sweep  float64   `yaml:"sweep,omitempty"`
}

type faceDoc struct {
	Kind  string `yaml:"kind"`
	Edges []int  `yaml:"edges"`
}

type groupDoc struct {
	Name     string `yaml:"name"`
	Faces    int    `yaml:"faces"`
	Elements int    `yaml:"elements,omitempty"`
}

func vec(p r3.Vec) [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

// Export writes the shape topology as YAML, the only format this kernel produces.
func (s *Session) Export(h domain.Shape, w io.Writer, format domain.ExportFormat) error {
	if format != domain.FormatYAML {
		return fmt.Errorf("export: format %q is not supported by the memory kernel", format)
	}
	sh, err := s.get(h)
	if err != nil {
		return err
	}
	doc := shapeDoc{Kind: sh.typ.String(), ID: sh.id}

	vIndex := map[uint64]int{}
	for i, v := range s.subShapes(sh, domain.ShapeVertex) {
		vIndex[v.id] = i
		doc.Vertices = append(doc.Vertices, vec(v.pt))
	}
	eIndex := map[uint64]int{}
	for i, e := range s.subShapes(sh, domain.ShapeEdge) {
		eIndex[e.id] = i
		ed := edgeDoc{Kind: "line", From: vIndex[e.v0], To: vIndex[e.v1]}
		if e.crv.kind == curveArc {
			c := vec(e.crv.c)
			ed.Kind, ed.Center, ed.Radius, ed.Sweep = "arc", c[:], e.crv.r, e.crv.sweep
		}
		doc.Edges = append(doc.Edges, ed)
	}
	for _, f := range s.subShapes(sh, domain.ShapeFace) {
		fd := faceDoc{Kind: "plane"}
		if l := f.face.lat; l != nil {
			fd.Kind = "lateral"
			fd.Edges = []int{eIndex[l.bottom], eIndex[l.right], eIndex[l.top], eIndex[l.left]}
		} else {
			for _, le := range f.face.loop {
				fd.Edges = append(fd.Edges, eIndex[le.edge])
			}
		}
		doc.Faces = append(doc.Faces, fd)
	}
	for _, g := range s.shapes {
		if g.grp != nil && g.grp.main == sh.id {
			doc.Groups = append(doc.Groups, groupDoc{Name: g.grp.name, Faces: len(g.grp.members)})
		}
	}
	sort.Slice(doc.Groups, func(i, j int) bool { return doc.Groups[i].Name < doc.Groups[j].Name })
	return encode(w, doc)
}

type meshDoc struct {
	Name     string       `yaml:"name"`
	Nodes    [][3]float64 `yaml:"nodes"`
	Elements []elementDoc `yaml:"elements"`
	Groups   []groupDoc   `yaml:"groups,omitempty"`
}

type elementDoc struct {
	Type  string  `yaml:"type"`
	Nodes []int   `yaml:"nodes,flow"`
	Ratio float64 `yaml:"aspect_ratio,omitempty"`
}

// ExportMesh writes a computed mesh as YAML.
func (s *Session) ExportMesh(h domain.MeshHandle, w io.Writer, format domain.ExportFormat) error {
	if format != domain.FormatYAML {
		return fmt.Errorf("export mesh: format %q is not supported by the memory kernel", format)
	}
	m, err := s.mesh(h)
	if err != nil {
		return err
	}
	if m.result == nil {
		return fmt.Errorf("export mesh: mesh %d is not computed", h.ID)
	}
	doc := meshDoc{Name: m.name}
	for _, p := range m.result.nodes {
		doc.Nodes = append(doc.Nodes, vec(p))
	}
	for _, e := range m.result.elements {
		doc.Elements = append(doc.Elements, elementDoc{Type: e.kind.String(), Nodes: e.nodes, Ratio: e.ratio})
	}
	for _, g := range m.result.groups {
		doc.Groups = append(doc.Groups, groupDoc{Name: g.name, Faces: g.faces, Elements: g.elements})
	}
	return encode(w, doc)
}

func encode(w io.Writer, doc any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return enc.Close()
}
