package engine

import (
	"io"

	"github.com/aretw0/reactor/pkg/domain"
)

// ExportGeometry writes the solid of g.
func (e *Engine) ExportGeometry(g *domain.ReactorGeometry, w io.Writer, format domain.ExportFormat) error {
	if g == nil || g.Solid().IsZero() {
		return domain.NewError("export.geometry", domain.KindInvalidParameter, "geometry has not been created")
	}
	if err := e.kernel.Export(g.Solid(), w, format); err != nil {
		return kernelErr("export.geometry", err)
	}
	return nil
}

// ExportMesh writes the computed mesh m.
func (e *Engine) ExportMesh(m *domain.ReactorMesh, w io.Writer, format domain.ExportFormat) error {
	if m == nil || m.Handle().IsZero() {
		return domain.NewError("export.mesh", domain.KindInvalidParameter, "mesh has not been computed")
	}
	if err := e.kernel.ExportMesh(m.Handle(), w, format); err != nil {
		return kernelErr("export.mesh", err)
	}
	return nil
}
