package domain

import (
	"path/filepath"
	"strings"
)

// ExportFormat names a mesh or CAD file format understood by a kernel.
type ExportFormat string

const (
	FormatSTL  ExportFormat = "stl"
	FormatVTK  ExportFormat = "vtk"
	FormatUNV  ExportFormat = "unv"
	FormatSTEP ExportFormat = "step"
	FormatBREP ExportFormat = "brep"
	FormatYAML ExportFormat = "yaml"
)

var extensions = map[string]ExportFormat{
	".stl":  FormatSTL,
	".vtk":  FormatVTK,
	".unv":  FormatUNV,
	".step": FormatSTEP,
	".stp":  FormatSTEP,
	".brep": FormatBREP,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
}

// FormatFromPath infers the export format from a file extension.
func FormatFromPath(path string) (ExportFormat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", NewError("FormatFromPath", KindInvalidParameter, "unsupported export extension %q", ext)
}
