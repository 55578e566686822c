/*
Package reactor builds parametric "reactor + chimney" solids and the structured
hexahedral meshes used to simulate flow through them.

A reactor is a cylinder of radius R and height H with a square chimney of width
c and height hc standing on its top face. The base disk is partitioned into a
central square with arc-rounded sides, subdivided into a grid around the
chimney footprint, and four radial wedges reaching the rim. Extruding that
profile gives a body that meshes with quadrilaterals and hexahedra only.

# Concept

The Maker owns one kernel session (the in-memory kernel by default, or any
ports.SessionFactory) and exposes four operations:

  - CreateGeometry validates the parameters, builds the partitioned profile,
    extrudes it, fuses the chimney and groups the boundary faces into inlet,
    outlet and wall.
  - Mesh seeds every characteristic edge with a segment count (or a geometric
    progression on the radial edges) and computes the mesh.
  - Optimize searches the square and curvature fractions that minimise the
    worst element aspect ratio. Trials run in independent sessions, optionally
    in parallel and memoised in a ports.TrialCache.
  - ExportGeometry and ExportMesh pass the results to the kernel writers.

Fallible operations return a domain.Result. Errors carry a domain.ErrorKind
and can be matched with domain.IsKind or errors.Is against the sentinels.

# Usage

	ctx := context.Background()
	maker, err := reactor.New(ctx, reactor.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer maker.Close()

	p := domain.DefaultGeometryParams()
	g, err := maker.CreateGeometry(ctx, p).Unwrap()
	if err != nil {
		log.Fatal(err)
	}
	mesh := maker.Mesh(ctx, g, p.Optimize).Must()

	f, _ := os.Create("reactor.yaml")
	defer f.Close()
	if err := maker.ExportMesh(mesh, f, domain.FormatYAML); err != nil {
		log.Fatal(err)
	}

When Optimize is set in the parameters, CreateGeometry runs the search first and
falls back to the configured fractions if it fails; the build itself never
fails because of the optimizer.
*/
package reactor
