package domain

import "fmt"

// FaceGroups are the named boundary-condition groups of a reactor solid.
type FaceGroups struct {
	Inlet  Shape
	Outlet Shape
	Wall   Shape
}

// Complete reports whether all three groups are set.
func (g FaceGroups) Complete() bool {
	return !g.Inlet.IsZero() && !g.Outlet.IsZero() && !g.Wall.IsZero()
}

// Dimensions are the resolved physical sizes of a build.
type Dimensions struct {
	Center Vector3
	// Reactor is (radius, height).
	Reactor Vector2
	// Chimney is (width, height).
	Chimney Vector2
}

// Radius of the reactor body.
func (d Dimensions) Radius() float64 { return d.Reactor.X }

// Height of the reactor body.
func (d Dimensions) Height() float64 { return d.Reactor.Y }

// ChimneyWidth is the side of the chimney cross-section.
func (d Dimensions) ChimneyWidth() float64 { return d.Chimney.X }

// ChimneyHeight is the extrusion length of the chimney.
func (d Dimensions) ChimneyHeight() float64 { return d.Chimney.Y }

// TotalHeight is the height of the outlet plane above the base.
func (d Dimensions) TotalHeight() float64 { return d.Reactor.Y + d.Chimney.Y }

// Profile holds the derived 2-D layout parameters of a build.
type Profile struct {
	SquareFraction    float64
	CurvatureFraction float64
	// MeshSize is the adjusted size: the chimney width divided by an integer count.
	MeshSize float64
	// SquareWidth is always an integer multiple of MeshSize.
	SquareWidth float64
	// Optimized is set when the fractions came from the optimizer (or its fallback).
	Optimized bool
}

// ReactorGeometry is a finished, grouped reactor solid. It is immutable;
// the solid handle is owned by the kernel session that produced it.
type ReactorGeometry struct {
	buildID string
	solid   Shape
	groups  FaceGroups
	dims    Dimensions
	profile Profile
}

// NewReactorGeometry freezes a geometry record.
func NewReactorGeometry(buildID string, solid Shape, groups FaceGroups, dims Dimensions, profile Profile) *ReactorGeometry {
	return &ReactorGeometry{
		buildID: buildID,
		solid:   solid,
		groups:  groups,
		dims:    dims,
		profile: profile,
	}
}

func (g *ReactorGeometry) BuildID() string        { return g.buildID }
func (g *ReactorGeometry) Solid() Shape           { return g.solid }
func (g *ReactorGeometry) Groups() FaceGroups     { return g.groups }
func (g *ReactorGeometry) Dimensions() Dimensions { return g.dims }
func (g *ReactorGeometry) Profile() Profile       { return g.profile }
func (g *ReactorGeometry) MeshSize() float64      { return g.profile.MeshSize }
func (g *ReactorGeometry) SquareWidth() float64   { return g.profile.SquareWidth }

func (g *ReactorGeometry) String() string {
	return fmt.Sprintf("reactor(R=%g H=%g chimney=%gx%g square=%g mesh=%g)",
		g.dims.Radius(), g.dims.Height(), g.dims.ChimneyWidth(), g.dims.ChimneyHeight(),
		g.profile.SquareWidth, g.profile.MeshSize)
}
