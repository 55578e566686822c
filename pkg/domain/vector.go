package domain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vector2 is a planar coordinate pair.
// Reactor and chimney dimensions store the radius (or width) in X and the height in Y.
type Vector2 = r2.Vec

// Vector3 is a point or a direction in model space.
type Vector3 = r3.Vec

// V2 is shorthand for a Vector2 literal.
func V2(x, y float64) Vector2 {
	return Vector2{X: x, Y: y}
}

// V3 is shorthand for a Vector3 literal.
func V3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Finite2 reports whether both components of v are finite.
func Finite2(v Vector2) bool {
	return finite(v.X) && finite(v.Y)
}

// Finite3 reports whether all components of v are finite.
func Finite3(v Vector3) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
