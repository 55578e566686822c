package engine

import (
	"fmt"
	"math"

	"github.com/aretw0/reactor/pkg/domain"
)

// Progression describes radial rings whose radial and azimuthal element sizes
// grow together, starting at the central square.
type Progression struct {
	// Divisions is the number of segments along one square side.
	Divisions int
	// R0 is the radius of the first ring.
	R0 float64
	// Ratio is the ring growth factor q.
	Ratio float64
	// Rings is the (fractional) number of rings between R0 and the rim.
	Rings float64
	// MinLength is the first radial step, r0·(q − 1).
	MinLength float64
	// MaxLength is the last radial step before the rim.
	MaxLength float64
}

// Ring returns the radius of ring i.
func (p Progression) Ring(i float64) float64 {
	return p.R0 * math.Pow(p.Ratio, i)
}

func (p Progression) String() string {
	return fmt.Sprintf("N=%d r0=%.4g q=%.4g rings=%.3g dr=[%.4g, %.4g]",
		p.Divisions, p.R0, p.Ratio, p.Rings, p.MinLength, p.MaxLength)
}

// GeometricProgression computes the radial spacing for a reactor of the given
// radius around a square of side squareWidth meshed at meshSize.
func GeometricProgression(radius, squareWidth, meshSize float64) (Progression, error) {
	if !(radius > 0) || !(squareWidth > 0) || !(meshSize > 0) {
		return Progression{}, domain.NewError("progression", domain.KindInvalidParameter,
			"radius, square width and mesh size must be positive (got %g, %g, %g)", radius, squareWidth, meshSize)
	}
	n := int(math.Ceil(squareWidth/meshSize - 1e-9))
	p := Progression{
		Divisions: n,
		R0:        meshSize * 4 * float64(n) / (2 * math.Pi),
		Ratio:     1 + 2*math.Pi/(4*float64(n)),
	}
	p.Rings = math.Log(radius/p.R0) / math.Log(p.Ratio)
	p.MinLength = p.Ring(1) - p.Ring(0)
	p.MaxLength = p.Ring(p.Rings) - p.Ring(p.Rings-1)
	return p, nil
}
