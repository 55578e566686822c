package engine

import (
	"context"
	"fmt"

	"github.com/aretw0/reactor/pkg/domain"
	"github.com/aretw0/reactor/pkg/ports"
)

// profileObjective builds the base profile for fractions x in k, meshes it
// with quadrangles and geometric radial spacing and returns the worst aspect
// ratio minus one.
func profileObjective(ctx context.Context, k ports.KernelSession, dims domain.Dimensions, meshSize float64, x domain.Vector2, tol float64) (float64, error) {
	if err := validateFractions(x.X, x.Y); err != nil {
		return 0, err
	}
	width := squareWidthFor(dims.Radius(), x.X, meshSize)
	if err := checkLayout(dims, width, x.Y); err != nil {
		return 0, err
	}

	base, err := buildBase(k, dims, width, x.Y)
	if err != nil {
		return 0, err
	}
	mesh, err := k.NewMesh(base, "trial")
	if err != nil {
		return 0, kernelErr("trial.mesh", err)
	}
	if _, err := planSegments(k, mesh, meshPlan{
		shape:       base,
		dims:        dims,
		squareWidth: width,
		meshSize:    meshSize,
		geometric:   true,
	}, tol); err != nil {
		return 0, err
	}
	if err := k.Compute(ctx, mesh); err != nil {
		return 0, domain.WrapError("trial.compute", domain.KindMeshCompute, err)
	}
	ratios, err := k.AspectRatios(mesh)
	if err != nil {
		return 0, kernelErr("trial.aspect_ratios", err)
	}
	stats := domain.Summarize(ratios)
	if stats.Count == 0 {
		return 0, domain.NewError("trial.aspect_ratios", domain.KindMeshCompute, "mesh has no elements")
	}
	return stats.Objective(), nil
}

// trialKey identifies a trial for the cache. Only the profile inputs matter.
// Fractions are rounded to 1e-9 so finite-difference neighbours keep apart.
func trialKey(dims domain.Dimensions, meshSize float64, x domain.Vector2) string {
	return fmt.Sprintf("trial:r=%.9g:c=%.9g:ms=%.9g:sq=%.9f:k=%.9f",
		dims.Radius(), dims.ChimneyWidth(), meshSize, x.X, x.Y)
}
