package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter  EventType = "stage_enter"
	EventStageFailed EventType = "stage_failed"
	EventTrial       EventType = "trial"
	EventMeshCompute EventType = "mesh_compute"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	BuildID   string    `json:"build_id"`
}

// StageEvent represents a build entering (or failing in) a stage.
type StageEvent struct {
	EventBase
	Stage BuildStage `json:"stage"`
	Err   error      `json:"-"`
}

// TrialEvent represents one objective evaluation of the optimizer.
type TrialEvent struct {
	EventBase
	SquareFraction    float64 `json:"square_fraction"`
	CurvatureFraction float64 `json:"curvature_fraction"`
	Objective         float64 `json:"objective"`
	Penalized         bool    `json:"penalized,omitempty"`
	Cached            bool    `json:"cached,omitempty"`
}

// MeshEvent represents a finished mesh computation.
type MeshEvent struct {
	EventBase
	Duration time.Duration `json:"duration"`
	Elements int           `json:"elements"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for build observability.
type LifecycleHooks struct {
	OnStageEnter  func(context.Context, *StageEvent)
	OnStageFailed func(context.Context, *StageEvent)
	OnTrial       func(context.Context, *TrialEvent)
	OnMeshCompute func(context.Context, *MeshEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStageEnter:  chain(h.OnStageEnter, other.OnStageEnter),
		OnStageFailed: chain(h.OnStageFailed, other.OnStageFailed),
		OnTrial:       chain(h.OnTrial, other.OnTrial),
		OnMeshCompute: chain(h.OnMeshCompute, other.OnMeshCompute),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
