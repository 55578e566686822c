package domain

import "fmt"

// BuildStage identifies a step of a geometry build.
type BuildStage string

const (
	StageValidating      BuildStage = "validating"
	StageBuildingProfile BuildStage = "building_profile"
	StageExtruding       BuildStage = "extruding"
	StageFusingChimney   BuildStage = "fusing_chimney"
	StageGroupingFaces   BuildStage = "grouping_faces"
	StageDone            BuildStage = "done"
	StageFailed          BuildStage = "failed"
)

var stageOrder = map[BuildStage]int{
	StageValidating:      0,
	StageBuildingProfile: 1,
	StageExtruding:       2,
	StageFusingChimney:   3,
	StageGroupingFaces:   4,
	StageDone:            5,
}

// Terminal reports whether no transition leaves the stage.
func (s BuildStage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// BuildState captures the progress of a single geometry build.
// Stages only move forward; Failed is reachable from any non-terminal stage.
type BuildState struct {
	// Stage is the current stage.
	Stage BuildStage

	// History lists every stage entered, in order.
	History []BuildStage
}

// NewBuildState creates a state positioned at Validating.
func NewBuildState() *BuildState {
	return &BuildState{
		Stage:   StageValidating,
		History: []BuildStage{StageValidating},
	}
}

// Advance moves to next. It rejects re-entering a stage, skipping backwards
// and leaving a terminal stage.
func (b *BuildState) Advance(next BuildStage) error {
	if b.Stage.Terminal() {
		return fmt.Errorf("build already %s", b.Stage)
	}
	if next != StageFailed {
		cur, ok := stageOrder[b.Stage]
		want, known := stageOrder[next]
		if !ok || !known {
			return fmt.Errorf("unknown stage %q", next)
		}
		if want != cur+1 {
			return fmt.Errorf("invalid transition %s -> %s", b.Stage, next)
		}
	}
	b.Stage = next
	b.History = append(b.History, next)
	return nil
}

// Fail moves the build to Failed. Failing a terminal build is a no-op.
func (b *BuildState) Fail() {
	if b.Stage.Terminal() {
		return
	}
	b.Stage = StageFailed
	b.History = append(b.History, StageFailed)
}
