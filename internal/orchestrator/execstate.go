package orchestrator

import "sync/atomic"

// ExecutionState exposes the read-only flags of the surrounding trial
// execution framework. They gate disposal and recreation so a resource is
// never destroyed mid-use, and StopRequested doubles as the shared stop
// signal checked before batch windows and fallback retries.
type ExecutionState interface {
	Running() bool
	Paused() bool
	StopRequested() bool
	LoadingModel() bool
}

// StaticExecState is a flag holder usable by the harness and by tests.
type StaticExecState struct {
	running atomic.Bool
	paused  atomic.Bool
	stop    atomic.Bool
	loading atomic.Bool
}

func NewStaticExecState() *StaticExecState { return &StaticExecState{} }

func (s *StaticExecState) Running() bool       { return s.running.Load() }
func (s *StaticExecState) Paused() bool        { return s.paused.Load() }
func (s *StaticExecState) StopRequested() bool { return s.stop.Load() }
func (s *StaticExecState) LoadingModel() bool  { return s.loading.Load() }

func (s *StaticExecState) SetRunning(v bool)       { s.running.Store(v) }
func (s *StaticExecState) SetPaused(v bool)        { s.paused.Store(v) }
func (s *StaticExecState) SetStopRequested(v bool) { s.stop.Store(v) }
func (s *StaticExecState) SetLoadingModel(v bool)  { s.loading.Store(v) }
