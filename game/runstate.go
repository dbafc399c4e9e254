package game

import "sync/atomic"

// RunState is the generation loop's lifecycle.
type RunState int32

const (
	Stopped RunState = iota
	Running
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// runState is shared by the controller and its loop. Transitions only move
// Stopped → Running → Stopping → Stopped.
type runState struct {
	v atomic.Int32
}

func (r *runState) load() RunState { return RunState(r.v.Load()) }

func (r *runState) transition(from, to RunState) bool {
	return r.v.CompareAndSwap(int32(from), int32(to))
}
