// internal/game/scheduler.go
//
// Deferred-task abstraction used by the engine for its two timed transitions
// (reset shuffle-in, mismatch flip-back). Production code runs on wall-clock
// timers; tests inject a manual scheduler and advance time explicitly.

package game

import "time"

// Timer is a handle to a scheduled task.
type Timer interface {
	// Stop prevents the task from running. It reports false if the task
	// already ran or was stopped.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallScheduler schedules on real time via time.AfterFunc.
type WallScheduler struct{}

// AfterFunc implements Scheduler.
func (WallScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
