// Package engine provides the tick-based simulation loop and the
// simulation wiring that drives decay and exchange resolution.
package engine

import (
	"log/slog"
	"time"
)

// Engine drives the simulation forward along a discrete time axis.
// Each tick executes to completion before the next begins; a tick
// that returns an error aborts the run, since a partially applied
// tick would violate conservation.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base tick interval for paced runs
	Running  bool

	// OnTick runs every tick. An error is fatal to the run.
	OnTick func(tick uint64) error
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: time.Second,
	}
}

// Run starts the paced simulation loop. Blocks until Stop is called
// or a tick fails.
func (e *Engine) Run() error {
	e.Running = true
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed)

	for e.Running {
		if e.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		if err := e.step(); err != nil {
			e.Running = false
			slog.Error("tick aborted", "tick", e.Tick, "error", err)
			return err
		}

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return nil
}

// RunFor advances the simulation by n ticks as fast as possible.
func (e *Engine) RunFor(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := e.step(); err != nil {
			slog.Error("tick aborted", "tick", e.Tick, "error", err)
			return err
		}
	}
	return nil
}

// Stop halts the paced simulation loop.
func (e *Engine) Stop() {
	e.Running = false
}

// step advances the simulation by one tick.
func (e *Engine) step() error {
	e.Tick++
	if e.OnTick != nil {
		return e.OnTick(e.Tick)
	}
	return nil
}
