// Package framework provides the run-time scaffolding shared by the
// controller and the ground tools.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Tickable is advanced by a Ticker with the time elapsed since the
// previous tick. Update must not block.
type Tickable interface {
	Update(elapsed time.Duration)
}

// TickFunc is the func form of Tickable.
type TickFunc func(elapsed time.Duration)

// Update implements Tickable.
func (f TickFunc) Update(elapsed time.Duration) {
	f(elapsed)
}
