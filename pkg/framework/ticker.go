package framework

import (
	"context"
	"log"
	"time"

	"github.com/golang/glog"
)

// DefaultTickInterval is used when Ticker.Interval is not set.
const DefaultTickInterval = time.Millisecond

// Ticker drives Tickables at a fixed period from a single goroutine.
// Targets are updated in the order they were added.
type Ticker struct {
	Interval time.Duration

	targets []Tickable
	ticks   uint64
	overrun uint64
}

// NewTicker creates a Ticker.
func NewTicker(interval time.Duration, targets ...Tickable) *Ticker {
	return (&Ticker{Interval: interval}).Add(targets...)
}

// Add appends targets.
func (t *Ticker) Add(targets ...Tickable) *Ticker {
	t.targets = append(t.targets, targets...)
	return t
}

// Ticks returns the number of completed ticks.
func (t *Ticker) Ticks() uint64 {
	return t.ticks
}

// Overruns returns the number of ticks which took longer than Interval.
func (t *Ticker) Overruns() uint64 {
	return t.overrun
}

// Step runs one tick with the given elapsed time.
func (t *Ticker) Step(elapsed time.Duration) {
	for _, target := range t.targets {
		target.Update(elapsed)
	}
	t.ticks++
}

// Run implements Runnable.
func (t *Ticker) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	timer := time.NewTicker(interval)
	defer timer.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			elapsed := now.Sub(last)
			last = now
			t.Step(elapsed)
			if cost := time.Since(now); cost > interval {
				t.overrun++
				glog.V(2).Infof("tick %d overrun: %s > %s", t.ticks, cost, interval)
			}
		}
	}
}

// RunOrFail is intended to be used in main to simply run the ticker.
func (t *Ticker) RunOrFail(ctx context.Context) {
	if err := t.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}
