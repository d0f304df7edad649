package ground

import (
	"context"

	"github.com/golang/glog"
)

// Handler consumes station events.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc is func form of Handler.
type HandlerFunc func(Event)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ev Event) { f(ev) }

// Monitor feeds station events to the view, the watchdog and extra
// handlers, in that order, from a single goroutine.
type Monitor struct {
	View     *View
	Watchdog *Watchdog
	Handlers []Handler

	events <-chan Event
}

// NewMonitor creates a Monitor reading events.
func NewMonitor(events <-chan Event, view *View, watchdog *Watchdog) *Monitor {
	return &Monitor{View: view, Watchdog: watchdog, events: events}
}

// Add appends handlers.
func (m *Monitor) Add(handlers ...Handler) *Monitor {
	m.Handlers = append(m.Handlers, handlers...)
	return m
}

// Handle processes one event.
func (m *Monitor) Handle(ev Event) {
	if m.View != nil {
		m.View.Apply(ev)
	}
	if m.Watchdog != nil {
		m.Watchdog.Feed(NodeName(ev))
	}
	for _, h := range m.Handlers {
		h.HandleEvent(ev)
	}
}

// Snapshot returns the view with node liveness.
func (m *Monitor) Snapshot() Snapshot {
	var s Snapshot
	if m.View != nil {
		s = m.View.Snapshot()
	}
	if m.Watchdog != nil {
		s.Nodes = m.Watchdog.Snapshot()
	}
	return s
}

// Run implements framework.Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.events:
			if !ok {
				glog.V(2).Info("monitor: events closed")
				return nil
			}
			m.Handle(ev)
		}
	}
}
