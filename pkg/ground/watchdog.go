package ground

import (
	"sort"
	"sync"
	"time"
)

// DefaultWatchdogTimeout is the default Watchdog.Timeout.
const DefaultWatchdogTimeout = time.Second

// Watchdog tracks named liveness timers.
type Watchdog struct {
	Timeout time.Duration
	// Now is the clock, time.Now when nil.
	Now func() time.Time

	lock sync.Mutex
	fed  map[string]time.Time
}

// NewWatchdog creates a Watchdog.
func NewWatchdog(timeout time.Duration) *Watchdog {
	return &Watchdog{Timeout: timeout, fed: make(map[string]time.Time)}
}

func (w *Watchdog) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Feed resets the timer of name.
func (w *Watchdog) Feed(name string) {
	now := w.now()
	w.lock.Lock()
	if w.fed == nil {
		w.fed = make(map[string]time.Time)
	}
	w.fed[name] = now
	w.lock.Unlock()
}

// Alive indicates name was fed within Timeout.
func (w *Watchdog) Alive(name string) bool {
	now := w.now()
	w.lock.Lock()
	defer w.lock.Unlock()
	at, ok := w.fed[name]
	return ok && now.Sub(at) <= w.Timeout
}

// Liveness is the state of one timer.
type Liveness struct {
	Name  string        `json:"name"`
	Alive bool          `json:"alive"`
	Since time.Duration `json:"since"`
}

// Snapshot returns every timer sorted by name.
func (w *Watchdog) Snapshot() []Liveness {
	now := w.now()
	w.lock.Lock()
	list := make([]Liveness, 0, len(w.fed))
	for name, at := range w.fed {
		since := now.Sub(at)
		list = append(list, Liveness{Name: name, Alive: since <= w.Timeout, Since: since})
	}
	w.lock.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
