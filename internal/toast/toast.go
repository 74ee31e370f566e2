// Package toast holds the single transient notification shown to a client.
package toast

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// DefaultDuration is how long a toast stays visible.
const DefaultDuration = 3 * time.Second

// Kind is the toast style.
type Kind string

// Toast kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Toast is the current notification.
type Toast struct {
	Message string `json:"message"`
	Visible bool   `json:"visible"`
	Kind    Kind   `json:"type"`
}

// Notifier has one slot. Showing a toast replaces the current one and
// restarts the hide timer.
type Notifier struct {
	duration time.Duration

	mu        sync.Mutex
	current   Toast
	gen       uint64
	timer     *time.Timer
	listeners map[int]func(Toast)
	nextID    int
}

// New creates a Notifier. A non-positive duration means DefaultDuration.
func New(duration time.Duration) *Notifier {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Notifier{
		duration:  duration,
		current:   Toast{Kind: KindSuccess},
		listeners: make(map[int]func(Toast)),
	}
}

// Show makes message visible. An empty kind means success.
func (n *Notifier) Show(message string, kind Kind) {
	if kind == "" {
		kind = KindSuccess
	}

	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.current = Toast{Message: message, Visible: true, Kind: kind}
	n.timer = time.AfterFunc(n.duration, func() { n.hide(gen) })
	snap, listeners := n.current, n.listenersLocked()
	n.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Success shows a success toast.
func (n *Notifier) Success(message string) { n.Show(message, KindSuccess) }

// Error shows an error toast.
func (n *Notifier) Error(message string) { n.Show(message, KindError) }

// Current returns the toast as it is now.
func (n *Notifier) Current() Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// OnChange registers fn for every show and hide. The returned func
// unregisters it.
func (n *Notifier) OnChange(fn func(Toast)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// Close stops the pending hide timer.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
}

// hide runs when a timer fires. A timer from a replaced toast does nothing.
func (n *Notifier) hide(gen uint64) {
	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.current.Visible = false
	n.timer = nil
	snap, listeners := n.current, n.listenersLocked()
	n.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (n *Notifier) listenersLocked() []func(Toast) {
	return slices.Collect(maps.Values(n.listeners))
}
