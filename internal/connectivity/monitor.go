package connectivity

import (
	"context"
	"log"
	"sync"
	"time"
)

type Status int

const (
	Unknown Status = iota
	Online
	Offline
)

func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Monitor tracks whether the commerce authority is reachable. Hooks
// registered with OnReconnect run once for every transition into Online,
// including the first successful probe after startup.
type Monitor struct {
	probe    func(ctx context.Context) error
	interval time.Duration

	mu     sync.Mutex
	status Status
	hooks  []func(ctx context.Context)
}

func New(probe func(ctx context.Context) error, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{probe: probe, interval: interval}
}

func (m *Monitor) OnReconnect(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Offline reports true only after a failed observation, so callers still
// attempt the network while the status is unknown.
func (m *Monitor) Offline() bool {
	return m.Status() == Offline
}

func (m *Monitor) MarkOffline() {
	m.Set(context.Background(), false)
}

// Set records an observation. Reconnect hooks run synchronously on the
// caller's goroutine after the status has been updated.
func (m *Monitor) Set(ctx context.Context, online bool) {
	next := Offline
	if online {
		next = Online
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	hooks := append([]func(context.Context){}, m.hooks...)
	m.mu.Unlock()

	if prev == next {
		return
	}
	log.Printf("[connectivity] %s -> %s", prev, next)
	if next != Online {
		return
	}
	for _, hook := range hooks {
		hook(ctx)
	}
}

// Check probes once and records the outcome.
func (m *Monitor) Check(ctx context.Context) {
	err := m.probe(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil && m.Status() != Offline {
		log.Printf("[connectivity] WARN: authority probe failed: %v", err)
	}
	m.Set(ctx, err == nil)
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
