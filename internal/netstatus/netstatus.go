// Package netstatus watches backend reachability and publishes
// online/offline transitions, typically into the offline mutation queue.
package netstatus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is anything that can cheaply confirm the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor polls the pinger on an interval and invokes the registered
// callbacks whenever the online flag flips.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      *logrus.Logger

	mu     sync.Mutex
	online bool
	subs   []func(online bool)
}

func NewMonitor(pinger Pinger, interval time.Duration, log *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{pinger: pinger, interval: interval, log: log}
}

// Notify registers a transition callback. Callbacks also fire on the first
// check so consumers learn the initial state.
func (m *Monitor) Notify(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run polls until ctx is cancelled. The first check happens immediately.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.check(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			m.check(ctx, false)
		}
	}
}

func (m *Monitor) check(ctx context.Context, force bool) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	err := m.pinger.Ping(pingCtx)
	cancel()
	online := err == nil

	m.mu.Lock()
	changed := online != m.online || force
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.log.Info("netstatus: backend reachable")
	} else {
		m.log.WithError(err).Warn("netstatus: backend unreachable")
	}
	for _, fn := range subs {
		fn(online)
	}
}
