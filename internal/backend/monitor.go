package backend

import (
	"context"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// DefaultPollInterval is how often the monitor retries /health.
const DefaultPollInterval = 5 * time.Second

// healthCheckTimeout bounds a single probe so a hung collaborator does not
// stall the polling loop.
const healthCheckTimeout = 3 * time.Second

// Monitor watches collaborator reachability. It polls /health on a fixed
// interval and notifies listeners on connect/disconnect transitions.
type Monitor struct {
	client   *Client
	interval time.Duration

	mu        sync.RWMutex
	connected bool
	listeners []func(connected bool)

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor for the given client. A non-positive interval
// selects DefaultPollInterval.
func NewMonitor(client *Client, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		client:   client,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Connected reports the last observed state.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// OnChange registers a listener invoked on every connect/disconnect
// transition. Listeners run on the monitor goroutine.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// CheckNow forces an immediate probe instead of waiting for the next tick.
func (m *Monitor) CheckNow() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Start begins polling in the background. It probes once immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.probe(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx)
			case <-m.kick:
				m.probe(ctx)
			}
		}
	}()
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, err := m.client.Health(probeCtx)
	now := err == nil

	m.mu.Lock()
	was := m.connected
	m.connected = now
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if was == now {
		return
	}
	if now {
		log.Info().Str("url", m.client.baseURL).Msg("backend connected")
	} else {
		log.Warn().Str("url", m.client.baseURL).Err(err).Msg("backend disconnected")
	}
	for _, fn := range listeners {
		fn(now)
	}
}
