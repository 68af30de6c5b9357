package reservation

import (
	"sync"
	"time"

	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

// MonitorState is the lifecycle of an IdleMonitor.
type MonitorState int

const (
	// MonitorIdle means the countdown is armed and waiting for activity.
	MonitorIdle MonitorState = iota
	// MonitorExpired means the timeout elapsed and the callback ran. Terminal.
	MonitorExpired
	// MonitorStopped means the monitor was suspended before expiring. Terminal.
	MonitorStopped
)

// IdleMonitor fires a callback exactly once after a period with no activity.
// Touch resets the countdown; Stop suspends it. Both Expired and Stopped are
// terminal: a finished monitor cannot be re-armed, build a fresh one instead.
type IdleMonitor struct {
	mu       sync.Mutex
	timer    *time.Timer
	timeout  time.Duration
	onExpire func()
	state    MonitorState
}

// NewIdleMonitor builds and arms an inactivity monitor.
func NewIdleMonitor(timeout time.Duration, onExpire func()) (*IdleMonitor, error) {
	if timeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "timeout must be positive")
	}
	if onExpire == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration callback is required")
	}

	m := &IdleMonitor{
		timeout:  timeout,
		onExpire: onExpire,
		state:    MonitorIdle,
	}
	m.timer = time.AfterFunc(timeout, m.expire)
	return m, nil
}

// Touch records activity and resets the countdown. Touching an expired or
// stopped monitor is rejected.
func (m *IdleMonitor) Touch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case MonitorExpired:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "monitor already expired")
	case MonitorStopped:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "monitor is stopped")
	}

	m.timer.Stop()
	m.timer = time.AfterFunc(m.timeout, m.expire)
	return nil
}

// Stop suspends the countdown without firing the callback.
func (m *IdleMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MonitorIdle {
		return
	}
	m.timer.Stop()
	m.state = MonitorStopped
}

// State returns the current lifecycle state.
func (m *IdleMonitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *IdleMonitor) expire() {
	m.mu.Lock()
	if m.state != MonitorIdle {
		m.mu.Unlock()
		return
	}
	m.state = MonitorExpired
	callback := m.onExpire
	m.mu.Unlock()

	callback()
}
