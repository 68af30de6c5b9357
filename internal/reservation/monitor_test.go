package reservation

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

func TestNewIdleMonitorValidatesInputs(t *testing.T) {
	_, err := NewIdleMonitor(0, func() {})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = NewIdleMonitor(time.Second, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestIdleMonitorFiresExactlyOnce(t *testing.T) {
	var fired atomic.Int32
	done := make(chan struct{})

	monitor, err := NewIdleMonitor(20*time.Millisecond, func() {
		if fired.Add(1) == 1 {
			close(done)
		}
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never expired")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, MonitorExpired, monitor.State())
}

func TestTouchResetsCountdown(t *testing.T) {
	fired := make(chan struct{}, 1)
	monitor, err := NewIdleMonitor(80*time.Millisecond, func() {
		fired <- struct{}{}
	})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		require.NoError(t, monitor.Touch())
	}
	select {
	case <-fired:
		t.Fatal("monitor expired despite regular activity")
	default:
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never expired after activity stopped")
	}
}

func TestTouchAfterExpiryIsRejected(t *testing.T) {
	done := make(chan struct{})
	monitor, err := NewIdleMonitor(10*time.Millisecond, func() { close(done) })
	require.NoError(t, err)

	<-done
	err = monitor.Touch()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestStopSuppressesCallback(t *testing.T) {
	var fired atomic.Int32
	monitor, err := NewIdleMonitor(30*time.Millisecond, func() { fired.Add(1) })
	require.NoError(t, err)

	monitor.Stop()
	assert.Equal(t, MonitorStopped, monitor.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	err = monitor.Touch()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	// stopping again stays terminal
	monitor.Stop()
	assert.Equal(t, MonitorStopped, monitor.State())
}
