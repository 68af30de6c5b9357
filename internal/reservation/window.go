package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/seralvarez/casillero-backend/pkg/config"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

// windowStore is the slice of the Redis client the windows need.
type windowStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
	ReservationKey(userID string) string
}

// WindowDTO is the countdown served to the storefront. RemainingSeconds
// clamps at 0 and never goes negative.
type WindowDTO struct {
	Active           bool      `json:"active"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	DurationSeconds  int       `json:"duration_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// Windows tracks per-user reservation countdowns in Redis. The key TTL is
// the countdown itself, so a window survives server restarts and page
// reloads without any client state.
type Windows struct {
	store    windowStore
	duration time.Duration
}

// NewWindows builds the reservation window tracker.
func NewWindows(store windowStore, cfg config.ReservationConfig) (*Windows, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation store is required")
	}
	if cfg.WindowDuration <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation window duration must be positive")
	}
	return &Windows{
		store:    store,
		duration: cfg.WindowDuration,
	}, nil
}

// EnsureStarted arms the countdown if no window is running yet. An existing
// window keeps its original start.
func (w *Windows) EnsureStarted(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	key := w.store.ReservationKey(userID.String())
	_, err := w.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), w.duration)
	return err
}

// Refresh re-arms the countdown to its full duration, preserving the
// recorded start. A missing window is started fresh.
func (w *Windows) Refresh(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	key := w.store.ReservationKey(userID.String())
	startedAt, err := w.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return w.EnsureStarted(ctx, userID)
		}
		return err
	}
	return w.store.Set(ctx, key, startedAt, w.duration)
}

// Release drops the window.
func (w *Windows) Release(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return w.store.Del(ctx, w.store.ReservationKey(userID.String()))
}

// Remaining reports the current countdown. An expired or absent window
// yields an inactive DTO with zero remaining.
func (w *Windows) Remaining(ctx context.Context, userID uuid.UUID) (WindowDTO, error) {
	if userID == uuid.Nil {
		return WindowDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	inactive := WindowDTO{
		DurationSeconds:  int(w.duration.Seconds()),
		RemainingSeconds: 0,
	}

	key := w.store.ReservationKey(userID.String())
	raw, err := w.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return inactive, nil
		}
		return WindowDTO{}, err
	}

	ttl, err := w.store.TTL(ctx, key)
	if err != nil {
		return WindowDTO{}, err
	}

	remaining := int(ttl.Seconds())
	if remaining < 0 {
		remaining = 0
	}

	dto := WindowDTO{
		Active:           true,
		DurationSeconds:  int(w.duration.Seconds()),
		RemainingSeconds: remaining,
	}
	if startedAt, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
		dto.StartedAt = startedAt
	}
	return dto, nil
}
