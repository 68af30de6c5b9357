package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seralvarez/casillero-backend/pkg/config"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

type fakeWindowEntry struct {
	value string
	ttl   time.Duration
}

type fakeWindowStore struct {
	entries map[string]fakeWindowEntry
	sets    int
	setNXs  int
}

func newFakeWindowStore() *fakeWindowStore {
	return &fakeWindowStore{entries: map[string]fakeWindowEntry{}}
}

func (f *fakeWindowStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.sets++
	f.entries[key] = fakeWindowEntry{value: value.(string), ttl: ttl}
	return nil
}

func (f *fakeWindowStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.setNXs++
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = fakeWindowEntry{value: value.(string), ttl: ttl}
	return true, nil
}

func (f *fakeWindowStore) Get(_ context.Context, key string) (string, error) {
	entry, ok := f.entries[key]
	if !ok {
		return "", redislib.Nil
	}
	return entry.value, nil
}

func (f *fakeWindowStore) TTL(_ context.Context, key string) (time.Duration, error) {
	entry, ok := f.entries[key]
	if !ok {
		return -2 * time.Second, nil
	}
	return entry.ttl, nil
}

func (f *fakeWindowStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.entries, key)
	}
	return nil
}

func (f *fakeWindowStore) ReservationKey(userID string) string {
	return "reservation:" + userID
}

func newTestWindows(t *testing.T, store *fakeWindowStore) *Windows {
	t.Helper()

	windows, err := NewWindows(store, config.ReservationConfig{WindowDuration: 15 * time.Minute})
	require.NoError(t, err)
	return windows
}

func TestNewWindowsValidatesInputs(t *testing.T) {
	_, err := NewWindows(nil, config.ReservationConfig{WindowDuration: time.Minute})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = NewWindows(newFakeWindowStore(), config.ReservationConfig{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestEnsureStartedKeepsExistingWindow(t *testing.T) {
	store := newFakeWindowStore()
	windows := newTestWindows(t, store)
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, windows.EnsureStarted(ctx, userID))
	key := store.ReservationKey(userID.String())
	first := store.entries[key].value

	require.NoError(t, windows.EnsureStarted(ctx, userID))
	assert.Equal(t, first, store.entries[key].value, "second start must not overwrite the original timestamp")
	assert.Equal(t, 2, store.setNXs)
}

func TestRefreshPreservesStartAndResetsTTL(t *testing.T) {
	store := newFakeWindowStore()
	windows := newTestWindows(t, store)
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, windows.EnsureStarted(ctx, userID))
	key := store.ReservationKey(userID.String())
	started := store.entries[key].value
	store.entries[key] = fakeWindowEntry{value: started, ttl: 30 * time.Second}

	require.NoError(t, windows.Refresh(ctx, userID))
	assert.Equal(t, started, store.entries[key].value)
	assert.Equal(t, 15*time.Minute, store.entries[key].ttl)
}

func TestRefreshStartsMissingWindow(t *testing.T) {
	store := newFakeWindowStore()
	windows := newTestWindows(t, store)
	userID := uuid.New()

	require.NoError(t, windows.Refresh(context.Background(), userID))
	_, ok := store.entries[store.ReservationKey(userID.String())]
	assert.True(t, ok)
}

func TestRemainingReportsCountdown(t *testing.T) {
	store := newFakeWindowStore()
	windows := newTestWindows(t, store)
	userID := uuid.New()
	ctx := context.Background()

	dto, err := windows.Remaining(ctx, userID)
	require.NoError(t, err)
	assert.False(t, dto.Active)
	assert.Equal(t, 0, dto.RemainingSeconds)
	assert.Equal(t, 900, dto.DurationSeconds)

	require.NoError(t, windows.EnsureStarted(ctx, userID))
	key := store.ReservationKey(userID.String())
	store.entries[key] = fakeWindowEntry{value: store.entries[key].value, ttl: 42 * time.Second}

	dto, err = windows.Remaining(ctx, userID)
	require.NoError(t, err)
	assert.True(t, dto.Active)
	assert.Equal(t, 42, dto.RemainingSeconds)
	assert.False(t, dto.StartedAt.IsZero())
}

func TestReleaseDropsWindow(t *testing.T) {
	store := newFakeWindowStore()
	windows := newTestWindows(t, store)
	userID := uuid.New()
	ctx := context.Background()

	require.NoError(t, windows.EnsureStarted(ctx, userID))
	require.NoError(t, windows.Release(ctx, userID))

	dto, err := windows.Remaining(ctx, userID)
	require.NoError(t, err)
	assert.False(t, dto.Active)
}

func TestWindowsRejectNilUser(t *testing.T) {
	windows := newTestWindows(t, newFakeWindowStore())
	ctx := context.Background()

	require.Error(t, windows.EnsureStarted(ctx, uuid.Nil))
	require.Error(t, windows.Refresh(ctx, uuid.Nil))
	require.Error(t, windows.Release(ctx, uuid.Nil))
	_, err := windows.Remaining(ctx, uuid.Nil)
	require.Error(t, err)
}
