package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	store.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return store
}

func sampleScript() *script.Script {
	return script.New(
		script.Key{Key: "ControlLeft", State: true},
		script.Delay{Millis: 40},
		script.Key{Key: "ControlLeft", State: false},
		script.Print{Text: "reboot\n"},
	)
}

func TestStore_SaveGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, "reboot", sampleScript())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.Get(ctx, "reboot")
	require.NoError(t, err)
	assert.Equal(t, sampleScript().Events, got.Events)
}

func TestStore_SaveReplacesKeepsID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "login", sampleScript())
	require.NoError(t, err)

	second, err := store.Save(ctx, "login", script.New(script.GPIOPulse{Channel: "relay"}))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := store.Get(ctx, "login")
	require.NoError(t, err)
	assert.Equal(t, []script.Event{script.GPIOPulse{Channel: "relay"}}, got.Events)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "zeta", script.New(script.Delay{Millis: 5}))
	require.NoError(t, err)
	_, err = store.Save(ctx, "alpha", sampleScript())
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, 4, entries[0].Events)
	assert.Equal(t, int64(40), entries[0].Millis)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), entries[0].UpdatedAt)
	assert.Equal(t, "zeta", entries[1].Name)
}

func TestStore_ListEmpty(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "tmp", sampleScript())
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "tmp"))

	_, err = store.Get(ctx, "tmp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRejectsBadInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "  ", sampleScript())
	assert.Error(t, err)

	_, err = store.Save(ctx, "nil", nil)
	assert.Error(t, err)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "library.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "one", sampleScript())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
}
