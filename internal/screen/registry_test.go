package screen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphasales/assistant-admin/internal/session"
	"github.com/alphasales/assistant-admin/internal/store"
)

func newTestRegistry(t *testing.T, idle time.Duration) (*Registry, *int) {
	t.Helper()
	b := newBackend(t)
	kv := store.NewMockStore()
	created := 0

	r := NewRegistry(idle, func(ns string) *Controller {
		created++
		return NewController(b.Client(), session.NewStore(kv, ns, 0), Options{})
	})
	t.Cleanup(r.Close)
	return r, &created
}

func TestRegistry_OneControllerPerBrowser(t *testing.T) {
	r, created := newTestRegistry(t, time.Hour)

	a := r.Get("browser-a")
	assert.Same(t, a, r.Get("browser-a"))
	b := r.Get("browser-b")
	assert.NotSame(t, a, b)

	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RemoveClosesController(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)

	c := r.Get("browser-a")
	act := c.Current()
	r.Remove("browser-a")

	assert.Error(t, act.Context().Err(), "evicted controller cancels its activation")
	assert.Equal(t, 0, r.Len())
	assert.NotSame(t, c, r.Get("browser-a"))
}

func TestRegistry_IdleControllersExpire(t *testing.T) {
	r, created := newTestRegistry(t, 50*time.Millisecond)

	c := r.Get("browser-a")
	act := c.Current()

	time.Sleep(80 * time.Millisecond)
	fresh := r.Get("browser-a")
	assert.NotSame(t, c, fresh)
	assert.Equal(t, 2, *created)
	assert.Error(t, act.Context().Err())
}

func TestRegistry_CloseEvictsAll(t *testing.T) {
	r, _ := newTestRegistry(t, 0)

	acts := []*Activation{r.Get("a").Current(), r.Get("b").Current()}
	r.Close()

	for _, act := range acts {
		assert.Error(t, act.Context().Err())
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ControllersShareSessionsPerNamespace(t *testing.T) {
	r, _ := newTestRegistry(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, r.Get("browser-a").Login(ctx, "maria@example.com", "segredo"))

	// a new controller for the same browser restores the saved session
	r.Remove("browser-a")
	again := r.Get("browser-a")
	require.NoError(t, again.Start(ctx))
	assert.Equal(t, StateHome, again.Snapshot().Screen.State)

	other := r.Get("browser-b")
	require.NoError(t, other.Start(ctx))
	assert.Equal(t, StateLoggedOut, other.Snapshot().Screen.State)
}

func TestRegistry_CloseIncludesExpiredControllers(t *testing.T) {
	// the janitor runs every second, so the entry is expired but unswept
	r, _ := newTestRegistry(t, 20*time.Millisecond)

	act := r.Get("browser-a").Current()
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, act.Context().Err())

	r.Close()
	assert.Error(t, act.Context().Err(), "closing cancels idle controllers too")
}
