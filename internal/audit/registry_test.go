package audit

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry()
	r.now = clock.now
	return r, clock
}

func TestRegistryInsertRefusesTakenID(t *testing.T) {
	r, _ := newTestRegistry()

	assert.True(t, r.Insert("a", Running(), nil))
	assert.False(t, r.Insert("a", Failed(errors.New("boom")), nil))

	rec, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, rec.Status)
}

func TestRegistryTakeEvictsOnlySuccess(t *testing.T) {
	r, _ := newTestRegistry()

	r.Put("ok", Succeeded([]domain.SearchResult{{Source: "lever", Company: "Acme"}}))
	r.Put("bad", Failed(errors.New("boom")))
	r.Put("run", Running())

	rec, ok := r.Take("ok")
	require.True(t, ok)
	assert.Equal(t, MessageSuccess, rec.Message)
	assert.Len(t, rec.Data, 1)
	_, ok = r.Take("ok")
	assert.False(t, ok, "successful result is handed out once")

	for i := 0; i < 3; i++ {
		rec, ok = r.Take("bad")
		require.True(t, ok)
		assert.Equal(t, "boom", rec.Error)
	}

	rec, ok = r.Take("run")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, rec.Status)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryCancel(t *testing.T) {
	r, _ := newTestRegistry()

	fired := 0
	r.Insert("a", Running(), func() { fired++ })

	found, running := r.Cancel("a")
	assert.True(t, found)
	assert.True(t, running)
	assert.Equal(t, 1, fired)

	r.Put("a", Failed(ErrCancelled))
	found, running = r.Cancel("a")
	assert.True(t, found)
	assert.False(t, running)
	assert.Equal(t, 1, fired)

	found, _ = r.Cancel("missing")
	assert.False(t, found)
}

func TestRegistryCancelAll(t *testing.T) {
	r, _ := newTestRegistry()

	fired := 0
	r.Insert("a", Running(), func() { fired++ })
	r.Insert("b", Running(), func() { fired++ })
	r.Insert("c", Failed(errors.New("x")), func() { fired++ })

	assert.Equal(t, 2, r.CancelAll())
	assert.Equal(t, 2, fired)
}

func TestRegistrySweep(t *testing.T) {
	r, clock := newTestRegistry()

	r.Put("old-done", Failed(errors.New("x")))
	r.Insert("old-running", Running(), nil)
	clock.advance(2 * time.Hour)
	r.Put("new-done", Succeeded(nil))

	assert.Equal(t, 1, r.Sweep(time.Hour))

	_, ok := r.Get("old-done")
	assert.False(t, ok)
	_, ok = r.Get("old-running")
	assert.True(t, ok, "running entries are never swept")
	_, ok = r.Get("new-done")
	assert.True(t, ok)
}

func TestRecordJSON(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "running",
			rec:  Running(),
			want: `{"status":"running"}`,
		},
		{
			name: "success with no results keeps data",
			rec:  Succeeded(nil),
			want: `{"status":"completed","message":"SUCCESS","data":[]}`,
		},
		{
			name: "failure has no data",
			rec:  Failed(errors.New("audit timed out after 1s")),
			want: `{"status":"completed","error":"audit timed out after 1s"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.rec)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}
