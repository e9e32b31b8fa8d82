package window_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

type fakeHooker struct {
	installed map[string]func()
	canceled  []string
}

func (f *fakeHooker) OnMinimize(id string, fn func()) func() {
	if f.installed == nil {
		f.installed = make(map[string]func())
	}
	f.installed[id] = fn
	return func() {
		delete(f.installed, id)
		f.canceled = append(f.canceled, id)
	}
}

func TestLockIdempotent(t *testing.T) {
	hooker := &fakeHooker{}
	var minimized []string
	r := window.NewLockRegistry(hooker, func(id string) { minimized = append(minimized, id) })

	r.Lock("main")
	r.Lock("main")
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.IsLocked("main"))

	hooker.installed["main"]()
	assert.Equal(t, []string{"main"}, minimized)

	r.Unlock("other")
	assert.Empty(t, hooker.canceled)

	r.Unlock("main")
	r.Unlock("main")
	assert.Equal(t, []string{"main"}, hooker.canceled)
	assert.False(t, r.IsLocked("main"))
}

func TestUnlockAll(t *testing.T) {
	hooker := &fakeHooker{}
	r := window.NewLockRegistry(hooker, func(string) {})

	r.Lock("a")
	r.Lock("b")
	r.UnlockAll()

	assert.Equal(t, 0, r.Len())
	assert.ElementsMatch(t, []string{"a", "b"}, hooker.canceled)
	assert.Empty(t, hooker.installed)
}
