package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "trayminder", "config.yaml"))
	require.NoError(t, err)
	return m
}

func TestNewManagerWritesDefaults(t *testing.T) {
	m := newTestManager(t)

	_, err := os.Stat(m.GetConfigPath())
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, Defaults().Hotkey, cfg.Hotkey)
	assert.Equal(t, DefaultHelperPort, cfg.Helper.Port)
	assert.Equal(t, DefaultHelperPort, m.GetString(KeyHelperPort))
	assert.True(t, m.GetBool(KeyHotkeyCtrl))
	assert.False(t, m.GetBool(KeyStartupHide))
}

func TestSetPersistsAndNotifies(t *testing.T) {
	m := newTestManager(t)

	var got [][]string
	id := m.Subscribe(func(changed []string) { got = append(got, changed) })

	require.NoError(t, m.Set(KeyHotkeyKey, "b"))
	require.NoError(t, m.Set(KeyHotkeyShift, "true"))
	assert.Equal(t, [][]string{{KeyHotkeyKey}, {KeyHotkeyShift}}, got)

	// Setting the same value again changes nothing.
	require.NoError(t, m.Set(KeyHotkeyKey, "b"))
	assert.Len(t, got, 2)

	m.Unsubscribe(id)
	require.NoError(t, m.Set(KeyHelperPort, "5901"))
	assert.Len(t, got, 2)

	reopened, err := NewManager(m.GetConfigPath())
	require.NoError(t, err)
	assert.Equal(t, "b", reopened.GetString(KeyHotkeyKey))
	assert.True(t, reopened.GetBool(KeyHotkeyShift))
	assert.Equal(t, "5901", reopened.GetString(KeyHelperPort))
}

func TestSetValidates(t *testing.T) {
	m := newTestManager(t)

	assert.ErrorIs(t, m.Set("nope", "1"), ErrUnknownKey)
	assert.Error(t, m.Set(KeyHotkeyCtrl, "maybe"))
	assert.Error(t, m.Set(KeyTargetPID, "-3"))
	assert.Error(t, m.Set(KeyAPIPort, "http"))

	// A bad port string is stored; it is dropped where it is used.
	require.NoError(t, m.Set(KeyHelperPort, "abc"))
	assert.Equal(t, "abc", m.GetString(KeyHelperPort))
}

func TestExternalEditIsDiffed(t *testing.T) {
	m := newTestManager(t)

	var got []string
	m.Subscribe(func(changed []string) { got = changed })

	edited := `hotkey:
  ctrl: false
  alt: true
  shift: false
  key: T
helper:
  port: 6000
target:
  command: ["/usr/bin/app", "--flag"]
log_level: debug
`
	require.NoError(t, os.WriteFile(m.GetConfigPath(), []byte(edited), 0644))
	m.reloadAndRefresh()

	assert.ElementsMatch(t, []string{KeyHotkeyCtrl, KeyHelperPort, KeyTargetCommand, KeyLogLevel}, got)
	assert.Equal(t, "6000", m.GetString(KeyHelperPort))
	assert.Equal(t, []string{"/usr/bin/app", "--flag"}, m.Get().Target.Command)
	// Missing keys fall back to defaults.
	assert.Equal(t, 8089, m.GetInt(KeyAPIPort))
}

func TestValue(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Set(KeyTargetCommand, "/opt/app/bin/app -n"))

	v, err := m.Value(KeyTargetCommand)
	require.NoError(t, err)
	assert.Equal(t, "/opt/app/bin/app -n", v)

	_, err = m.Value("missing")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestChanged(t *testing.T) {
	assert.True(t, Changed([]string{KeyLogLevel, KeyHelperPort}, HelperKeys...))
	assert.False(t, Changed([]string{KeyLogLevel}, HelperKeys...))
	assert.False(t, Changed(nil, KeyLogLevel))
}

func TestConcurrentSetAndRead(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, m.Set(KeyHotkeyKey, strconv.Itoa(i%10)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			m.reloadAndRefresh()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.Equal(t, DefaultHelperPort, m.GetString(KeyHelperPort))
			_ = m.Get()
			_, _ = m.Value(KeyHotkeyKey)
		}
	}()
	wg.Wait()

	assert.Equal(t, "9", m.GetString(KeyHotkeyKey))
}

func TestConcurrentSetsKeepEveryKey(t *testing.T) {
	m := newTestManager(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, m.Set(KeyHotkeyShift, "true"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, m.Set(KeyStartupHide, "true"))
	}()
	wg.Wait()

	assert.True(t, m.GetBool(KeyHotkeyShift))
	assert.True(t, m.GetBool(KeyStartupHide))
}

func TestWatchPicksUpExternalEdit(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Watch())
	defer m.Close()

	changed := make(chan []string, 8)
	m.Subscribe(func(keys []string) { changed <- keys })

	other, err := NewManager(m.GetConfigPath())
	require.NoError(t, err)
	require.NoError(t, other.Set(KeyHotkeyKey, "Q"))

	assert.Eventually(t, func() bool {
		return m.GetString(KeyHotkeyKey) == "Q"
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case keys := <-changed:
		assert.Equal(t, []string{KeyHotkeyKey}, keys)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
