//go:build windows || linux || darwin

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.design/x/hotkey"
)

func TestKeyFor(t *testing.T) {
	k, ok := keyFor("b")
	assert.True(t, ok)
	assert.Equal(t, hotkey.KeyB, k)

	k, ok = keyFor("7")
	assert.True(t, ok)
	assert.Equal(t, hotkey.Key7, k)

	for _, bad := range []string{"", "AB", "é", "F1"} {
		_, ok := keyFor(bad)
		assert.False(t, ok, bad)
	}
}

func TestModifiers(t *testing.T) {
	assert.Empty(t, modifiers(options{}))
	assert.Equal(t,
		[]hotkey.Modifier{hotkey.ModCtrl, altModifier, hotkey.ModShift},
		modifiers(options{ctrl: true, alt: true, shift: true}))
	assert.Equal(t, []hotkey.Modifier{hotkey.ModShift}, modifiers(options{shift: true}))
}
