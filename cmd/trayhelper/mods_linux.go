package main

import "golang.design/x/hotkey"

// Mod1 is Alt on every common X keymap.
var altModifier = hotkey.Mod1
