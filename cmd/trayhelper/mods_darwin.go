package main

import "golang.design/x/hotkey"

var altModifier = hotkey.ModOption
