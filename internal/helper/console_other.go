//go:build !windows

package helper

import "os/exec"

func hideConsole(*exec.Cmd) {}
