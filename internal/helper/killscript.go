package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// killScript describes how to silently force-kill the helper by image name.
type killScript struct {
	goos string
	exe  string
}

// fileName is the script written next to the extracted helper.
func (k killScript) fileName() string {
	if k.goos == "windows" {
		return "kill-trayhelper.vbs"
	}
	return "kill-trayhelper.sh"
}

// content runs the direct command without a visible console.
func (k killScript) content() string {
	if k.goos == "windows" {
		// 0 = hidden window, True = wait for taskkill
		return fmt.Sprintf("CreateObject(\"WScript.Shell\").Run \"taskkill /F /IM \"\"%s\"\"\", 0, True\r\n", k.exe)
	}
	return fmt.Sprintf("#!/bin/sh\nexec pkill -KILL -x '%s'\n", strings.ReplaceAll(k.exe, "'", ""))
}

// direct is the fallback when no script was written.
func (k killScript) direct() (string, []string) {
	if k.goos == "windows" {
		return "taskkill", []string{"/F", "/IM", k.exe}
	}
	return "pkill", []string{"-KILL", "-x", k.exe}
}

// run returns the command that executes the script at path.
func (k killScript) run(path string) (string, []string) {
	if k.goos == "windows" {
		return "wscript", []string{"//B", "//Nologo", path}
	}
	return "sh", []string{path}
}

// write creates the script in dir and returns its path.
func (k killScript) write(dir string) (string, error) {
	p := filepath.Join(dir, k.fileName())
	if err := os.WriteFile(p, []byte(k.content()), 0o755); err != nil {
		return "", fmt.Errorf("failed to write kill script: %w", err)
	}
	return p, nil
}
