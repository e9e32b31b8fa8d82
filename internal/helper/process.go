package helper

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// Process is a started helper.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
	Kill() error
}

// Launcher starts helper processes.
type Launcher interface {
	Start(path string, args []string) (Process, error)
}

// Runner runs a short-lived command to completion (the kill script).
type Runner interface {
	Run(name string, args ...string) error
}

// ExecLauncher starts the helper with os/exec.
type ExecLauncher struct{}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (ExecLauncher) Start(path string, args []string) (Process, error) {
	cmd := exec.Command(path, args...)
	hideConsole(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start helper: %w", err)
	}

	go logStderr(stderr)

	return &execProcess{cmd: cmd}, nil
}

// logStderr forwards helper diagnostics to our log.
func logStderr(r io.Reader) {
	log := logger.WithComponent("helper")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARN") {
			log.Warn().Str("helper", line).Msg("helper message")
		} else {
			log.Debug().Str("helper", line).Msg("helper output")
		}
	}
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	hideConsole(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
