package router

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrUnsupportedPlatform is returned when no player invocation exists for a platform
var ErrUnsupportedPlatform = errors.New("no audio player for platform")

// Process is a running external player
type Process interface {
	Wait() error
	Kill() error
	Pid() int
}

// Launcher starts an external player for a file path
type Launcher interface {
	Launch(path string) (Process, error)
}

// Invocation is a concrete command line
type Invocation struct {
	Name string
	Args []string
}

// Strategy turns a resolved file path into a player invocation
type Strategy func(path string) Invocation

// Strategies maps GOOS values to the native player used for routed playback.
// Routing the player's output into a virtual input device (BlackHole, VB-Cable,
// a PulseAudio loopback) is left to the user.
var Strategies = map[string]Strategy{
	"darwin": func(path string) Invocation {
		return Invocation{Name: "afplay", Args: []string{path}}
	},
	"windows": func(path string) Invocation {
		script := fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", strings.ReplaceAll(path, "'", "''"))
		return Invocation{Name: "powershell", Args: []string{"-NoProfile", "-c", script}}
	},
	"linux": func(path string) Invocation {
		return Invocation{Name: "paplay", Args: []string{path}}
	},
}

// StrategyFor returns the strategy for platform. A non-empty command overrides the
// table; the file path is appended as its last argument.
func StrategyFor(platform string, command []string) (Strategy, error) {
	if len(command) > 0 {
		name := command[0]
		base := append([]string(nil), command[1:]...)
		return func(path string) Invocation {
			args := append(append([]string(nil), base...), path)
			return Invocation{Name: name, Args: args}
		}, nil
	}

	strategy, ok := Strategies[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return strategy, nil
}

// ExecLauncher starts players with os/exec
type ExecLauncher struct {
	strategy Strategy
}

// NewExecLauncher creates a launcher for platform, or for command when given
func NewExecLauncher(platform string, command []string) (*ExecLauncher, error) {
	strategy, err := StrategyFor(platform, command)
	if err != nil {
		return nil, err
	}
	return &ExecLauncher{strategy: strategy}, nil
}

// Launch starts the player without waiting for it
func (l *ExecLauncher) Launch(path string) (Process, error) {
	inv := l.strategy(path)

	cmd := exec.Command(inv.Name, inv.Args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", inv.Name, err)
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}
