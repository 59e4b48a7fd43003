package router

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harshraj32/test-app-wispr-flow/internal/keys"
	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
)

var (
	// ErrFileNotFound is returned when the requested file cannot be resolved
	ErrFileNotFound = errors.New("audio file not found")

	// ErrSpawn is returned when the external player fails to start
	ErrSpawn = errors.New("failed to play audio")
)

// StatusPlaying is reported for an accepted play request
const StatusPlaying = "playing"

// Resolver maps a file name to a playable path
type Resolver interface {
	Resolve(name string) (string, error)
}

// Config contains player configuration
type Config struct {
	KillTimeout time.Duration // how long to wait for a killed player to exit
}

// Result is the immediate answer to a play request. It is returned before the
// player finishes.
type Result struct {
	ID         string
	Status     string
	File       string
	KeyToggled bool
}

// Status describes the active playback, if any
type Status struct {
	Active    bool      `json:"active"`
	ID        string    `json:"id,omitempty"`
	File      string    `json:"file,omitempty"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	KeyHeld   bool      `json:"key_held"`
}

// playback is one spawned player plus the key it holds. It is retired exactly once.
type playback struct {
	id      string
	file    string
	proc    Process
	keyHeld bool
	started time.Time
	done    chan struct{} // closed when proc.Wait returns
	exitErr error
	once    sync.Once
}

// Player owns the single external player slot
type Player struct {
	mu          sync.Mutex
	resolver    Resolver
	launcher    Launcher
	keys        keys.Toggler // nil when key simulation is unavailable
	killTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	active *playback
}

// NewPlayer creates a routed player. toggler may be nil.
func NewPlayer(cfg Config, resolver Resolver, launcher Launcher, toggler keys.Toggler,
	logger *slog.Logger, m *metrics.Metrics) *Player {

	killTimeout := cfg.KillTimeout
	if killTimeout <= 0 {
		killTimeout = 2 * time.Second
	}

	return &Player{
		resolver:    resolver,
		launcher:    launcher,
		keys:        toggler,
		killTimeout: killTimeout,
		logger:      logger,
		metrics:     m,
	}
}

// Play retires any active playback, presses the key and starts the player for
// name. It returns as soon as the player has been spawned.
func (p *Player) Play(name string) (Result, error) {
	path, err := p.resolver.Resolve(name)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil {
		p.retireLocked("replaced")
	}

	id := uuid.NewString()
	keyHeld := p.pressKey(id)

	proc, err := p.launcher.Launch(path)
	if err != nil {
		if keyHeld {
			p.releaseKey(id)
		}
		p.metrics.RecordSpawnFailure()
		p.logger.Error("Failed to start audio process",
			slog.String("playback_id", id),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	pb := &playback{
		id:      id,
		file:    name,
		proc:    proc,
		keyHeld: keyHeld,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	p.active = pb
	p.metrics.RecordPlaybackStarted()

	p.logger.Info("Routed playback started",
		slog.String("playback_id", id),
		slog.String("file", name),
		slog.Int("pid", proc.Pid()),
		slog.Bool("key_toggled", keyHeld),
	)

	go p.await(pb)

	return Result{
		ID:         id,
		Status:     StatusPlaying,
		File:       name,
		KeyToggled: keyHeld,
	}, nil
}

// Stop retires the active playback. It reports false when nothing was playing.
func (p *Player) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return false
	}

	p.retireLocked("stopped")
	return true
}

// Shutdown retires any active playback before the process exits
func (p *Player) Shutdown() {
	if p.Stop() {
		p.logger.Info("Killed active audio process on shutdown")
	}
	p.logger.Info("Routed player cleanup complete")
}

// Busy reports whether an external player is alive
func (p *Player) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

// Status returns a snapshot of the active playback
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return Status{}
	}

	return Status{
		Active:    true,
		ID:        p.active.id,
		File:      p.active.file,
		PID:       p.active.proc.Pid(),
		StartedAt: p.active.started,
		KeyHeld:   p.active.keyHeld,
	}
}

// await clears the slot when the player exits on its own
func (p *Player) await(pb *playback) {
	pb.exitErr = pb.proc.Wait()
	close(pb.done)

	p.mu.Lock()
	defer p.mu.Unlock()

	// A replaced or stopped playback has already been retired
	if p.active != pb {
		return
	}
	p.active = nil
	p.finish(pb, "exited")
}

// retireLocked kills the active player, waits for it and releases its key.
// p.mu must be held.
func (p *Player) retireLocked(reason string) {
	pb := p.active
	p.active = nil

	if err := pb.proc.Kill(); err != nil {
		p.logger.Warn("Failed to kill audio process",
			slog.String("playback_id", pb.id),
			slog.String("error", err.Error()),
		)
	}

	select {
	case <-pb.done:
	case <-time.After(p.killTimeout):
		p.logger.Warn("Audio process did not exit after kill",
			slog.String("playback_id", pb.id),
			slog.Duration("timeout", p.killTimeout),
		)
	}

	p.finish(pb, reason)
}

// finish releases everything a playback holds, once
func (p *Player) finish(pb *playback, reason string) {
	pb.once.Do(func() {
		if pb.keyHeld {
			p.releaseKey(pb.id)
		}

		elapsed := time.Since(pb.started)
		p.metrics.RecordPlaybackFinished(elapsed.Seconds())

		attrs := []any{
			slog.String("playback_id", pb.id),
			slog.String("file", pb.file),
			slog.String("reason", reason),
			slog.Duration("elapsed", elapsed),
		}
		if reason == "exited" && pb.exitErr != nil {
			attrs = append(attrs, slog.String("exit", pb.exitErr.Error()))
		}
		p.logger.Info("Routed playback finished", attrs...)
	})
}

func (p *Player) pressKey(id string) bool {
	if p.keys == nil {
		p.logger.Warn("Keyboard simulation not available - playing without key toggle",
			slog.String("playback_id", id),
		)
		return false
	}

	if err := p.keys.Press(); err != nil {
		p.metrics.RecordKeyToggleFailure()
		p.logger.Warn("Could not simulate key, playing anyway",
			slog.String("playback_id", id),
			slog.String("error", err.Error()),
		)
		return false
	}

	return true
}

func (p *Player) releaseKey(id string) {
	p.metrics.RecordKeyRelease()
	if err := p.keys.Release(); err != nil {
		p.logger.Error("Error releasing simulated key",
			slog.String("playback_id", id),
			slog.String("error", err.Error()),
		)
	}
}
