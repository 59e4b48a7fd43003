package keys

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/micmonay/keybd_event"
)

// ErrUnavailable is returned when no key can be simulated on this platform
var ErrUnavailable = errors.New("key simulation unavailable")

// Toggler asserts and releases a single simulated key
type Toggler interface {
	Press() error
	Release() error
}

// Modifier names a simulated modifier key
type Modifier string

// Supported modifiers
const (
	ModifierSuper Modifier = "super" // command on macOS
	ModifierAlt   Modifier = "alt"
	ModifierCtrl  Modifier = "ctrl"
	ModifierShift Modifier = "shift"
)

// PlatformModifiers maps GOOS values to the modifier used in place of fn.
// Platforms without an entry run without key simulation.
var PlatformModifiers = map[string]Modifier{
	"darwin":  ModifierSuper,
	"windows": ModifierAlt,
}

// ModifierFor picks the modifier for platform, preferring a non-empty override
func ModifierFor(platform, override string) (Modifier, error) {
	if override != "" {
		switch mod := Modifier(override); mod {
		case ModifierSuper, ModifierAlt, ModifierCtrl, ModifierShift:
			return mod, nil
		default:
			return "", fmt.Errorf("%w: unknown modifier %q", ErrUnavailable, override)
		}
	}

	mod, ok := PlatformModifiers[platform]
	if !ok {
		return "", fmt.Errorf("%w: no modifier for platform %s", ErrUnavailable, platform)
	}
	return mod, nil
}

// bonding is the part of keybd_event.KeyBonding the keyboard drives
type bonding interface {
	Press() error
	Release() error
}

// darwinKeycodes are the virtual keycodes of the left-hand modifiers. The
// darwin backend only posts events for bound keys and applies modifiers as
// flags on them, so the modifier itself has to be bound as a key.
var darwinKeycodes = map[Modifier]int{
	ModifierSuper: 0x37,
	ModifierAlt:   0x3A,
	ModifierCtrl:  0x3B,
	ModifierShift: 0x38,
}

// binding describes what the OS backend is asked to hold for a modifier
type binding struct {
	keys  []int
	super bool
	alt   bool
	ctrl  bool
	shift bool
}

// empty reports whether pressing the binding would post nothing
func (b binding) empty() bool {
	return len(b.keys) == 0 && !b.super && !b.alt && !b.ctrl && !b.shift
}

// bindingFor returns the backend binding that holds mod on platform
func bindingFor(platform string, mod Modifier) binding {
	if platform == "darwin" {
		if code, ok := darwinKeycodes[mod]; ok {
			return binding{keys: []int{code}}
		}
		return binding{}
	}

	switch mod {
	case ModifierSuper:
		return binding{super: true}
	case ModifierAlt:
		return binding{alt: true}
	case ModifierCtrl:
		return binding{ctrl: true}
	case ModifierShift:
		return binding{shift: true}
	}
	return binding{}
}

// newBonding creates an OS key bonding holding only mod
var newBonding = func(platform string, mod Modifier) (bonding, error) {
	b := bindingFor(platform, mod)
	if b.empty() {
		return nil, fmt.Errorf("%w: %s cannot be held on %s", ErrUnavailable, mod, platform)
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	kb.SetKeys(b.keys...)
	kb.HasSuper(b.super)
	kb.HasALT(b.alt)
	kb.HasCTRL(b.ctrl)
	kb.HasSHIFT(b.shift)

	return &kb, nil
}

// Keyboard holds at most one simulated modifier down at a time
type Keyboard struct {
	mu       sync.Mutex
	bonding  bonding
	modifier Modifier
	held     bool
	logger   *slog.Logger
}

// New creates a keyboard for platform. It fails with ErrUnavailable when the
// platform has no modifier entry or the OS backend cannot be opened.
func New(platform, override string, logger *slog.Logger) (*Keyboard, error) {
	mod, err := ModifierFor(platform, override)
	if err != nil {
		return nil, err
	}

	b, err := newBonding(platform, mod)
	if err != nil {
		return nil, err
	}

	logger.Info("Key simulation available",
		slog.String("platform", platform),
		slog.String("modifier", string(mod)),
	)

	return &Keyboard{
		bonding:  b,
		modifier: mod,
		logger:   logger,
	}, nil
}

// Press holds the modifier down. Pressing an already held key is a no-op.
func (k *Keyboard) Press() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.held {
		return nil
	}

	if err := k.bonding.Press(); err != nil {
		return fmt.Errorf("failed to press %s: %w", k.modifier, err)
	}

	k.held = true
	k.logger.Debug("Pressed simulated key", slog.String("modifier", string(k.modifier)))
	return nil
}

// Release lets the modifier go. The held flag is cleared even if the OS call fails.
func (k *Keyboard) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.held {
		return nil
	}
	k.held = false

	if err := k.bonding.Release(); err != nil {
		return fmt.Errorf("failed to release %s: %w", k.modifier, err)
	}

	k.logger.Debug("Released simulated key", slog.String("modifier", string(k.modifier)))
	return nil
}

// Held reports whether the modifier is currently held down
func (k *Keyboard) Held() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held
}

// Modifier returns the simulated modifier
func (k *Keyboard) Modifier() Modifier {
	return k.modifier
}
