package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Audio     AudioConfig     `yaml:"audio"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Player    PlayerConfig    `yaml:"player"`
	Keys      KeysConfig      `yaml:"keys"`
	Sequencer SequencerConfig `yaml:"sequencer"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AudioConfig describes where audio files live and which ones are served
type AudioConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"` // accepted extensions, with leading dot
}

// CatalogConfig controls listing cache and directory watching
type CatalogConfig struct {
	Watch    bool `yaml:"watch"`
	CacheTTL int  `yaml:"cache_ttl"` // seconds, 0 disables the listing cache
}

// PlayerConfig controls the external player process used for routed playback
type PlayerConfig struct {
	Platform    string   `yaml:"platform"`     // overrides runtime.GOOS when set
	Command     []string `yaml:"command"`      // overrides the platform strategy, file path is appended
	KillTimeout int      `yaml:"kill_timeout"` // seconds to wait for a killed player to exit
}

// KeysConfig controls the simulated modifier key bracketing routed playback
type KeysConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Modifier string `yaml:"modifier"` // overrides the platform modifier when set
}

// SequencerConfig contains playback sequencing timings
type SequencerConfig struct {
	PacingDelay   int `yaml:"pacing_delay"`   // seconds of silence between sequenced items
	LivenessPoll  int `yaml:"liveness_poll"`  // seconds between routed process liveness checks
	LivenessGrace int `yaml:"liveness_grace"` // seconds a routed process may overrun its estimate
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used for any field the config file leaves out
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:    3000,
			Address: "localhost",
		},
		Audio: AudioConfig{
			Directory:  "./audio",
			Extensions: []string{".mp3"},
		},
		Catalog: CatalogConfig{
			Watch:    true,
			CacheTTL: 60,
		},
		Player: PlayerConfig{
			KillTimeout: 2,
		},
		Keys: KeysConfig{
			Enabled: true,
		},
		Sequencer: SequencerConfig{
			PacingDelay:   5,
			LivenessPoll:  1,
			LivenessGrace: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs validation of every configuration section
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog config: %w", err)
	}

	if err := c.Player.Validate(); err != nil {
		return fmt.Errorf("player config: %w", err)
	}

	if err := c.Keys.Validate(); err != nil {
		return fmt.Errorf("keys config: %w", err)
	}

	if err := c.Sequencer.Validate(); err != nil {
		return fmt.Errorf("sequencer config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}

	if len(a.Extensions) == 0 {
		return fmt.Errorf("at least one extension is required")
	}

	for _, ext := range a.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension must start with a dot, got '%s'", ext)
		}
	}

	return nil
}

// Validate validates catalog configuration
func (c *CatalogConfig) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %d", c.CacheTTL)
	}

	return nil
}

// Validate validates player configuration
func (p *PlayerConfig) Validate() error {
	if p.KillTimeout < 1 {
		return fmt.Errorf("kill_timeout must be at least 1 second, got %d", p.KillTimeout)
	}

	if len(p.Command) > 0 && p.Command[0] == "" {
		return fmt.Errorf("command executable cannot be empty")
	}

	return nil
}

// Validate validates key simulation configuration
func (k *KeysConfig) Validate() error {
	validModifiers := map[string]bool{"": true, "super": true, "alt": true, "ctrl": true, "shift": true}
	if !validModifiers[k.Modifier] {
		return fmt.Errorf("modifier must be one of [super, alt, ctrl, shift], got '%s'", k.Modifier)
	}

	return nil
}

// Validate validates sequencer configuration
func (s *SequencerConfig) Validate() error {
	if s.PacingDelay < 0 {
		return fmt.Errorf("pacing_delay cannot be negative, got %d", s.PacingDelay)
	}

	if s.LivenessPoll < 1 {
		return fmt.Errorf("liveness_poll must be at least 1 second, got %d", s.LivenessPoll)
	}

	if s.LivenessGrace < 0 {
		return fmt.Errorf("liveness_grace cannot be negative, got %d", s.LivenessGrace)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output may be stdout, stderr or a file path
	return nil
}

// GetCacheTTLDuration returns the listing cache TTL as a time.Duration
func (c *CatalogConfig) GetCacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetKillTimeoutDuration returns the player kill timeout as a time.Duration
func (p *PlayerConfig) GetKillTimeoutDuration() time.Duration {
	return time.Duration(p.KillTimeout) * time.Second
}

// GetPacingDelayDuration returns the pacing buffer as a time.Duration
func (s *SequencerConfig) GetPacingDelayDuration() time.Duration {
	return time.Duration(s.PacingDelay) * time.Second
}

// GetLivenessPollDuration returns the liveness poll interval as a time.Duration
func (s *SequencerConfig) GetLivenessPollDuration() time.Duration {
	return time.Duration(s.LivenessPoll) * time.Second
}

// GetLivenessGraceDuration returns the allowed overrun as a time.Duration
func (s *SequencerConfig) GetLivenessGraceDuration() time.Duration {
	return time.Duration(s.LivenessGrace) * time.Second
}
