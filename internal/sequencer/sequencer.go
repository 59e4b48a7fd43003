package sequencer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harshraj32/test-app-wispr-flow/internal/catalog"
	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
	"github.com/harshraj32/test-app-wispr-flow/internal/router"
)

// State is a sequencer state
type State string

const (
	Idle       State = "idle"
	PlayingOne State = "playing_one"
	PlayingAll State = "playing_all"
	Paused     State = "paused"
	Stopped    State = "stopped"
)

var (
	// ErrEmptyCatalog is returned when playback is requested with no items loaded
	ErrEmptyCatalog = errors.New("no audio files loaded")

	// ErrIndexOutOfRange is returned for an index outside the item list
	ErrIndexOutOfRange = errors.New("index out of range")
)

// EmptyCatalogMessage is shown when the directory exists but holds no audio files
const EmptyCatalogMessage = "No audio files found. Add audio files to the audio directory."

// output is where the current item is being played
type output int

const (
	outputNone output = iota
	outputLocal
	outputRouted
)

// Catalog provides the files to sequence
type Catalog interface {
	List() (catalog.Listing, error)
	Duration(name string) (time.Duration, error)
}

// Router plays files through the external player
type Router interface {
	Play(name string) (router.Result, error)
	Stop() bool
	Busy() bool
}

// Deck is the page's native audio element
type Deck interface {
	Play(item Item)
	Pause()
	Resume()
	Stop()
}

// Notifier receives every published snapshot. Publish must not block.
type Notifier interface {
	Publish(snapshot Snapshot)
}

// Item is one loaded audio file
type Item struct {
	FileName  string
	Index     int
	Duration  time.Duration // zero when unknown
	IsCurrent bool
}

// Snapshot is the state rendered by the page
type Snapshot struct {
	State   State
	Index   int // -1 when nothing is current
	Routed  bool
	Items   []Item
	Focus   int // item whose notes field takes input focus, -1 for none
	Message string
}

// Config contains sequencer timings
type Config struct {
	PacingDelay   time.Duration // silence left between sequenced items
	LivenessPoll  time.Duration // interval between routed process checks
	LivenessGrace time.Duration // allowed overrun past the estimated end
}

// Sequencer owns the playback state machine
type Sequencer struct {
	mu       sync.Mutex
	cfg      Config
	catalog  Catalog
	router   Router
	deck     Deck
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
	metrics  *metrics.Metrics

	items   []Item
	state   State
	current int
	routed  bool
	output  output
	message string

	// pending is the outstanding delayed task. generation is bumped on every cancel so
	// a timer that fired before it could be stopped is discarded.
	pending    Timer
	generation uint64
}

// New creates a sequencer in the idle state with no items loaded
func New(cfg Config, cat Catalog, r Router, deck Deck, notifier Notifier, clock Clock,
	logger *slog.Logger, m *metrics.Metrics) *Sequencer {

	if clock == nil {
		clock = SystemClock{}
	}

	return &Sequencer{
		cfg:      cfg,
		catalog:  cat,
		router:   r,
		deck:     deck,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		metrics:  m,
		state:    Idle,
		current:  -1,
	}
}

// LoadCatalog rebuilds the item list from the catalog and returns to idle. When the
// loaded file names are unchanged the item list is kept and playback continues.
func (s *Sequencer) LoadCatalog() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.catalog.List()
	names := append([]string(nil), listing.Files...)
	sort.Strings(names)

	if err == nil && s.sameItemsLocked(names) {
		s.logger.Debug("Catalog unchanged, keeping playback",
			slog.Int("items", len(names)),
			slog.String("state", string(s.state)),
		)
		s.publishLocked()
		return s.snapshotLocked(), nil
	}

	s.cancelPendingLocked()
	s.silenceLocked()

	if err != nil {
		s.items = nil
		s.message = "Error loading audio files"
		s.resetLocked(Idle)
		s.publishLocked()
		return s.snapshotLocked(), fmt.Errorf("failed to load catalog: %w", err)
	}

	items := make([]Item, len(names))
	for i, name := range names {
		duration, err := s.catalog.Duration(name)
		if err != nil {
			s.logger.Debug("Duration unavailable",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			duration = 0
		}
		items[i] = Item{FileName: name, Index: i, Duration: duration}
	}
	s.items = items

	s.message = listing.Message
	if len(items) == 0 && s.message == "" {
		s.message = EmptyCatalogMessage
	}

	s.resetLocked(Idle)
	s.logger.Info("Catalog loaded", slog.Int("items", len(items)))
	s.publishLocked()

	return s.snapshotLocked(), nil
}

// PlayFrom plays the item at index, as a sequence when all is set
func (s *Sequencer) PlayFrom(index int, all bool) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndexLocked(index); err != nil {
		return s.snapshotLocked(), err
	}

	err := s.playLocked(index, all)
	return s.snapshotLocked(), err
}

// PlayAll plays the sequence. A single item that is already playing becomes the start
// of the sequence without restarting, and a locally paused item resumes where it was;
// otherwise playback starts at the current index.
func (s *Sequencer) PlayAll() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return s.snapshotLocked(), ErrEmptyCatalog
	}

	if s.state == PlayingOne {
		s.transitionLocked(PlayingAll)
		s.publishLocked()
		return s.snapshotLocked(), nil
	}

	// a routed pause killed the player, so only local output can resume
	if s.state == Paused && s.output == outputLocal && !s.routed {
		s.deck.Resume()
		s.transitionLocked(PlayingAll)
		s.publishLocked()
		return s.snapshotLocked(), nil
	}

	start := 0
	if s.current >= 0 {
		start = s.current
	}

	err := s.playLocked(start, true)
	return s.snapshotLocked(), err
}

// Ended reports natural completion of the item at index by the page. Reports for
// anything but the locally playing current item are ignored.
func (s *Sequencer) Ended(index int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.output != outputLocal || index != s.current || !s.playingLocked() {
		s.logger.Debug("Ignoring ended report",
			slog.Int("index", index),
			slog.Int("current", s.current),
			slog.String("state", string(s.state)),
		)
		return s.snapshotLocked()
	}

	s.completeLocked(index, true)
	return s.snapshotLocked()
}

// sameItemsLocked reports whether names matches the loaded item list
func (s *Sequencer) sameItemsLocked(names []string) bool {
	if len(s.items) == 0 || len(names) != len(s.items) {
		return false
	}
	for i, name := range names {
		if s.items[i].FileName != name {
			return false
		}
	}
	return true
}

// Pause stops the current item without forgetting it
func (s *Sequencer) Pause() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playingLocked() {
		return s.snapshotLocked()
	}

	s.cancelPendingLocked()
	switch s.output {
	case outputRouted:
		s.router.Stop()
	case outputLocal:
		s.deck.Pause()
	}

	s.transitionLocked(Paused)
	s.publishLocked()
	return s.snapshotLocked()
}

// Stop stops all playback and clears the current index and highlights
func (s *Sequencer) Stop() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingLocked()
	s.deck.Stop()
	s.router.Stop()
	s.output = outputNone

	s.message = ""
	s.resetLocked(Stopped)
	s.publishLocked()
	return s.snapshotLocked()
}

// SetMode switches between local and routed playback for subsequent plays.
// The current item keeps playing where it is.
func (s *Sequencer) SetMode(routed bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.routed != routed {
		s.routed = routed
		s.logger.Info("Playback mode changed", slog.Bool("routed", routed))
	}

	s.publishLocked()
	return s.snapshotLocked()
}

// Snapshot returns the current state
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Shutdown cancels any pending task
func (s *Sequencer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingLocked()
	s.logger.Info("Sequencer stopped")
}

func (s *Sequencer) checkIndexLocked(index int) error {
	if len(s.items) == 0 {
		return ErrEmptyCatalog
	}
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.items))
	}
	return nil
}

// playLocked leaves any state and plays items[index]
func (s *Sequencer) playLocked(index int, all bool) error {
	s.cancelPendingLocked()

	target := PlayingOne
	if all {
		target = PlayingAll
	}
	item := s.items[index]
	s.message = ""

	if !s.routed {
		if s.output == outputRouted {
			s.router.Stop()
		}
		s.output = outputLocal
		s.enterLocked(target, index)
		s.deck.Play(s.items[index])
		s.publishLocked()
		return nil
	}

	if s.output == outputLocal {
		s.deck.Stop()
	}

	if _, err := s.router.Play(item.FileName); err != nil {
		s.output = outputNone
		s.message = fmt.Sprintf("Failed to play %s", item.FileName)
		s.resetLocked(Idle)
		s.publishLocked()
		return fmt.Errorf("failed to play %s: %w", item.FileName, err)
	}

	s.output = outputRouted
	s.enterLocked(target, index)
	s.scheduleRoutedCheckLocked(index)
	s.publishLocked()
	return nil
}

// completeLocked applies the auto-advance rule after items[index] finished
func (s *Sequencer) completeLocked(index int, pace bool) {
	if s.state != PlayingAll || index == len(s.items)-1 {
		s.output = outputNone
		s.resetLocked(Idle)
		s.publishLocked()
		return
	}

	next := index + 1
	if !pace {
		s.advanceLocked(next)
		return
	}

	s.scheduleLocked(s.cfg.PacingDelay, func() {
		s.advanceLocked(next)
	})
}

func (s *Sequencer) advanceLocked(next int) {
	if err := s.playLocked(next, true); err != nil {
		s.logger.Error("Auto-advance failed",
			slog.Int("index", next),
			slog.String("error", err.Error()),
		)
	}
}

// scheduleRoutedCheckLocked estimates when the routed item ends. The external player
// cannot report progress so the estimate is duration plus the pacing delay; when it is
// due while the process is still alive, liveness is polled until the process exits or
// the grace period runs out. Unknown durations are polled without a bound.
func (s *Sequencer) scheduleRoutedCheckLocked(index int) {
	item := s.items[index]
	due := item.Duration + s.cfg.PacingDelay

	var deadline time.Time
	if item.Duration > 0 {
		deadline = s.clock.Now().Add(due + s.cfg.LivenessGrace)
	}

	s.logger.Debug("Scheduled routed completion check",
		slog.String("file", item.FileName),
		slog.Duration("estimate", due),
	)

	s.scheduleLocked(due, func() {
		s.routedCheckLocked(index, deadline)
	})
}

func (s *Sequencer) routedCheckLocked(index int, deadline time.Time) {
	if s.router.Busy() && (deadline.IsZero() || s.clock.Now().Before(deadline)) {
		s.scheduleLocked(s.cfg.LivenessPoll, func() {
			s.routedCheckLocked(index, deadline)
		})
		return
	}

	if s.router.Busy() {
		s.logger.Warn("Routed player overran its estimate, advancing anyway",
			slog.Int("index", index),
		)
	}

	s.completeLocked(index, false)
}

// scheduleLocked replaces the pending task with fn, run under s.mu after d
func (s *Sequencer) scheduleLocked(d time.Duration, fn func()) {
	s.cancelPendingLocked()
	gen := s.generation

	s.pending = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.generation != gen {
			return
		}
		s.pending = nil
		fn()
	})
	s.metrics.RecordAdvanceScheduled()
}

func (s *Sequencer) cancelPendingLocked() {
	s.generation++
	if s.pending == nil {
		return
	}
	s.pending.Stop()
	s.pending = nil
	s.metrics.RecordAdvanceCancelled()
}

// silenceLocked stops whatever output is playing
func (s *Sequencer) silenceLocked() {
	switch s.output {
	case outputLocal:
		s.deck.Stop()
	case outputRouted:
		s.router.Stop()
	}
	s.output = outputNone
}

func (s *Sequencer) playingLocked() bool {
	return s.state == PlayingOne || s.state == PlayingAll
}

// enterLocked makes index the exclusively highlighted current item
func (s *Sequencer) enterLocked(state State, index int) {
	s.current = index
	for i := range s.items {
		s.items[i].IsCurrent = i == index
	}
	s.transitionLocked(state)
}

// resetLocked clears the current index and every highlight
func (s *Sequencer) resetLocked(state State) {
	s.current = -1
	for i := range s.items {
		s.items[i].IsCurrent = false
	}
	s.transitionLocked(state)
}

func (s *Sequencer) transitionLocked(state State) {
	if s.state != state {
		s.logger.Debug("Sequencer transition",
			slog.String("from", string(s.state)),
			slog.String("to", string(state)),
			slog.Int("index", s.current),
		)
	}
	s.state = state
	s.metrics.RecordTransition(string(state))
}

func (s *Sequencer) publishLocked() {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(s.snapshotLocked())
}

func (s *Sequencer) snapshotLocked() Snapshot {
	focus := -1
	if s.playingLocked() {
		focus = s.current
	}

	return Snapshot{
		State:   s.state,
		Index:   s.current,
		Routed:  s.routed,
		Items:   append([]Item(nil), s.items...),
		Focus:   focus,
		Message: s.message,
	}
}
