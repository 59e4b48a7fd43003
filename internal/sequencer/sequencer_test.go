package sequencer

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/harshraj32/test-app-wispr-flow/internal/catalog"
	"github.com/harshraj32/test-app-wispr-flow/internal/router"
)

// manualClock fires timers only when advanced
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, firing due timers in order
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(end) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Active counts timers that may still fire
func (c *manualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	listing   catalog.Listing
	durations map[string]time.Duration
	err       error
}

func (c *fakeCatalog) List() (catalog.Listing, error) {
	return c.listing, c.err
}

func (c *fakeCatalog) Duration(name string) (time.Duration, error) {
	d, ok := c.durations[name]
	if !ok {
		return 0, errors.New("unknown duration")
	}
	return d, nil
}

type fakeRouter struct {
	mu    sync.Mutex
	plays []string
	stops int
	busy  bool
	err   error
}

func (r *fakeRouter) Play(name string) (router.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return router.Result{}, r.err
	}
	r.plays = append(r.plays, name)
	r.busy = true
	return router.Result{Status: router.StatusPlaying, File: name}, nil
}

func (r *fakeRouter) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stops++
	wasBusy := r.busy
	r.busy = false
	return wasBusy
}

func (r *fakeRouter) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

func (r *fakeRouter) setBusy(busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = busy
}

type fakeDeck struct {
	plays   []string
	pauses  int
	resumes int
	stops   int
}

func (d *fakeDeck) Play(item Item) { d.plays = append(d.plays, item.FileName) }
func (d *fakeDeck) Pause()         { d.pauses++ }
func (d *fakeDeck) Resume()        { d.resumes++ }
func (d *fakeDeck) Stop()          { d.stops++ }

type fakeNotifier struct {
	snapshots []Snapshot
}

func (n *fakeNotifier) Publish(snapshot Snapshot) {
	n.snapshots = append(n.snapshots, snapshot)
}

type fixture struct {
	seq      *Sequencer
	clock    *manualClock
	catalog  *fakeCatalog
	router   *fakeRouter
	deck     *fakeDeck
	notifier *fakeNotifier
}

func newFixture(t *testing.T, files ...string) *fixture {
	t.Helper()

	f := &fixture{
		clock: newManualClock(),
		catalog: &fakeCatalog{
			listing:   catalog.Listing{Files: files},
			durations: map[string]time.Duration{},
		},
		router:   &fakeRouter{},
		deck:     &fakeDeck{},
		notifier: &fakeNotifier{},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{
		PacingDelay:   5 * time.Second,
		LivenessPoll:  time.Second,
		LivenessGrace: 30 * time.Second,
	}
	f.seq = New(cfg, f.catalog, f.router, f.deck, f.notifier, f.clock, logger, nil)
	return f
}

func (f *fixture) load(t *testing.T) Snapshot {
	t.Helper()
	snap, err := f.seq.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	return snap
}

func assertHighlight(t *testing.T, snap Snapshot, index int) {
	t.Helper()
	if snap.Index != index {
		t.Errorf("Expected current index %d, got %d", index, snap.Index)
	}
	for _, item := range snap.Items {
		if item.IsCurrent != (item.Index == index) {
			t.Errorf("Item %d highlight is %v with current %d", item.Index, item.IsCurrent, index)
		}
	}
}

func TestLoadCatalogSortsItems(t *testing.T) {
	f := newFixture(t, "b.mp3", "a.mp3")
	f.catalog.durations["a.mp3"] = 3 * time.Second

	snap := f.load(t)

	if snap.State != Idle {
		t.Errorf("Expected idle, got %s", snap.State)
	}
	if len(snap.Items) != 2 || snap.Items[0].FileName != "a.mp3" || snap.Items[1].FileName != "b.mp3" {
		t.Fatalf("Expected [a.mp3 b.mp3], got %+v", snap.Items)
	}
	if snap.Items[1].Index != 1 {
		t.Errorf("Expected index 1 for b.mp3, got %d", snap.Items[1].Index)
	}
	if snap.Items[0].Duration != 3*time.Second || snap.Items[1].Duration != 0 {
		t.Errorf("Unexpected durations: %v, %v", snap.Items[0].Duration, snap.Items[1].Duration)
	}
	assertHighlight(t, snap, -1)

	if len(f.notifier.snapshots) == 0 {
		t.Error("Expected load to publish a snapshot")
	}
}

func TestLoadCatalogEmptyStates(t *testing.T) {
	f := newFixture(t)
	snap := f.load(t)
	if snap.Message != EmptyCatalogMessage {
		t.Errorf("Expected empty catalog message, got %q", snap.Message)
	}

	f.catalog.listing = catalog.Listing{Files: []string{}, Message: catalog.MissingDirectoryMessage}
	snap = f.load(t)
	if snap.Message != catalog.MissingDirectoryMessage {
		t.Errorf("Expected missing directory message, got %q", snap.Message)
	}

	if _, err := f.seq.PlayFrom(0, false); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Expected ErrEmptyCatalog, got %v", err)
	}
	if _, err := f.seq.PlayAll(); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Expected ErrEmptyCatalog from PlayAll, got %v", err)
	}
}

func TestLoadCatalogError(t *testing.T) {
	f := newFixture(t, "a.mp3")
	f.catalog.err = catalog.ErrUnreadable

	snap, err := f.seq.LoadCatalog()
	if !errors.Is(err, catalog.ErrUnreadable) {
		t.Fatalf("Expected ErrUnreadable, got %v", err)
	}
	if snap.State != Idle || len(snap.Items) != 0 || snap.Message == "" {
		t.Errorf("Expected idle with no items and a message, got %+v", snap)
	}
}

func TestPlayFromOutOfRange(t *testing.T) {
	f := newFixture(t, "a.mp3")
	f.load(t)

	for _, index := range []int{-1, 1, 5} {
		if _, err := f.seq.PlayFrom(index, false); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Index %d: expected ErrIndexOutOfRange, got %v", index, err)
		}
	}
}

func TestPlayFromLocalHighlightsExclusively(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
	f.load(t)

	snap, err := f.seq.PlayFrom(1, false)
	if err != nil {
		t.Fatalf("PlayFrom failed: %v", err)
	}

	if snap.State != PlayingOne {
		t.Errorf("Expected playing_one, got %s", snap.State)
	}
	assertHighlight(t, snap, 1)
	if snap.Focus != 1 {
		t.Errorf("Expected focus on item 1, got %d", snap.Focus)
	}
	if len(f.deck.plays) != 1 || f.deck.plays[0] != "b.mp3" {
		t.Errorf("Expected deck to play b.mp3, got %v", f.deck.plays)
	}
	if len(f.router.plays) != 0 {
		t.Error("Expected no routed playback in local mode")
	}

	snap, _ = f.seq.PlayFrom(2, false)
	assertHighlight(t, snap, 2)
}

func TestPlayAllAutoAdvance(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
	f.load(t)

	if _, err := f.seq.PlayFrom(0, true); err != nil {
		t.Fatalf("PlayFrom failed: %v", err)
	}

	f.seq.Ended(0)
	if f.clock.Active() != 1 {
		t.Fatalf("Expected one pending advance, got %d", f.clock.Active())
	}

	f.clock.Advance(4900 * time.Millisecond)
	if len(f.deck.plays) != 1 {
		t.Fatalf("Expected no advance before the pacing delay, got %v", f.deck.plays)
	}

	f.clock.Advance(100 * time.Millisecond)
	if len(f.deck.plays) != 2 || f.deck.plays[1] != "b.mp3" {
		t.Fatalf("Expected b.mp3 after the pacing delay, got %v", f.deck.plays)
	}
	snap := f.seq.Snapshot()
	if snap.State != PlayingAll {
		t.Errorf("Expected playing_all, got %s", snap.State)
	}
	assertHighlight(t, snap, 1)

	f.seq.Ended(1)
	f.clock.Advance(5 * time.Second)
	if len(f.deck.plays) != 3 || f.deck.plays[2] != "c.mp3" {
		t.Fatalf("Expected c.mp3, got %v", f.deck.plays)
	}

	snap = f.seq.Ended(2)
	if snap.State != Idle {
		t.Errorf("Expected idle after last item, got %s", snap.State)
	}
	if f.clock.Active() != 0 {
		t.Errorf("Expected nothing scheduled after the last item, got %d", f.clock.Active())
	}
	assertHighlight(t, snap, -1)
}

func TestPlayingOneEndedReturnsIdle(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, false)

	snap := f.seq.Ended(0)
	if snap.State != Idle {
		t.Errorf("Expected idle, got %s", snap.State)
	}
	if f.clock.Active() != 0 {
		t.Error("Expected no auto-advance for a single item")
	}
}

func TestEndedIgnoredForOtherIndex(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(1, true)

	snap := f.seq.Ended(0)
	if snap.State != PlayingAll || snap.Index != 1 {
		t.Errorf("Expected stale ended report to be ignored, got %s at %d", snap.State, snap.Index)
	}
	if f.clock.Active() != 0 {
		t.Error("Expected nothing scheduled")
	}
}

func TestStopClearsHighlightFromAnyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{name: "idle", setup: func(f *fixture) {}},
		{name: "playing one", setup: func(f *fixture) { f.seq.PlayFrom(1, false) }},
		{name: "playing all", setup: func(f *fixture) { f.seq.PlayFrom(0, true) }},
		{name: "paused", setup: func(f *fixture) { f.seq.PlayFrom(1, true); f.seq.Pause() }},
		{name: "stopped", setup: func(f *fixture) { f.seq.PlayFrom(1, true); f.seq.Stop() }},
		{name: "routed", setup: func(f *fixture) { f.seq.SetMode(true); f.seq.PlayFrom(1, true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
			f.load(t)
			tt.setup(f)

			snap := f.seq.Stop()
			if snap.State != Stopped {
				t.Errorf("Expected stopped, got %s", snap.State)
			}
			assertHighlight(t, snap, -1)
			if snap.Focus != -1 {
				t.Errorf("Expected no focus, got %d", snap.Focus)
			}
			if f.router.stops == 0 {
				t.Error("Expected stop request to the routed player")
			}
			if f.router.Busy() {
				t.Error("Expected no routed process after stop")
			}
		})
	}
}

func TestStopCancelsPendingAdvance(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, true)
	f.seq.Ended(0)

	f.seq.Stop()
	f.clock.Advance(time.Minute)

	if len(f.deck.plays) != 1 {
		t.Errorf("Expected stale advance to be cancelled, got plays %v", f.deck.plays)
	}
	if f.seq.Snapshot().State != Stopped {
		t.Errorf("Expected stopped, got %s", f.seq.Snapshot().State)
	}
}

func TestPauseKeepsIndexAndCancelsAdvance(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
	f.load(t)
	f.seq.PlayFrom(1, true)
	f.seq.Ended(1)

	snap := f.seq.Pause()
	if snap.State != Paused {
		t.Errorf("Expected paused, got %s", snap.State)
	}
	if snap.Index != 1 {
		t.Errorf("Expected current index kept at 1, got %d", snap.Index)
	}
	if f.deck.pauses != 1 {
		t.Errorf("Expected deck pause, got %d", f.deck.pauses)
	}

	f.clock.Advance(time.Minute)
	if len(f.deck.plays) != 1 {
		t.Errorf("Expected advance cancelled by pause, got %v", f.deck.plays)
	}

	snap = f.seq.Pause()
	if f.deck.pauses != 1 || snap.State != Paused {
		t.Error("Expected pause to be a no-op when not playing")
	}
}

func TestPlayAllResumesFromCurrentIndex(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
	f.load(t)
	f.seq.PlayFrom(2, true)
	f.seq.Pause()

	snap, err := f.seq.PlayAll()
	if err != nil {
		t.Fatalf("PlayAll failed: %v", err)
	}
	if snap.State != PlayingAll || snap.Index != 2 {
		t.Errorf("Expected playing_all at 2, got %s at %d", snap.State, snap.Index)
	}
	if f.deck.resumes != 1 || len(f.deck.plays) != 1 {
		t.Errorf("Expected paused item resumed in place, got %d resumes and plays %v", f.deck.resumes, f.deck.plays)
	}

	f.seq.Stop()
	snap, _ = f.seq.PlayAll()
	if snap.Index != 0 {
		t.Errorf("Expected play all after stop to start at 0, got %d", snap.Index)
	}
}

func TestPlayAllUpgradesPlayingOne(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3", "c.mp3")
	f.load(t)
	f.seq.PlayFrom(1, false)

	snap, err := f.seq.PlayAll()
	if err != nil {
		t.Fatalf("PlayAll failed: %v", err)
	}
	if snap.State != PlayingAll || snap.Index != 1 {
		t.Errorf("Expected playing_all at 1, got %s at %d", snap.State, snap.Index)
	}
	if len(f.deck.plays) != 1 {
		t.Errorf("Expected the current item not to restart, got %v", f.deck.plays)
	}

	f.seq.Ended(1)
	f.clock.Advance(5 * time.Second)
	if len(f.deck.plays) != 2 || f.deck.plays[1] != "c.mp3" {
		t.Errorf("Expected c.mp3 next, got %v", f.deck.plays)
	}
}

func TestSetModeDoesNotStopPlayback(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, false)

	snap := f.seq.SetMode(true)
	if !snap.Routed {
		t.Error("Expected routed mode")
	}
	if snap.State != PlayingOne || snap.Index != 0 {
		t.Errorf("Expected playback to continue, got %s at %d", snap.State, snap.Index)
	}
	if f.deck.stops != 0 || f.deck.pauses != 0 || len(f.router.plays) != 0 {
		t.Error("Expected mode switch to leave outputs untouched")
	}

	f.seq.PlayFrom(1, false)
	if len(f.router.plays) != 1 || f.router.plays[0] != "b.mp3" {
		t.Errorf("Expected next play to be routed, got %v", f.router.plays)
	}
	if len(f.deck.plays) != 1 {
		t.Errorf("Expected no further local playback, got %v", f.deck.plays)
	}
	if f.deck.stops != 1 {
		t.Errorf("Expected local deck stopped when switching output, got %d", f.deck.stops)
	}
}

func TestRoutedEndedReportIgnored(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	snap := f.seq.Ended(0)
	if snap.State != PlayingAll || snap.Index != 0 {
		t.Errorf("Expected ended report ignored in routed mode, got %s at %d", snap.State, snap.Index)
	}
}

func TestRoutedAdvanceUsesDurationEstimate(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 10 * time.Second
	f.load(t)
	f.seq.SetMode(true)

	if _, err := f.seq.PlayFrom(0, true); err != nil {
		t.Fatalf("PlayFrom failed: %v", err)
	}
	if len(f.router.plays) != 1 || f.router.plays[0] != "a.mp3" {
		t.Fatalf("Expected routed a.mp3, got %v", f.router.plays)
	}

	f.router.setBusy(false)
	f.clock.Advance(14900 * time.Millisecond)
	if len(f.router.plays) != 1 {
		t.Fatalf("Expected no advance before duration plus pacing, got %v", f.router.plays)
	}

	f.clock.Advance(100 * time.Millisecond)
	if len(f.router.plays) != 2 || f.router.plays[1] != "b.mp3" {
		t.Fatalf("Expected b.mp3 at the estimate, got %v", f.router.plays)
	}
	assertHighlight(t, f.seq.Snapshot(), 1)
}

func TestRoutedAdvanceWaitsForLiveProcess(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 10 * time.Second
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	f.clock.Advance(15 * time.Second)
	f.clock.Advance(3 * time.Second)
	if len(f.router.plays) != 1 {
		t.Fatalf("Expected advance held while the process is alive, got %v", f.router.plays)
	}

	f.router.setBusy(false)
	f.clock.Advance(time.Second)
	if len(f.router.plays) != 2 {
		t.Fatalf("Expected advance once the process exited, got %v", f.router.plays)
	}
}

func TestRoutedAdvanceGivesUpAfterGrace(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 10 * time.Second
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	f.clock.Advance(15 * time.Second)
	f.clock.Advance(29 * time.Second)
	if len(f.router.plays) != 1 {
		t.Fatalf("Expected advance held within the grace period, got %v", f.router.plays)
	}

	f.clock.Advance(time.Second)
	if len(f.router.plays) != 2 {
		t.Fatalf("Expected advance after the grace period, got %v", f.router.plays)
	}
}

func TestRoutedUnknownDurationPollsUntilExit(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	f.clock.Advance(5 * time.Second)
	f.clock.Advance(10 * time.Minute)
	if len(f.router.plays) != 1 {
		t.Fatalf("Expected unbounded polling for unknown duration, got %v", f.router.plays)
	}

	f.router.setBusy(false)
	f.clock.Advance(time.Second)
	if len(f.router.plays) != 2 {
		t.Fatalf("Expected advance after the process exited, got %v", f.router.plays)
	}
}

func TestRoutedPlayingOneCompletesToIdle(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 2 * time.Second
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, false)

	f.router.setBusy(false)
	f.clock.Advance(7 * time.Second)

	snap := f.seq.Snapshot()
	if snap.State != Idle {
		t.Errorf("Expected idle after routed single item, got %s", snap.State)
	}
	if len(f.router.plays) != 1 {
		t.Errorf("Expected no auto-advance, got %v", f.router.plays)
	}
}

func TestRoutedPauseStopsRouter(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 10 * time.Second
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	snap := f.seq.Pause()
	if snap.State != Paused || snap.Index != 0 {
		t.Errorf("Expected paused at 0, got %s at %d", snap.State, snap.Index)
	}
	if f.router.stops != 1 || f.router.Busy() {
		t.Error("Expected routed process stopped on pause")
	}
	if f.deck.pauses != 0 {
		t.Error("Expected local deck untouched")
	}

	f.clock.Advance(time.Minute)
	if len(f.router.plays) != 1 {
		t.Errorf("Expected estimate timer cancelled, got %v", f.router.plays)
	}

	snap, err := f.seq.PlayAll()
	if err != nil {
		t.Fatalf("PlayAll failed: %v", err)
	}
	if snap.State != PlayingAll || len(f.router.plays) != 2 || f.router.plays[1] != "a.mp3" {
		t.Errorf("Expected a.mp3 restarted through the router, got %s and %v", snap.State, f.router.plays)
	}
	if f.deck.resumes != 0 {
		t.Error("Expected no local resume in routed mode")
	}
}

func TestPausedLocalItemResumesAfterPacedAdvance(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, false)
	f.seq.Pause()

	f.seq.PlayAll()
	f.seq.Ended(0)
	f.clock.Advance(5 * time.Second)

	if len(f.deck.plays) != 2 || f.deck.plays[1] != "b.mp3" {
		t.Errorf("Expected resumed item to advance to b.mp3, got %v", f.deck.plays)
	}
}

func TestLoadCatalogUnchangedKeepsPlayback(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.catalog.durations["a.mp3"] = 10 * time.Second
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	f.catalog.listing = catalog.Listing{Files: []string{"b.mp3", "a.mp3"}}
	snap := f.load(t)

	if f.router.stops != 0 || !f.router.Busy() {
		t.Errorf("Expected routed playback untouched, got %d stops", f.router.stops)
	}
	if snap.State != PlayingAll {
		t.Errorf("Expected playing_all kept, got %s", snap.State)
	}
	assertHighlight(t, snap, 0)

	f.router.setBusy(false)
	f.clock.Advance(15 * time.Second)
	if len(f.router.plays) != 2 || f.router.plays[1] != "b.mp3" {
		t.Errorf("Expected the pending advance to survive the reload, got %v", f.router.plays)
	}
}

func TestLoadCatalogChangedResetsPlayback(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.SetMode(true)
	f.seq.PlayFrom(0, true)

	f.catalog.listing = catalog.Listing{Files: []string{"a.mp3", "b.mp3", "c.mp3"}}
	snap := f.load(t)

	if f.router.stops != 1 {
		t.Errorf("Expected routed playback stopped, got %d stops", f.router.stops)
	}
	if snap.State != Idle || len(snap.Items) != 3 {
		t.Errorf("Expected idle with 3 items, got %s with %d", snap.State, len(snap.Items))
	}
	assertHighlight(t, snap, -1)
	if f.clock.Active() != 0 {
		t.Errorf("Expected no pending timers, got %d", f.clock.Active())
	}
}

func TestRoutedPlayFailure(t *testing.T) {
	f := newFixture(t, "a.mp3")
	f.load(t)
	f.seq.SetMode(true)
	f.router.err = router.ErrSpawn

	snap, err := f.seq.PlayFrom(0, true)
	if !errors.Is(err, router.ErrSpawn) {
		t.Fatalf("Expected ErrSpawn, got %v", err)
	}
	if snap.State != Idle || snap.Message == "" {
		t.Errorf("Expected idle with an error message, got %s %q", snap.State, snap.Message)
	}
	assertHighlight(t, snap, -1)
	if f.clock.Active() != 0 {
		t.Error("Expected nothing scheduled after a failed play")
	}
}

func TestShutdownCancelsPending(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, true)
	f.seq.Ended(0)

	f.seq.Shutdown()
	f.clock.Advance(time.Minute)

	if len(f.deck.plays) != 1 {
		t.Errorf("Expected no advance after shutdown, got %v", f.deck.plays)
	}
}

func TestFiredTimerDiscardedAfterCancel(t *testing.T) {
	f := newFixture(t, "a.mp3", "b.mp3")
	f.load(t)
	f.seq.PlayFrom(0, true)
	f.seq.Ended(0)

	// Capture the pending task, cancel it, then run it as if it had already fired
	f.clock.mu.Lock()
	stale := f.clock.timers[len(f.clock.timers)-1]
	f.clock.mu.Unlock()

	f.seq.Stop()
	stale.f()

	if len(f.deck.plays) != 1 {
		t.Errorf("Expected stale task to be discarded, got %v", f.deck.plays)
	}
}
