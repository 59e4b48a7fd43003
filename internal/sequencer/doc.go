// Package sequencer implements the playback state machine: the ordered item list, the
// current index, local versus routed mode, auto-advance with a pacing delay and the
// cancellable timers behind it. The browser page only renders what it publishes.
package sequencer
