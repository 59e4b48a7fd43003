// Package keys simulates the modifier key held down while audio is routed to the
// virtual microphone. Support is best-effort and depends on the platform.
package keys
