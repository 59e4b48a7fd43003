// Package server implements the HTTP API, the audio file and page endpoints, and the
// websocket hub that pushes sequencer snapshots and deck commands to connected pages.
package server
