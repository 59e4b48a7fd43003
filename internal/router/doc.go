// Package router plays audio files through an external OS player so the sound can be
// captured as microphone input. It owns the single active player process and the
// simulated key that brackets it.
package router
