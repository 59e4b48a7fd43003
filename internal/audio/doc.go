// Package audio reads length metadata from audio files and maps file extensions to
// content types. It never decodes samples for playback; the external player does that.
package audio
