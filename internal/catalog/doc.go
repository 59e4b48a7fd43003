// Package catalog lists the audio files of the configured directory, resolves file
// names to paths and keeps cached listings fresh by watching the directory.
package catalog
