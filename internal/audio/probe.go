package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep/mp3"
	"github.com/go-audio/wav"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrUnsupportedFormat is returned for files whose length cannot be read
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidFile is returned when a file does not parse as its extension claims
	ErrInvalidFile = errors.New("invalid audio file")
)

// probeFunc reads the duration of an open audio file
type probeFunc func(f *os.File) (time.Duration, error)

// probes maps lower-case extensions to their duration readers
var probes = map[string]probeFunc{
	".mp3": probeMP3,
	".wav": probeWAV,
}

// Prober reads and caches audio durations. Entries are keyed by path, size and
// modification time so a rewritten file is probed again.
type Prober struct {
	cache *cache.Cache
}

// NewProber creates a prober with an unbounded duration cache
func NewProber() *Prober {
	return &Prober{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// Supported reports whether durations can be read for the file's extension
func Supported(name string) bool {
	_, ok := probes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Probe returns the playing time of the file at path
func (p *Prober) Probe(path string) (time.Duration, error) {
	probe, ok := probes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	key := cacheKey(path, info)
	if cached, found := p.cache.Get(key); found {
		return cached.(time.Duration), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	duration, err := probe(f)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	p.cache.Set(key, duration, cache.NoExpiration)
	return duration, nil
}

// Forget drops every cached duration for path
func (p *Prober) Forget(path string) {
	prefix := path + "|"
	for key := range p.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			p.cache.Delete(key)
		}
	}
}

// Len returns the number of cached durations
func (p *Prober) Len() int {
	return p.cache.ItemCount()
}

func cacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}

// probeMP3 counts frames through the mp3 decoder without reading samples
func probeMP3(f *os.File) (time.Duration, error) {
	// beep closes the reader it is given; the caller owns f
	return mp3Duration(nopCloser{f})
}

// mp3Duration needs rc to be seekable for the decoder to know the stream length
func mp3Duration(rc io.ReadCloser) (time.Duration, error) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer streamer.Close()

	frames := streamer.Len()
	if frames <= 0 {
		return 0, fmt.Errorf("%w: unknown stream length", ErrInvalidFile)
	}

	return format.SampleRate.D(frames), nil
}

func probeWAV(f *os.File) (time.Duration, error) {
	// Duration parses the RIFF chunks itself and reports 0 for anything it cannot read
	duration, err := wav.NewDecoder(f).Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%w: no RIFF/WAVE data", ErrInvalidFile)
	}

	return duration, nil
}

// nopCloser keeps the decoder from closing a file owned by Probe
type nopCloser struct {
	*os.File
}

func (nopCloser) Close() error { return nil }
