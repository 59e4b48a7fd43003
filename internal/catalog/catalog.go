package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/harshraj32/test-app-wispr-flow/internal/audio"
	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
)

var (
	// ErrNotFound is returned when a requested file is absent or not servable
	ErrNotFound = errors.New("audio file not found")

	// ErrUnreadable is returned when the audio directory exists but cannot be read
	ErrUnreadable = errors.New("failed to read audio directory")
)

// MissingDirectoryMessage is reported alongside an empty listing when the directory is absent
const MissingDirectoryMessage = "Audio directory not found. Please create the directory and add audio files."

const listingKey = "listing"

// Listing is the result of enumerating the audio directory
type Listing struct {
	Files   []string
	Message string
}

// Config contains lister configuration
type Config struct {
	Directory  string
	Extensions []string
	CacheTTL   time.Duration // 0 disables listing cache
}

// Lister enumerates and resolves audio files in a single directory
type Lister struct {
	dir        string
	extensions map[string]bool
	prober     *audio.Prober
	listings   *cache.Cache
	watching   atomic.Bool // listings are cached only while a Watcher invalidates them
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewLister creates a lister for cfg.Directory. prober may be nil, in which case
// durations are never known.
func NewLister(cfg Config, prober *audio.Prober, logger *slog.Logger, m *metrics.Metrics) *Lister {
	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		extensions[strings.ToLower(ext)] = true
	}

	l := &Lister{
		dir:        cfg.Directory,
		extensions: extensions,
		prober:     prober,
		logger:     logger,
		metrics:    m,
	}

	if cfg.CacheTTL > 0 {
		l.listings = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	return l
}

// Dir returns the directory being listed
func (l *Lister) Dir() string {
	return l.dir
}

// Accepts reports whether name carries an accepted audio extension
func (l *Lister) Accepts(name string) bool {
	return l.extensions[strings.ToLower(filepath.Ext(name))]
}

// List returns the sorted, extension-filtered file names of the audio directory.
// A missing directory yields an empty listing with a message and no error.
func (l *Lister) List() (Listing, error) {
	cacheable := l.listings != nil && l.watching.Load()
	if cacheable {
		if cached, found := l.listings.Get(listingKey); found {
			l.metrics.RecordListing("cached")
			return copyListing(cached.(Listing)), nil
		}
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Audio directory not found", slog.String("directory", l.dir))
			l.metrics.RecordListing("missing")
			return Listing{Files: []string{}, Message: MissingDirectoryMessage}, nil
		}

		l.logger.Error("Error reading audio directory",
			slog.String("directory", l.dir),
			slog.String("error", err.Error()),
		)
		l.metrics.RecordListing("error")
		return Listing{}, fmt.Errorf("%w %s: %v", ErrUnreadable, l.dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !l.Accepts(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	listing := Listing{Files: files}
	if cacheable {
		l.listings.Set(listingKey, listing, cache.DefaultExpiration)
	}

	l.metrics.RecordListing("ok")
	l.logger.Debug("Listed audio directory",
		slog.String("directory", l.dir),
		slog.Int("files", len(files)),
	)

	return copyListing(listing), nil
}

// Resolve maps a bare file name to its path inside the audio directory
func (l *Lister) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}

	if !l.Accepts(name) {
		return "", fmt.Errorf("%w: %s has an unaccepted extension", ErrNotFound, name)
	}

	path := filepath.Join(l.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrNotFound, name)
	}

	return path, nil
}

// Duration returns the playing time of name, read from the file's metadata
func (l *Lister) Duration(name string) (time.Duration, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return 0, err
	}

	if l.prober == nil {
		return 0, fmt.Errorf("%w: no prober configured", audio.ErrUnsupportedFormat)
	}

	return l.prober.Probe(path)
}

// Invalidate drops the cached listing and any cached duration of name
func (l *Lister) Invalidate(name string) {
	if l.listings != nil {
		l.listings.Delete(listingKey)
	}

	if l.prober != nil && name != "" {
		l.prober.Forget(filepath.Join(l.dir, name))
	}
}

func copyListing(in Listing) Listing {
	files := make([]string, len(in.Files))
	copy(files, in.Files)
	return Listing{Files: files, Message: in.Message}
}
