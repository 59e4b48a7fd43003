package ui

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed assets/*
var assetsFS embed.FS

// mediaTypes maps asset extensions to the media type used for minifying and serving
var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
}

type asset struct {
	contentType string
	data        []byte
}

// Page serves index.html at / and the other assets under /static/
type Page struct {
	assets map[string]asset
}

// New loads and minifies the embedded assets. An asset that fails to minify is
// served as written.
func New(logger *slog.Logger) (*Page, error) {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	p := &Page{assets: make(map[string]asset)}

	err := fs.WalkDir(assetsFS, "assets", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		mediaType, ok := mediaTypes[strings.ToLower(path.Ext(name))]
		if !ok {
			return nil
		}

		raw, err := assetsFS.ReadFile(name)
		if err != nil {
			return err
		}

		out, err := m.Bytes(mediaType, raw)
		if err != nil {
			logger.Warn("Minify failed, serving original",
				slog.String("asset", name),
				slog.String("error", err.Error()),
			)
			out = raw
		}

		p.assets[path.Base(name)] = asset{
			contentType: mediaType + "; charset=utf-8",
			data:        out,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// ServeHTTP serves an asset by request path
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := "index.html"
	if r.URL.Path != "/" {
		name = strings.TrimPrefix(r.URL.Path, "/static/")
	}

	a, ok := p.assets[name]
	if !ok || name == "" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", a.contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(a.data)
}
