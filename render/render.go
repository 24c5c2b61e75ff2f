// Package render executes the HTML templates of the GUI. Templates
// are compiled into the binary, a template directory can override
// single files and is reloaded on changes.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed templates
var builtinTemplates embed.FS

type Renderer struct {
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	pages map[string]*template.Template
}

func New(dir string, logger *zap.Logger) (*Renderer, error) {
	r := &Renderer{dir: dir, logger: logger}
	if err := r.load(); err != nil {
		return nil, err
	}
	if dir != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, err
		}
		r.watcher = w
		go r.watch()
	}
	return r, nil
}

func (r *Renderer) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Renderer) watch() {
	for {
		select {
		case evt, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(evt.Name, ".html") {
				continue
			}
			r.logger.Info("templates changed, reloading", zap.String("file", evt.Name))
			if err := r.load(); err != nil {
				r.logger.Error("template reload failed", zap.Error(err))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("template watcher", zap.Error(err))
		}
	}
}

func (r *Renderer) load() error {
	names := map[string]bool{}
	entries, err := fs.ReadDir(builtinTemplates, "templates")
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if strings.HasSuffix(ent.Name(), ".html") {
			names[ent.Name()] = true
		}
	}
	if r.dir != "" {
		if entries, err := os.ReadDir(r.dir); err == nil {
			for _, ent := range entries {
				if strings.HasSuffix(ent.Name(), ".html") {
					names[ent.Name()] = true
				}
			}
		}
	}

	base, err := r.read("base.html")
	if err != nil {
		return err
	}
	pages := map[string]*template.Template{}
	for name := range names {
		if name == "base.html" {
			continue
		}
		content, err := r.read(name)
		if err != nil {
			return err
		}
		tmpl, err := template.New("base.html").Parse(string(base))
		if err != nil {
			return errors.Wrap(err, "parsing base.html")
		}
		if _, err := tmpl.Parse(string(content)); err != nil {
			return errors.Wrapf(err, "parsing %s", name)
		}
		pages[name] = tmpl
	}
	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()
	return nil
}

// read returns a template file, preferring the template directory
// over the builtin templates.
func (r *Renderer) read(name string) ([]byte, error) {
	if r.dir != "" {
		if content, err := os.ReadFile(filepath.Join(r.dir, name)); err == nil {
			return content, nil
		}
	}
	return fs.ReadFile(builtinTemplates, path.Join("templates", name))
}

// HTML renders a page template. The response is buffered so template
// errors result in a 500, not in partial output.
func (r *Renderer) HTML(w http.ResponseWriter, status int, page string, data *Page) {
	r.mu.RLock()
	tmpl := r.pages[page]
	r.mu.RUnlock()
	if tmpl == nil {
		r.logger.Error("unknown template", zap.String("page", page))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	buf := bytes.Buffer{}
	if err := tmpl.Execute(&buf, data); err != nil {
		r.logger.Error("rendering failed", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// JSON writes v as JSON response.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent, nothing left to do
		return
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": message},
	})
}
