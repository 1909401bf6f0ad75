package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// webHandler serves the built dashboard from dir. Paths that do not name a
// file fall back to index.html so client-side routes survive a reload.
type webHandler struct {
	dir   string
	index string
	files http.Handler
}

// newWebHandler returns nil when dir holds no index.html.
func newWebHandler(dir string) *webHandler {
	if dir == "" {
		return nil
	}

	index := filepath.Join(dir, "index.html")
	if fi, err := os.Stat(index); err != nil || fi.IsDir() {
		log.Warn().Str("dir", dir).Msg("frontend dist not found, web UI will not be available")
		return nil
	}

	log.Debug().Str("dir", dir).Msg("serving web UI")
	return &webHandler{
		dir:   dir,
		index: index,
		files: http.FileServer(http.Dir(dir)),
	}
}

func (h *webHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		RespondError(w, http.StatusNotFound, "Not found")
		return
	}

	name := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if fi, err := os.Stat(name); err == nil && fi.Mode().IsRegular() {
		h.files.ServeHTTP(w, r)
		return
	}

	f, err := os.Open(h.index)
	if err != nil {
		log.Error().Err(err).Str("path", h.index).Msg("failed to open index.html")
		RespondError(w, http.StatusInternalServerError, "web UI unavailable")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "web UI unavailable")
		return
	}
	http.ServeContent(w, r, "index.html", fi.ModTime(), f)
}
