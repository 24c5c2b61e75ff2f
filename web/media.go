package web

import (
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/omniscale/mapent/document"
)

// mediaSecure serves protected media. With a sendfile header
// configured the response only names the file and the front webserver
// delivers it from its internal location.
func (s *Server) mediaSecure(w http.ResponseWriter, req *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+chi.URLParam(req, "*")), "/")
	if rel == "" || rel == "." {
		http.NotFound(w, req)
		return
	}
	if s.conf.SendfileHeader != "" {
		w.Header().Set(s.conf.SendfileHeader, s.conf.MediaURLSecure+rel)
		return
	}
	http.ServeFile(w, req, filepath.Join(s.conf.MediaDir, filepath.FromSlash(rel)))
}

// convertProxy hands a document URL to the conversion server and
// streams the result back as a download.
func (s *Server) convertProxy(w http.ResponseWriter, req *http.Request) {
	docURL := req.URL.Query().Get("url")
	if docURL == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	if strings.HasPrefix(docURL, "/") {
		docURL = s.conf.RootURL + docURL
	}
	to := req.URL.Query().Get("to")
	if to == "" {
		to = "pdf"
	}

	body, mediaType, err := s.converter.Convert(req.Context(), docURL, to)
	if err != nil {
		if errors.Cause(err) == document.ErrConversionUnavailable {
			http.Error(w, "conversion server not configured", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("convert", zap.String("url", docURL), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+convertedName(docURL, to)+`"`)
	w.Write(body)
}

// convertedName swaps the extension of the source document for the
// conversion target, e.g. document.odt -> document.pdf.
func convertedName(docURL, to string) string {
	base := "document"
	if u, err := url.Parse(docURL); err == nil && u.Path != "" {
		base = path.Base(u.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return base + "." + to
}

// mapScreenshot captures the map view of an application page through
// the capture server and returns the image as a download.
func (s *Server) mapScreenshot(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	target := req.FormValue("url")
	if !strings.HasPrefix(target, "/") {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	width, height := s.capturer.Size(formRatio(req))

	img, err := s.capturer.Capture(req.Context(), s.conf.RootURL+target, width, height)
	if err != nil {
		if errors.Cause(err) == document.ErrCaptureUnavailable {
			http.Error(w, "capture server not configured", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("screenshot", zap.String("url", target), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="screenshot.png"`)
	w.Write(img)
}

// formRatio reads the requested viewport shape, 1 when absent.
func formRatio(req *http.Request) float64 {
	width, errW := strconv.ParseFloat(req.FormValue("width"), 64)
	height, errH := strconv.ParseFloat(req.FormValue("height"), 64)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 1
	}
	return width / height
}
