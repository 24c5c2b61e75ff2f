// Package web assembles the HTTP surface of a mapent application: the
// generated entity views, the login pages, media delivery and the JSON
// API consumed by the map client.
package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/omniscale/mapent"
	"github.com/omniscale/mapent/auth"
	"github.com/omniscale/mapent/cache"
	"github.com/omniscale/mapent/config"
	"github.com/omniscale/mapent/database"
	"github.com/omniscale/mapent/document"
	"github.com/omniscale/mapent/export"
	"github.com/omniscale/mapent/history"
	"github.com/omniscale/mapent/layer"
	"github.com/omniscale/mapent/mapping"
	"github.com/omniscale/mapent/render"
	"github.com/omniscale/mapent/sessions"
	"github.com/omniscale/mapent/stats"

	"github.com/alexedwards/scs/v2"
)

const sessionLifetime = 24 * time.Hour

type Options struct {
	Config  *config.Config
	Mapping *mapping.Mapping
	Store   database.Store
	Cache   *cache.Cache
	Auth    auth.Authenticator
	Logger  *zap.Logger
}

// Server holds the wired components behind the router. Build one with
// NewServer and serve Router().
type Server struct {
	conf      *config.Config
	mapping   *mapping.Mapping
	registry  *mapent.Registry
	store     database.Store
	auth      *auth.Manager
	sessions  *scs.SessionManager
	render    *render.Renderer
	exporter  *export.Exporter
	builder   *document.Builder
	converter *document.Converter
	capturer  *document.Capturer
	layers    *layer.Renderer
	stats     *stats.Stats
	logger    *zap.Logger
}

func NewServer(opts Options) (*Server, error) {
	conf := opts.Config
	logger := opts.Logger

	registry, err := buildRegistry(opts.Mapping)
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(conf.TemplateDir, logger.Named("render"))
	if err != nil {
		return nil, err
	}

	sm := sessions.Manager(opts.Cache, sessionLifetime)
	am := auth.NewManager(opts.Auth, sm, logger.Named("auth"))
	am.SetInternal(conf.InternalUser, conf.InternalIPs)
	am.SetAnonymousPerms(conf.AnonymousViews)
	am.SetLoginURL(conf.LoginURL)

	st := stats.New()
	layers := layer.NewRenderer(opts.Store, layer.NewBadgerCache(opts.Cache, logger.Named("layer")),
		conf.DefaultLanguage(), conf.Srid, logger.Named("layer"))
	layers.SetCacheObserver(st.LayerCache)

	return &Server{
		conf:      conf,
		mapping:   opts.Mapping,
		registry:  registry,
		store:     opts.Store,
		auth:      am,
		sessions:  sm,
		render:    renderer,
		exporter:  export.NewExporter(conf.Srid, conf.TempDir, logger.Named("export")),
		builder:   document.NewBuilder(conf.TemplateDir),
		converter: document.NewConverter(conf.ConversionServer),
		capturer:  document.NewCapturer(conf.CaptureServer, conf.MapCaptureSize, conf.MapCaptureMaxRatio),
		layers:    layers,
		stats:     st,
		logger:    logger,
	}, nil
}

func (s *Server) Close() error {
	return s.render.Close()
}

// buildRegistry registers one entity per mapping entry, in name order.
func buildRegistry(m *mapping.Mapping) (*mapent.Registry, error) {
	reg := mapent.NewRegistry()
	for _, name := range m.EntityNames() {
		e := m.Entities[name]
		kinds := make([]mapent.Kind, 0, len(e.Views))
		for _, v := range e.Views {
			kinds = append(kinds, mapent.Kind(v))
		}
		err := reg.Register(mapent.Entity{
			Name:        name,
			Label:       e.Label,
			LabelPlural: e.LabelPlural,
			Menu:        e.MenuEnabled(),
			Kinds:       kinds,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)
	r.Use(s.sessions.LoadAndSave)
	r.Use(s.auth.LoadUser)
	r.Use(s.auth.AutoLogin)

	r.Get("/", s.home)
	r.Get("/login/", s.loginForm)
	r.Post("/login/", s.login)
	r.Get("/logout/", s.logout)
	r.Get("/healthz", s.healthz)
	r.Get("/metrics", s.stats.Handler().ServeHTTP)
	r.Get("/api/settings.json", s.settings)
	r.Post("/history/delete/", s.historyDelete)
	r.With(s.requireUser).Get("/convert/", s.convertProxy)
	r.With(s.requireUser).Get("/map_screenshot/", s.mapScreenshot)
	r.With(s.requireUser).Post("/map_screenshot/", s.mapScreenshot)

	r.Handle(s.conf.MediaURL+"*",
		http.StripPrefix(s.conf.MediaURL, http.FileServer(http.Dir(s.conf.MediaDir))))
	r.With(s.requireUser).Get(s.conf.MediaURLSecure+"*", s.mediaSecure)

	for _, ent := range s.registry.Entities() {
		s.routeEntity(r, ent)
	}
	return r
}

func (s *Server) routeEntity(r chi.Router, ent mapent.Entity) {
	h := &entityHandler{srv: s, ent: ent, spec: s.mapping.Entities[ent.Name]}

	perm := func(kind mapent.Kind) func(http.Handler) http.Handler {
		codename := mapent.Codename(mapent.KindAction(kind), ent.Name)
		switch kind {
		case mapent.KindCreate:
			// anonymous users land on the list they came from
			return s.auth.RequirePermission(codename, ent.ListURL())
		case mapent.KindUpdate, mapent.KindDelete:
			// anonymous users land on the record they tried to edit
			return s.auth.RequirePermissionFunc(codename, func(req *http.Request) string {
				return "/" + ent.Name + "/" + chi.URLParam(req, "id") + "/"
			})
		}
		return s.auth.RequirePermission(codename, "")
	}
	count := func(kind mapent.Kind) func(http.Handler) http.Handler {
		return s.stats.Middleware(ent.Name, string(kind))
	}

	if ent.HasKind(mapent.KindLayer) {
		r.With(count(mapent.KindLayer), perm(mapent.KindLayer)).
			Get("/"+ent.Name+"/layer.geojson", h.layer)
	}
	if ent.HasKind(mapent.KindList) {
		r.With(count(mapent.KindList), perm(mapent.KindList)).
			Get("/"+ent.Name+"/list/", h.list)
	}
	if ent.HasKind(mapent.KindJSONList) {
		r.With(count(mapent.KindJSONList), perm(mapent.KindJSONList)).
			Get("/api/"+ent.Name+"/records.json", h.records)
	}
	if ent.HasKind(mapent.KindFormatList) {
		r.With(count(mapent.KindFormatList), perm(mapent.KindFormatList)).
			Get("/"+ent.Name+"/list/export", h.exportList)
	}
	if ent.HasKind(mapent.KindCreate) {
		grp := r.With(count(mapent.KindCreate), perm(mapent.KindCreate))
		grp.Get("/"+ent.Name+"/add/", h.createForm)
		grp.Post("/"+ent.Name+"/add/", h.create)
	}
	if ent.HasKind(mapent.KindDetail) {
		r.With(count(mapent.KindDetail), perm(mapent.KindDetail)).
			Get("/"+ent.Name+"/{id}/", h.detail)
	}
	if ent.HasKind(mapent.KindUpdate) {
		grp := r.With(count(mapent.KindUpdate), perm(mapent.KindUpdate))
		grp.Get("/"+ent.Name+"/{id}/update/", h.updateForm)
		grp.Post("/"+ent.Name+"/{id}/update/", h.update)
	}
	if ent.HasKind(mapent.KindDelete) {
		grp := r.With(count(mapent.KindDelete), perm(mapent.KindDelete))
		grp.Get("/"+ent.Name+"/{id}/delete/", h.deleteForm)
		grp.Post("/"+ent.Name+"/{id}/delete/", h.delete)
	}
	if ent.HasKind(mapent.KindDocument) {
		grp := r.With(count(mapent.KindDocument), perm(mapent.KindDocument))
		grp.Get("/"+ent.Name+"/{id}/document.odt", h.documentODT)
		grp.Get("/"+ent.Name+"/{id}/document.pdf", h.documentPDF)
	}
	if ent.HasKind(mapent.KindMapImage) {
		r.With(count(mapent.KindMapImage), perm(mapent.KindMapImage)).
			Get("/"+ent.Name+"/{id}/map.png", h.mapImage)
	}
}

// page builds the base template context shared by all HTML views.
func (s *Server) page(req *http.Request, title string) *render.Page {
	user := auth.FromContext(req.Context())
	flash, flashType := render.PopFlash(req.Context(), s.sessions)
	tab := req.URL.Query().Get("tab")
	if tab == "" {
		tab = "properties"
	}
	return &render.Page{
		Site: render.Site{
			Title:     s.conf.Title,
			Version:   mapent.Version,
			Debug:     s.conf.Debug,
			Language:  s.conf.DefaultLanguage(),
			Languages: s.conf.Languages,
			MediaURL:  s.conf.MediaURL,
			Fogged:    s.conf.MapBackgroundFogged,
		},
		Title:     title,
		User:      user,
		Menu:      s.menu(user),
		History:   history.List(req.Context(), s.sessions),
		Flash:     flash,
		FlashType: flashType,
		ActiveTab: tab,
	}
}

// menu lists the entities the user can read, in registration order.
func (s *Server) menu(user *auth.User) []render.MenuEntry {
	var menu []render.MenuEntry
	for _, e := range s.registry.Entities() {
		if !e.Menu {
			continue
		}
		if !s.auth.Allowed(user, mapent.Codename(mapent.ActionRead, e.Name)) {
			continue
		}
		menu = append(menu, render.MenuEntry{
			Label: e.LabelPlural,
			URL:   e.ListURL(),
			Icon:  e.IconSmall(),
		})
	}
	return menu
}

// home redirects to the first readable entity list, or to the login
// page when nothing is readable.
func (s *Server) home(w http.ResponseWriter, req *http.Request) {
	user := auth.FromContext(req.Context())
	for _, e := range s.registry.Entities() {
		if !e.HasKind(mapent.KindList) {
			continue
		}
		if s.auth.Allowed(user, mapent.Codename(mapent.ActionRead, e.Name)) {
			http.Redirect(w, req, e.ListURL(), http.StatusFound)
			return
		}
	}
	http.Redirect(w, req, s.auth.LoginURL(), http.StatusFound)
}

func (s *Server) healthz(w http.ResponseWriter, req *http.Request) {
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// settings serves the document the map client configures itself with.
func (s *Server) settings(w http.ResponseWriter, req *http.Request) {
	type entityInfo struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		LabelPlural string `json:"label_plural"`
		ListURL     string `json:"list_url"`
		LayerURL    string `json:"layer_url"`
		Icon        string `json:"icon"`
	}
	user := auth.FromContext(req.Context())
	entities := []entityInfo{}
	for _, e := range s.registry.Entities() {
		if !s.auth.Allowed(user, mapent.Codename(mapent.ActionRead, e.Name)) {
			continue
		}
		entities = append(entities, entityInfo{
			Name:        e.Name,
			Label:       e.Label,
			LabelPlural: e.LabelPlural,
			ListURL:     e.ListURL(),
			LayerURL:    "/" + e.Name + "/layer.geojson",
			Icon:        e.Icon(),
		})
	}
	render.JSON(w, http.StatusOK, map[string]interface{}{
		"title":   s.conf.Title,
		"version": mapent.Version,
		"debug":   s.conf.Debug,
		"srid":    config.APISrid,
		"languages": map[string]interface{}{
			"available": s.conf.Languages,
			"default":   s.conf.DefaultLanguage(),
		},
		"map": map[string]interface{}{
			"fogged": s.conf.MapBackgroundFogged,
		},
		"urls": map[string]string{
			"root":           s.conf.RootURL,
			"login":          s.conf.LoginURL,
			"logout":         "/logout/",
			"media":          s.conf.MediaURL,
			"history_delete": "/history/delete/",
			"screenshot":     "/map_screenshot/",
		},
		"entities": entities,
	})
}

// historyDelete removes one path from the session navigation history.
func (s *Server) historyDelete(w http.ResponseWriter, req *http.Request) {
	path := req.FormValue("path")
	if path != "" {
		history.DeletePath(req.Context(), s.sessions, path)
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser admits any signed in account, including the internal
// user the capture and conversion servers authenticate as.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if auth.FromContext(req.Context()).IsAnonymous() {
			to := s.auth.LoginURL() + "?next=" + url.QueryEscape(req.URL.RequestURI())
			http.Redirect(w, req, to, http.StatusFound)
			return
		}
		next.ServeHTTP(w, req)
	})
}
