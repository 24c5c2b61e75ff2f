package web

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/omniscale/mapent/render"
)

func (s *Server) loginForm(w http.ResponseWriter, req *http.Request) {
	page := s.page(req, "Log in")
	page.Data = render.LoginData{Next: safeNext(req.URL.Query().Get("next"))}
	s.render.HTML(w, http.StatusOK, "login.html", page)
}

func (s *Server) login(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	next := safeNext(req.PostFormValue("next"))
	user, err := s.auth.Login(req.Context(), req.PostFormValue("username"), req.PostFormValue("password"))
	if err != nil {
		page := s.page(req, "Log in")
		page.Data = render.LoginData{Error: "Invalid username or password.", Next: next}
		s.render.HTML(w, http.StatusOK, "login.html", page)
		return
	}
	s.logger.Info("user logged in", zap.String("user", user.Name))
	if next == "" {
		next = "/"
	}
	http.Redirect(w, req, next, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, req *http.Request) {
	if err := s.auth.Logout(req.Context()); err != nil {
		s.logger.Warn("logout", zap.Error(err))
	}
	http.Redirect(w, req, s.auth.LoginURL(), http.StatusFound)
}

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return ""
}
