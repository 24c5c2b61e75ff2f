package auth

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testManager() (*Manager, *MemoryAuth) {
	a := NewMemoryAuth()
	a.AddUser("editor", "secret")
	a.Grant("editor", "read_road")
	m := NewManager(a, scs.New(), zap.NewNop())
	return m, a
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequirePermissionAnonymousRedirects(t *testing.T) {
	m, _ := testManager()
	h := m.RequirePermission("read_road", "")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/road/list/?page=2", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/?next=%2Froad%2Flist%2F%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRequirePermissionCustomLoginURL(t *testing.T) {
	m, _ := testManager()
	h := m.RequirePermission("change_road", "/road/7/")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/road/7/update/", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/road/7/?next=%2Froad%2F7%2Fupdate%2F", rec.Header().Get("Location"))
}

func TestRequirePermissionForbidden(t *testing.T) {
	m, a := testManager()
	h := m.RequirePermission("delete_road", "")(okHandler())

	user, _ := a.UserByName("editor")
	req := httptest.NewRequest("GET", "/road/7/delete/", nil)
	req = req.WithContext(WithUser(req.Context(), user))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePermissionGranted(t *testing.T) {
	m, a := testManager()
	h := m.RequirePermission("read_road", "")(okHandler())

	user, _ := a.UserByName("editor")
	req := httptest.NewRequest("GET", "/road/list/", nil)
	req = req.WithContext(WithUser(req.Context(), user))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermissionAnonymousAllowlist(t *testing.T) {
	m, _ := testManager()
	m.SetAnonymousPerms([]string{"read_road"})
	h := m.RequirePermission("read_road", "")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/road/list/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAutoLogin(t *testing.T) {
	m, _ := testManager()
	m.SetInternal("__internal__", []string{"10.0.0.5"})

	var seen *User
	h := m.AutoLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/road/layer.geojson", nil)
	req.RemoteAddr = "10.0.0.5:39112"
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "__internal__", seen.Name)
	assert.True(t, seen.HasPerm("read_road"))
	assert.False(t, seen.HasPerm("change_road"))

	seen = nil
	req = httptest.NewRequest("GET", "/road/layer.geojson", nil)
	req.RemoteAddr = "192.0.2.9:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, seen)
}

func TestLoginLogout(t *testing.T) {
	m, _ := testManager()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if _, err := m.Login(r.Context(), r.FormValue("user"), r.FormValue("password")); err != nil {
			http.Error(w, "invalid", http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		m.Logout(r.Context())
	})
	mux.Handle("/whoami", m.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := FromContext(r.Context())
		if u == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(u.Name))
	})))

	ts := httptest.NewServer(m.sessions.LoadAndSave(mux))
	defer ts.Close()

	jar := newCookieClient(t)

	resp, err := jar.Get(ts.URL + "/whoami")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", readBody(t, resp))

	resp, err = jar.Get(ts.URL + "/login?user=editor&password=wrong")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = jar.Get(ts.URL + "/login?user=editor&password=secret")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = jar.Get(ts.URL + "/whoami")
	require.NoError(t, err)
	assert.Equal(t, "editor", readBody(t, resp))

	_, err = jar.Get(ts.URL + "/logout")
	require.NoError(t, err)

	resp, err = jar.Get(ts.URL + "/whoami")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", readBody(t, resp))
}

func newCookieClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
