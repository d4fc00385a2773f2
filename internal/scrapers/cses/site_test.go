package cses

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	_ "embed"
)

//go:embed testdata/login.html
var loginTemplate string

//go:embed testdata/dashboard.html
var dashboardTemplate string

//go:embed testdata/profile.html
var profileTemplate string

const sessionCookie = "PHPSESSID"

type siteUser struct {
	id       int
	password string
	detail   Detail
	// profile replaces the rendered profile page when set.
	profile string
}

type siteSession struct {
	csrf string
	user string
}

type siteRequest struct {
	method string
	path   string
	cookie string
	header http.Header
}

// fakeSite serves just enough of cses for the login flow: a csrf protected
// login form bound to a cookie session, and per-user profile pages only
// visible to that session.
type fakeSite struct {
	mutex    sync.Mutex
	users    map[string]siteUser
	sessions map[string]*siteSession
	requests []siteRequest

	loginPageGets      int
	// loginPageFailures maps the nth GET /login (starting at 1) to how it fails:
	// "drop" closes the connection, otherwise it is used as the status code.
	loginPageFailures  map[int]string
	emptyLoginResponse bool
	omitCsrf           bool

	server *httptest.Server
}

func newFakeSite(t *testing.T, users map[string]siteUser) *fakeSite {
	site := &fakeSite{
		users:             users,
		sessions:          map[string]*siteSession{},
		loginPageFailures: map[int]string{},
	}
	site.server = httptest.NewServer(http.HandlerFunc(site.handle))
	t.Cleanup(site.server.Close)
	return site
}

func (f *fakeSite) Url() string {
	return f.server.URL
}

func (f *fakeSite) Requests() []siteRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]siteRequest(nil), f.requests...)
}

func (f *fakeSite) session(r *http.Request) *siteSession {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	return f.sessions[cookie.Value]
}

func (f *fakeSite) handle(w http.ResponseWriter, r *http.Request) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	cookie := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		cookie = c.Value
	}
	f.requests = append(f.requests, siteRequest{
		method: r.Method,
		path:   r.URL.Path,
		cookie: cookie,
		header: r.Header.Clone(),
	})

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/login":
		f.loginPage(w)
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		f.login(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/user/"):
		f.profile(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSite) loginPage(w http.ResponseWriter) {
	f.loginPageGets++
	failure, fail := f.loginPageFailures[f.loginPageGets]
	if fail {
		if failure == "drop" {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		status, _ := strconv.Atoi(failure)
		w.WriteHeader(status)
		return
	}

	id := strconv.Itoa(len(f.sessions) + 1)
	session := &siteSession{csrf: fmt.Sprintf("csrf-%s", id)}
	f.sessions["session-"+id] = session
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "session-" + id, Path: "/"})

	csrf := session.csrf
	page := loginTemplate
	if f.omitCsrf {
		page = strings.Replace(page, `name="csrf_token"`, `name="something_else"`, 1)
	}
	page = strings.ReplaceAll(page, "{{CSRF}}", csrf)
	w.Write([]byte(page))
}

func (f *fakeSite) login(w http.ResponseWriter, r *http.Request) {
	session := f.session(r)
	if session == nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	err := r.ParseForm()
	if err != nil || r.PostForm.Get("csrf_token") != session.csrf {
		http.Error(w, "bad csrf token", http.StatusForbidden)
		return
	}
	if f.emptyLoginResponse {
		return
	}

	nick := r.PostForm.Get("nick")
	user, ok := f.users[nick]
	if !ok || user.password != r.PostForm.Get("pass") {
		// a rejected login shows the login form again
		w.Write([]byte(strings.ReplaceAll(loginTemplate, "{{CSRF}}", session.csrf)))
		return
	}
	session.user = nick

	page := strings.NewReplacer(
		"{{ID}}", strconv.Itoa(user.id),
		"{{NICK}}", nick,
	).Replace(dashboardTemplate)
	w.Write([]byte(page))
}

func (f *fakeSite) profile(w http.ResponseWriter, r *http.Request) {
	session := f.session(r)
	if session == nil || session.user == "" {
		http.Error(w, "not logged in", http.StatusForbidden)
		return
	}
	user := f.users[session.user]
	if r.URL.Path != fmt.Sprintf("/user/%d", user.id) {
		http.Error(w, "wrong user", http.StatusForbidden)
		return
	}

	if user.profile != "" {
		w.Write([]byte(user.profile))
		return
	}
	page := strings.NewReplacer(
		"{{NICK}}", session.user,
		"{{NAME}}", user.detail.Name,
		"{{COUNTRY}}", user.detail.Country,
		"{{COUNT}}", user.detail.SubmissionCount,
		"{{FIRST}}", user.detail.FirstSubmission,
		"{{LAST}}", user.detail.LastSubmission,
	).Replace(profileTemplate)
	w.Write([]byte(page))
}
