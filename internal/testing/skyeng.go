package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/skyanki/internal/models"
)

const (
	sessionCookie = "session_global"
	authCookie    = "remember_me"
	tokenCookie   = "token_global"
)

// FakeSkyeng serves the Skyeng identity, words and dictionary endpoints from memory.
//
// Paths match the production ones, so a client pointed at URL with production paths talks
// to the fake. Exported fields may be changed between requests under Lock.
type FakeSkyeng struct {
	*httptest.Server
	sync.Mutex

	CSRF     string
	Username string
	Password string

	// LoginStatus, when non-zero, is returned by the login form regardless of credentials.
	LoginStatus int
	// NoTokenCookie makes the JWT endpoint answer 200 without a cookie.
	NoTokenCookie bool

	TokenValue  string
	TokenMaxAge int

	WordSets []models.WordSet
	Words    map[uint32][]models.Word
	Meanings []models.Meaning

	// Fail maps a request path to a status returned instead of the normal response.
	Fail map[string]int
	// Raw maps a request path to a body returned verbatim with status 200.
	Raw map[string]string

	Logins   int
	Requests []*http.Request
}

// NewFakeSkyeng starts a fake accepting user/secret. It is closed when the test ends.
func NewFakeSkyeng(t *testing.T) *FakeSkyeng {
	t.Helper()

	f := &FakeSkyeng{
		CSRF:        "csrf-0123456789",
		Username:    "student@example.com",
		Password:    "secret",
		TokenValue:  "jwt-token-1",
		TokenMaxAge: 3600,
		Words:       map[uint32][]models.Word{},
		Fail:        map[string]int{},
		Raw:         map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", f.loginPage)
	mux.HandleFunc("POST /frame/login-submit", f.loginSubmit)
	mux.HandleFunc("POST /user-api/v1/auth/jwt", f.issueJWT)
	mux.HandleFunc("GET /api/for-vimbox/v1/wordsets.json", f.authorized(f.wordSets))
	mux.HandleFunc("GET /api/v1/wordsets/{id}/words.json", f.authorized(f.words))
	mux.HandleFunc("GET /api/for-services/v2/meanings", f.authorized(f.meanings))

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// Paths returns the paths of every request served so far, in order.
func (f *FakeSkyeng) Paths() []string {
	f.Lock()
	defer f.Unlock()

	paths := make([]string, len(f.Requests))
	for i, r := range f.Requests {
		paths[i] = r.URL.Path
	}
	return paths
}

// LoginCount returns the number of tokens issued.
func (f *FakeSkyeng) LoginCount() int {
	f.Lock()
	defer f.Unlock()
	return f.Logins
}

func (f *FakeSkyeng) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.Lock()
		f.Requests = append(f.Requests, r.Clone(r.Context()))
		status, failing := f.Fail[r.URL.Path]
		raw, hasRaw := f.Raw[r.URL.Path]
		f.Unlock()

		switch {
		case failing:
			http.Error(w, http.StatusText(status), status)
		case hasRaw:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(raw))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (f *FakeSkyeng) loginPage(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	csrf := f.CSRF
	f.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s1", Path: "/"})
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html><body><form method="post" action="/frame/login-submit">
<input type="text" name="username">
<input type="password" name="password">
<input type="hidden" name="csrfToken" value="%s">
</form></body></html>`, csrf)
}

func (f *FakeSkyeng) loginSubmit(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()

	if f.LoginStatus != 0 {
		w.WriteHeader(f.LoginStatus)
		return
	}
	if _, err := r.Cookie(sessionCookie); err != nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("csrfToken") != f.CSRF {
		http.Error(w, "bad csrf", http.StatusForbidden)
		return
	}
	if r.PostForm.Get("username") != f.Username || r.PostForm.Get("password") != f.Password {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: "ok", Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (f *FakeSkyeng) issueJWT(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()

	if _, err := r.Cookie(authCookie); err != nil {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}

	f.Logins++
	if !f.NoTokenCookie {
		http.SetCookie(w, &http.Cookie{Name: tokenCookie, Value: f.TokenValue, MaxAge: f.TokenMaxAge, Path: "/"})
	}
	w.WriteHeader(http.StatusOK)
}

func (f *FakeSkyeng) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.Lock()
		want := "Bearer " + f.TokenValue
		f.Unlock()

		if r.Header.Get("Authorization") != want {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *FakeSkyeng) wordSets(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	sets := f.WordSets
	f.Unlock()

	writePage(w, r, sets)
}

func (f *FakeSkyeng) words(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "bad word-set id", http.StatusBadRequest)
		return
	}

	f.Lock()
	words := f.Words[uint32(id)]
	f.Unlock()

	writePage(w, r, words)
}

func (f *FakeSkyeng) meanings(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	byID := make(map[uint64]models.Meaning, len(f.Meanings))
	for _, m := range f.Meanings {
		byID[m.ID] = m
	}
	f.Unlock()

	out := []models.Meaning{}
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			http.Error(w, "bad id "+part, http.StatusBadRequest)
			return
		}
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	writeJSON(w, out)
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}

	last := max((len(items)+size-1)/size, 1)
	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))

	writeJSON(w, map[string]any{
		"data": items[start:end],
		"meta": models.PageMeta{Total: len(items), CurrentPage: page, LastPage: last, PageSize: size},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
