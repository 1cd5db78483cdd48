package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/shared"
)

// csrfField is the name of the hidden login form input carrying the anti-forgery token.
const csrfField = "csrfToken"

// TokenState is the lifecycle state of a [Session] token.
type TokenState int

const (
	TokenUnset TokenState = iota
	TokenValid
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenUnset:
		return "unset"
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return fmt.Sprintf("TokenState(%d)", int(s))
	}
}

// SessionOpts configures a [Session]. Zero values select the defaults.
type SessionOpts struct {
	Endpoints  Endpoints
	HTTPClient *http.Client // given a cookie jar when it has none
	Token      models.Token // previously persisted token
	Clock      func() time.Time
	Logger     *log.Logger
}

// Session keeps a valid Skyeng bearer token, logging in again whenever the token is
// unset or expired.
//
// A Session owns one cookie-carrying HTTP client for its whole lifetime: the login form
// submission sets the cookies the JWT endpoint relies on. Concurrent callers share a
// single login attempt.
type Session struct {
	mu        sync.Mutex
	creds     models.Credentials
	token     models.Token
	endpoints Endpoints
	client    *http.Client
	now       func() time.Time
	onChange  func(models.Token)
	logger    *log.Logger
}

// NewSession creates a session for creds.
func NewSession(creds models.Credentials, opts SessionOpts) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var client *http.Client
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	} else {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if client.Jar == nil {
		client.Jar = jar
	}

	endpoints := opts.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = DefaultEndpoints()
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Session{
		creds:     creds,
		token:     opts.Token,
		endpoints: endpoints,
		client:    client,
		now:       now,
		logger:    logger,
	}, nil
}

// OnTokenChange registers fn to be called after every successful login with the new token.
// A later registration replaces the earlier one.
//
// fn runs synchronously on the goroutine that performed the login, after the token is
// stored. It cannot fail the login: a panic in fn is recovered and logged.
func (s *Session) OnTokenChange(fn func(models.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State reports the current token state.
func (s *Session) State() TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Current returns the held token, which may be absent or expired.
func (s *Session) Current() models.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) stateLocked() TokenState {
	switch {
	case s.token.IsZero():
		return TokenUnset
	case s.token.Expired(s.now()):
		return TokenExpired
	default:
		return TokenValid
	}
}

// EnsureValid returns a token valid at the time of the call, logging in first when the held
// token is unset or expired. A failed login leaves the held token unchanged.
func (s *Session) EnsureValid(ctx context.Context) (models.Token, error) {
	return s.ensure(ctx, false)
}

// Refresh logs in even when the held token is still valid. A failed login leaves the held
// token unchanged and the change callback uncalled.
func (s *Session) Refresh(ctx context.Context) (models.Token, error) {
	return s.ensure(ctx, true)
}

func (s *Session) ensure(ctx context.Context, force bool) (models.Token, error) {
	s.mu.Lock()

	state := s.stateLocked()
	if state == TokenValid && !force {
		tok := s.token
		s.mu.Unlock()
		return tok, nil
	}

	s.logger.Info("logging in to skyeng", "login", shared.RedactLogin(s.creds.Username), "token", state)

	tok, err := s.login(ctx)
	if err != nil {
		s.mu.Unlock()
		return models.Token{}, err
	}

	s.token = tok
	notify := s.onChange
	s.mu.Unlock()

	s.logger.Info("token refreshed", "expires_at", tok.ExpiresAt.Format(time.RFC3339))
	s.notify(notify, tok)
	return tok, nil
}

func (s *Session) notify(fn func(models.Token), tok models.Token) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("token change handler panicked", "panic", r)
		}
	}()
	fn(tok)
}

// TokenSource adapts the session to [oauth2.TokenSource] so any [oauth2.Transport] can carry
// its bearer token. ctx bounds the logins performed on behalf of the source.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return sessionTokenSource{ctx: ctx, session: s}
}

type sessionTokenSource struct {
	ctx     context.Context
	session *Session
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.session.EnsureValid(ts.ctx)
	if err != nil {
		return nil, err
	}
	return bearer(tok), nil
}

func bearer(tok models.Token) *oauth2.Token {
	return &oauth2.Token{AccessToken: tok.Value, TokenType: "Bearer", Expiry: tok.ExpiresAt}
}

// login runs the three step flow: scrape the CSRF token, submit the form, request the JWT.
func (s *Session) login(ctx context.Context) (models.Token, error) {
	csrf, err := s.fetchCSRF(ctx)
	if err != nil {
		return models.Token{}, err
	}

	if err := s.submitLogin(ctx, csrf); err != nil {
		return models.Token{}, err
	}

	return s.issueJWT(ctx)
}

func (s *Session) fetchCSRF(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoints.LoginPage, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login page request failed: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", shared.StatusError(resp.StatusCode, "login page unavailable")
	}

	return scrapeCSRF(resp.Body)
}

// scrapeCSRF finds the value of the csrfToken input in an HTML document.
func scrapeCSRF(body io.Reader) (string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return "", fmt.Errorf("%w: unable to parse login page: %w", shared.ErrParsing, err)
	}

	node := findInput(doc, csrfField)
	if node == nil {
		return "", fmt.Errorf("%w: unable to find csrf element on the page", shared.ErrParsing)
	}

	value, ok := attr(node, "value")
	if !ok || value == "" {
		return "", fmt.Errorf("%w: unable to find value of csrf element", shared.ErrParsing)
	}
	return value, nil
}

func findInput(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == "input" {
		if v, ok := attr(n, "name"); ok && v == name {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findInput(c, name); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (s *Session) submitLogin(ctx context.Context, csrf string) error {
	form := url.Values{
		"username": {s.creds.Username},
		"password": {s.creds.Password},
		csrfField:  {csrf},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoints.LoginSubmit, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login request failed: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: bad credentials (status %d)", shared.ErrServer, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: bad credentials (status %d)", shared.ErrUser, resp.StatusCode)
	}
	return nil
}

func (s *Session) issueJWT(ctx context.Context) (models.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoints.JWT, nil)
	if err != nil {
		return models.Token{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: jwt request failed: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Token{}, shared.StatusError(resp.StatusCode, "jwt request failed")
	}

	cookie, err := firstCookie(resp.Header)
	if err != nil {
		return models.Token{}, err
	}

	expiresAt, err := s.cookieExpiry(cookie)
	if err != nil {
		return models.Token{}, err
	}

	return models.Token{Value: cookie.Value, ExpiresAt: expiresAt}, nil
}

// firstCookie parses the first Set-Cookie line of h. Later lines are never consulted, even
// when the first one is malformed.
func firstCookie(h http.Header) (*http.Cookie, error) {
	lines := h.Values("Set-Cookie")
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: jwt response carries no token cookie", shared.ErrServer)
	}

	cookie, err := http.ParseSetCookie(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed token cookie: %w", shared.ErrParsing, err)
	}
	if cookie.Value == "" {
		return nil, fmt.Errorf("%w: token cookie %q is empty", shared.ErrServer, cookie.Name)
	}
	return cookie, nil
}

// cookieExpiry reads the expiry from the cookie attributes, falling back to the exp claim of
// the JWT it carries. The signature is not verified: the token is only forwarded, never trusted.
func (s *Session) cookieExpiry(c *http.Cookie) (time.Time, error) {
	switch {
	case !c.Expires.IsZero():
		return c.Expires, nil
	case c.MaxAge > 0:
		return s.now().Add(time.Duration(c.MaxAge) * time.Second), nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(c.Value, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: token cookie has no expiry: %w", shared.ErrParsing, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: token cookie has no expiry", shared.ErrParsing)
	}
	return claims.ExpiresAt.Time, nil
}
