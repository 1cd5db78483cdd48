package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/shared"
)

// Endpoints holds the Skyeng URLs used by [Session] and [SkyengService].
// Words is a format string taking the word-set id.
type Endpoints struct {
	LoginPage   string
	LoginSubmit string
	JWT         string
	WordSets    string
	Words       string
	Meanings    string
}

// DefaultEndpoints returns the production Skyeng endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		LoginPage:   "https://id.skyeng.ru/login",
		LoginSubmit: "https://id.skyeng.ru/frame/login-submit",
		JWT:         "https://id.skyeng.ru/user-api/v1/auth/jwt",
		WordSets:    "https://api-words.skyeng.ru/api/for-vimbox/v1/wordsets.json",
		Words:       "https://api-words.skyeng.ru/api/v1/wordsets/%d/words.json",
		Meanings:    "https://dictionary.skyeng.ru/api/for-services/v2/meanings",
	}
}

// EndpointsAt roots every endpoint at base, keeping the production paths.
func EndpointsAt(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		LoginPage:   base + "/login",
		LoginSubmit: base + "/frame/login-submit",
		JWT:         base + "/user-api/v1/auth/jwt",
		WordSets:    base + "/api/for-vimbox/v1/wordsets.json",
		Words:       base + "/api/v1/wordsets/%d/words.json",
		Meanings:    base + "/api/for-services/v2/meanings",
	}
}

// DeserializationError reports a response body that could not be decoded.
// Body keeps the raw payload for diagnostics.
type DeserializationError struct {
	Err  error
	Body []byte
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("%v: %v", shared.ErrDeserialization, e.Err)
}

func (e *DeserializationError) Unwrap() []error {
	return []error{shared.ErrDeserialization, e.Err}
}

// SkyengOpts configures a [SkyengService]. Zero values select the defaults.
type SkyengOpts struct {
	Endpoints      Endpoints
	HTTPClient     *http.Client
	PageSize       int
	RateLimit      float64 // requests per second, 0 disables pacing
	AcceptLanguage string
	Clock          func() time.Time
}

// SkyengService implements [Vocabulary] on the Skyeng words and dictionary APIs.
//
// Every request first asks the [Session] for a valid token, so an expired token is renewed
// transparently between pages.
type SkyengService struct {
	session        *Session
	endpoints      Endpoints
	httpClient     *http.Client
	limiter        *rate.Limiter
	pageSize       int
	acceptLanguage string
	now            func() time.Time
}

// NewSkyengService creates a client authenticated by session.
func NewSkyengService(session *Session, opts SkyengOpts) *SkyengService {
	svc := &SkyengService{
		session:        session,
		endpoints:      opts.Endpoints,
		httpClient:     opts.HTTPClient,
		pageSize:       opts.PageSize,
		acceptLanguage: opts.AcceptLanguage,
		now:            opts.Clock,
	}

	if svc.endpoints == (Endpoints{}) {
		svc.endpoints = DefaultEndpoints()
	}
	if svc.httpClient == nil {
		svc.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if svc.pageSize <= 0 {
		svc.pageSize = DefaultPageSize
	}
	if svc.acceptLanguage == "" {
		svc.acceptLanguage = "ru"
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if opts.RateLimit > 0 {
		svc.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return svc
}

// listing is the envelope of the paginated endpoints.
type listing[T any] struct {
	Data []T             `json:"data"`
	Meta models.PageMeta `json:"meta"`
}

// WordSets lists every word-set of the student.
func (s *SkyengService) WordSets(ctx context.Context, studentID int64) ([]models.WordSet, error) {
	sets, err := Paginate(ctx, s.pageSize, func(ctx context.Context, page, pageSize int) ([]models.WordSet, models.PageMeta, error) {
		query := url.Values{
			"studentId": {strconv.FormatInt(studentID, 10)},
			"page":      {strconv.Itoa(page)},
			"pageSize":  {strconv.Itoa(pageSize)},
		}

		var resp listing[models.WordSet]
		if err := s.doRequest(ctx, s.endpoints.WordSets, query, &resp); err != nil {
			return nil, models.PageMeta{}, err
		}
		return resp.Data, resp.Meta, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list word-sets: %w", err)
	}
	return sets, nil
}

// Words lists the words of every word-set, word-set by word-set, in server order.
func (s *SkyengService) Words(ctx context.Context, studentID int64) (models.Words, error) {
	sets, err := s.WordSets(ctx, studentID)
	if err != nil {
		return nil, err
	}

	words := models.Words{}
	for _, set := range sets {
		endpoint := fmt.Sprintf(s.endpoints.Words, set.ID)

		items, err := Paginate(ctx, s.pageSize, func(ctx context.Context, page, pageSize int) ([]models.Word, models.PageMeta, error) {
			query := url.Values{
				"studentId":      {strconv.FormatInt(studentID, 10)},
				"page":           {strconv.Itoa(page)},
				"pageSize":       {strconv.Itoa(pageSize)},
				"acceptLanguage": {s.acceptLanguage},
				"noCache":        {strconv.FormatInt(s.now().UnixMilli(), 10)},
			}

			var resp listing[models.Word]
			if err := s.doRequest(ctx, endpoint, query, &resp); err != nil {
				return nil, models.PageMeta{}, err
			}
			return resp.Data, resp.Meta, nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list words of word-set %d: %w", set.ID, err)
		}

		for _, w := range items {
			words = append(words, models.WordOfSet{WordSet: set, Word: w})
		}
	}
	return words, nil
}

// Meanings resolves ids in one request. An empty ids returns an empty result without a request.
func (s *SkyengService) Meanings(ctx context.Context, ids []uint64) ([]models.Meaning, error) {
	if len(ids) == 0 {
		return []models.Meaning{}, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}

	var meanings []models.Meaning
	query := url.Values{"ids": {strings.Join(parts, ",")}}
	if err := s.doRequest(ctx, s.endpoints.Meanings, query, &meanings); err != nil {
		return nil, fmt.Errorf("failed to fetch meanings: %w", err)
	}
	return meanings, nil
}

// doRequest performs an authenticated GET and decodes the JSON body into result.
func (s *SkyengService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrTransport, err)
		}
	}

	tok, err := s.session.EnsureValid(ctx)
	if err != nil {
		return err
	}

	fullURL := endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	bearer(tok).SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return shared.StatusError(resp.StatusCode, "skyeng API error")
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &DeserializationError{Err: err, Body: body}
	}
	return nil
}
