package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/skyanki/internal/shared"
)

// DefaultAnkiURL is where the AnkiConnect add-on listens by default.
const DefaultAnkiURL = "http://127.0.0.1:8765"

const ankiConnectVersion = 6

// AnkiService implements [Flashcards] on the AnkiConnect add-on.
type AnkiService struct {
	url        string
	httpClient *http.Client
}

// NewAnkiService creates a client for the AnkiConnect instance at url.
func NewAnkiService(url string, client *http.Client) *AnkiService {
	if url == "" {
		url = DefaultAnkiURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &AnkiService{url: url, httpClient: client}
}

type ankiRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type ankiResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// Version returns the AnkiConnect API version, which doubles as a reachability check.
func (a *AnkiService) Version(ctx context.Context) (int, error) {
	var version int
	if err := a.invoke(ctx, "version", nil, &version); err != nil {
		return 0, err
	}
	return version, nil
}

// CreateDeck creates name, returning the id of the existing deck when it is already present.
func (a *AnkiService) CreateDeck(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := a.invoke(ctx, "createDeck", map[string]string{"deck": name}, &id); err != nil {
		return 0, fmt.Errorf("failed to create deck %q: %w", name, err)
	}
	return id, nil
}

// AddNote adds note and returns its id. AnkiConnect downloads the note's media itself.
func (a *AnkiService) AddNote(ctx context.Context, note Note) (int64, error) {
	var id int64
	if err := a.invoke(ctx, "addNote", map[string]Note{"note": note}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Sync triggers an AnkiWeb synchronization of the open profile.
func (a *AnkiService) Sync(ctx context.Context) error {
	return a.invoke(ctx, "sync", nil, nil)
}

func (a *AnkiService) invoke(ctx context.Context, action string, params, result any) error {
	payload, err := json.Marshal(ankiRequest{Action: action, Version: ankiConnectVersion, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: anki is not reachable at %s: %w", shared.ErrServiceUnavailable, a.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return shared.StatusError(resp.StatusCode, action+" failed")
	}

	var envelope ankiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &DeserializationError{Err: err, Body: body}
	}

	if envelope.Error != nil {
		msg := *envelope.Error
		if strings.Contains(msg, "duplicate") {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateNote, msg)
		}
		return fmt.Errorf("%w: %s: %s", shared.ErrAPIRequest, action, msg)
	}

	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return &DeserializationError{Err: err, Body: envelope.Result}
	}
	return nil
}
