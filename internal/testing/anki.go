package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeAnki serves the AnkiConnect actions used by the sync from memory.
type FakeAnki struct {
	*httptest.Server
	sync.Mutex

	Decks []string
	Notes []json.RawMessage
	Syncs int

	// Errors maps an action to the error string it answers with.
	Errors map[string]string

	fronts map[string]bool
	nextID int64
}

// NewFakeAnki starts a fake AnkiConnect. It is closed when the test ends.
func NewFakeAnki(t *testing.T) *FakeAnki {
	t.Helper()

	f := &FakeAnki{Errors: map[string]string{}, fronts: map[string]bool{}, nextID: 1000}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// NoteCount returns the number of notes added.
func (f *FakeAnki) NoteCount() int {
	f.Lock()
	defer f.Unlock()
	return len(f.Notes)
}

func (f *FakeAnki) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string          `json:"action"`
		Version int             `json:"version"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.Lock()
	defer f.Unlock()

	if msg, ok := f.Errors[req.Action]; ok {
		answer(w, nil, msg)
		return
	}

	switch req.Action {
	case "version":
		answer(w, req.Version, "")
	case "createDeck":
		var p struct {
			Deck string `json:"deck"`
		}
		json.Unmarshal(req.Params, &p)
		f.Decks = append(f.Decks, p.Deck)
		answer(w, 1, "")
	case "addNote":
		var p struct {
			Note json.RawMessage `json:"note"`
		}
		json.Unmarshal(req.Params, &p)

		var note struct {
			Fields map[string]string `json:"fields"`
		}
		json.Unmarshal(p.Note, &note)

		front := note.Fields["Front"]
		if f.fronts[front] {
			answer(w, nil, "cannot create note because it is a duplicate")
			return
		}
		f.fronts[front] = true
		f.Notes = append(f.Notes, p.Note)
		f.nextID++
		answer(w, f.nextID, "")
	case "sync":
		f.Syncs++
		answer(w, nil, "")
	default:
		answer(w, nil, "unsupported action")
	}
}

func answer(w http.ResponseWriter, result any, errMsg string) {
	resp := map[string]any{"result": result, "error": nil}
	if errMsg != "" {
		resp["error"] = errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
