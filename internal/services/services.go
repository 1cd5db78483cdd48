// package services defines the HTTP clients of the sync agent
//
// Skyeng (identity, words, dictionary), AnkiConnect
package services

import (
	"context"

	"github.com/desertthunder/skyanki/internal/models"
)

// Vocabulary defines the read side of the sync: a student's word-sets, their words, and the
// dictionary meanings behind them.
type Vocabulary interface {
	// WordSets lists every word-set owned by the student.
	WordSets(ctx context.Context, studentID int64) ([]models.WordSet, error)

	// Words lists every word of every word-set, each joined with its word-set.
	Words(ctx context.Context, studentID int64) (models.Words, error)

	// Meanings resolves meaning ids to dictionary entries in a single request.
	Meanings(ctx context.Context, ids []uint64) ([]models.Meaning, error)
}

// Flashcards defines the write side of the sync.
type Flashcards interface {
	// AddNote creates a note and returns its id.
	// Returns [shared.ErrDuplicateNote] when an identical note already exists.
	AddNote(ctx context.Context, note Note) (int64, error)

	// CreateDeck creates the deck if it does not exist yet.
	CreateDeck(ctx context.Context, name string) (int64, error)

	// Sync pushes the local collection to AnkiWeb.
	Sync(ctx context.Context) error

	// Version returns the AnkiConnect API version.
	Version(ctx context.Context) (int, error)
}

// Note is an AnkiConnect note.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
	Audio     []Media           `json:"audio,omitempty"`
	Picture   []Media           `json:"picture,omitempty"`
	Options   *NoteOptions      `json:"options,omitempty"`
}

// Media is a remote file AnkiConnect downloads and attaches to a note field.
type Media struct {
	URL      string   `json:"url"`
	Filename string   `json:"filename"`
	Fields   []string `json:"fields"`
}

// NoteOptions controls AnkiConnect's duplicate check.
type NoteOptions struct {
	AllowDuplicate bool   `json:"allowDuplicate"`
	DuplicateScope string `json:"duplicateScope,omitempty"`
}
