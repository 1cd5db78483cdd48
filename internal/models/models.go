// package models defines the data model for the Skyeng to Anki sync agent
package models

import (
	"time"
)

// Token is a bearer token issued by the Skyeng identity service.
//
// A Token is immutable once constructed. The zero value represents an absent token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// NewToken creates a [Token] from its value and expiry expressed in unix milliseconds.
func NewToken(value string, expiresAtMillis int64) Token {
	return Token{Value: value, ExpiresAt: time.UnixMilli(expiresAtMillis)}
}

// IsZero reports whether the token is absent.
func (t Token) IsZero() bool { return t.Value == "" }

// Expired reports whether the token is absent or its expiry is at or before now.
func (t Token) Expired(now time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.ExpiresAt.After(now)
}

// ExpiresAtMillis returns the expiry as unix milliseconds, the persisted representation.
func (t Token) ExpiresAtMillis() int64 { return t.ExpiresAt.UnixMilli() }

// Credentials holds the login pair for the Skyeng identity service. Never log it.
type Credentials struct {
	Username string
	Password string
}

// WordSet describes one vocabulary topic owned by a student.
type WordSet struct {
	ID       uint32 `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// Word is a single vocabulary entry inside a [WordSet].
type Word struct {
	MeaningID uint64 `json:"meaningId"`
	CreatedAt string `json:"createdAt"` // ISO-8601, compared as a string
}

// WordOfSet joins a [Word] with the [WordSet] it was listed under.
type WordOfSet struct {
	WordSet WordSet `json:"wordset"`
	Word    Word    `json:"word"`
}

// PageMeta is the pagination block returned by every listing endpoint.
type PageMeta struct {
	Total       int `json:"total"`
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
	PageSize    int `json:"pageSize"`
}

// Translation is the translated text of a meaning.
type Translation struct {
	Text string `json:"text"`
	Note string `json:"note,omitempty"`
}

// Definition is the explanatory text of a meaning with its pronunciation.
type Definition struct {
	Text     string `json:"text"`
	SoundURL string `json:"soundUrl"`
}

// Example is a usage sentence with its pronunciation.
type Example struct {
	Text     string `json:"text"`
	SoundURL string `json:"soundUrl"`
}

// Image is an illustration attached to a meaning.
type Image struct {
	URL string `json:"url"`
}

// Alternative is an alternative translation offered by the dictionary.
type Alternative struct {
	Text        string      `json:"text"`
	Translation Translation `json:"translation"`
}

// Meaning is a dictionary entry keyed by meaning id.
type Meaning struct {
	ID            uint64        `json:"id"`
	WordID        uint64        `json:"wordId"`
	Text          string        `json:"text"`
	Transcription string        `json:"transcription"`
	Translation   Translation   `json:"translation"`
	Definition    Definition    `json:"definition"`
	Examples      []Example     `json:"examples"`
	Images        []Image       `json:"images"`
	SoundURL      string        `json:"soundUrl"`
	Alternatives  []Alternative `json:"alternativeTranslations,omitempty"`
}

// WordRecord is the persisted form of an exported word.
type WordRecord struct {
	StudentID  int64
	WordSetID  int64
	WordID     int64
	Title      string
	Subtitle   string
	Meaning    string // raw JSON of the [Meaning]
	CreatedAt  string
	ExportedAt *time.Time
}

// Execution is one recorded sync pass.
type Execution struct {
	ID         string
	LastUpdate string
	Words      int
	CreatedAt  time.Time
}
