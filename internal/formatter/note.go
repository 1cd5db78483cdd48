package formatter

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/services"
)

// Mask replaces the studied word in card text.
const Mask = "[...]"

const (
	FieldFront = "Front"
	FieldBack  = "Back"
)

// NoteOpts selects where notes go and how they are tagged.
type NoteOpts struct {
	Deck           string
	Model          string
	Tags           []string
	AllowDuplicate bool
}

// bracketed matches the "[word]" markers Skyeng puts around the studied word in examples.
var bracketed = regexp.MustCompile(`\[[^\[\]]*\]`)

// tagUnsafe matches runs of characters Anki does not accept inside a tag.
var tagUnsafe = regexp.MustCompile(`[\s"]+`)

// BuildNote turns a meaning into a Basic note: the word with its transcription and sound on the
// front; translation, definition, examples and picture on the back.
//
// The word is masked in the definition and examples so the back does not give the front away.
func BuildNote(word models.WordOfSet, m models.Meaning, opts NoteOpts) services.Note {
	note := services.Note{
		DeckName:  opts.Deck,
		ModelName: opts.Model,
		Fields: map[string]string{
			FieldFront: front(m),
			FieldBack:  back(m),
		},
		Tags: Tags(word.WordSet, opts.Tags),
		Options: &services.NoteOptions{
			AllowDuplicate: opts.AllowDuplicate,
			DuplicateScope: "deck",
		},
	}

	if m.SoundURL != "" {
		note.Audio = append(note.Audio, services.NewMedia(AbsoluteURL(m.SoundURL), FieldFront))
	}
	if len(m.Images) > 0 && m.Images[0].URL != "" {
		note.Picture = append(note.Picture, services.NewMedia(AbsoluteURL(m.Images[0].URL), FieldBack))
	}

	return note
}

func front(m models.Meaning) string {
	text := html.EscapeString(m.Text)
	if m.Transcription != "" {
		text += fmt.Sprintf(` <span class="transcription">[%s]</span>`, html.EscapeString(m.Transcription))
	}
	return text
}

func back(m models.Meaning) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<div class="translation">%s</div>`, html.EscapeString(m.Translation.Text))
	if m.Translation.Note != "" {
		fmt.Fprintf(&b, `<div class="note">%s</div>`, html.EscapeString(m.Translation.Note))
	}
	if m.Definition.Text != "" {
		fmt.Fprintf(&b, `<div class="definition">%s</div>`, html.EscapeString(MaskText(m.Definition.Text, m.Text)))
	}

	if len(m.Examples) > 0 {
		b.WriteString(`<ul class="examples">`)
		for _, ex := range m.Examples {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(MaskText(ex.Text, m.Text)))
		}
		b.WriteString("</ul>")
	}

	if len(m.Alternatives) > 0 {
		alts := make([]string, 0, len(m.Alternatives))
		for _, alt := range m.Alternatives {
			alts = append(alts, html.EscapeString(alt.Translation.Text))
		}
		fmt.Fprintf(&b, `<div class="alternatives">%s</div>`, strings.Join(alts, ", "))
	}

	return b.String()
}

// MaskText hides word in text. Bracketed segments are masked when present, otherwise every
// case-insensitive occurrence of word is.
func MaskText(text, word string) string {
	if bracketed.MatchString(text) {
		return bracketed.ReplaceAllString(text, Mask)
	}
	if strings.TrimSpace(word) == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
	return re.ReplaceAllString(text, Mask)
}

// Tags returns base followed by a tag derived from the word-set title, without duplicates.
func Tags(set models.WordSet, base []string) []string {
	tags := make([]string, 0, len(base)+1)
	seen := make(map[string]bool, len(base)+1)

	add := func(tag string) {
		tag = strings.Trim(tagUnsafe.ReplaceAllString(strings.TrimSpace(tag), "_"), "_")
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range base {
		add(t)
	}
	add(set.Title)
	return tags
}

// AbsoluteURL upgrades protocol-relative media URLs to https.
func AbsoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
