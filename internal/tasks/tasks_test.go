package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/skyanki/internal/formatter"
	"github.com/desertthunder/skyanki/internal/metrics"
	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/repositories"
	"github.com/desertthunder/skyanki/internal/services"
	"github.com/desertthunder/skyanki/internal/shared"
	tu "github.com/desertthunder/skyanki/internal/testing"
)

type mockVocabulary struct {
	words       models.Words
	meanings    []models.Meaning
	wordsErr    error
	meaningsErr error
	requested   [][]uint64
}

func (m *mockVocabulary) WordSets(ctx context.Context, studentID int64) ([]models.WordSet, error) {
	return nil, nil
}

func (m *mockVocabulary) Words(ctx context.Context, studentID int64) (models.Words, error) {
	if m.wordsErr != nil {
		return nil, m.wordsErr
	}
	return m.words, nil
}

func (m *mockVocabulary) Meanings(ctx context.Context, ids []uint64) ([]models.Meaning, error) {
	m.requested = append(m.requested, ids)
	if m.meaningsErr != nil {
		return nil, m.meaningsErr
	}
	byID := map[uint64]models.Meaning{}
	for _, mm := range m.meanings {
		byID[mm.ID] = mm
	}
	var out []models.Meaning
	for _, id := range ids {
		if mm, ok := byID[id]; ok {
			out = append(out, mm)
		}
	}
	return out, nil
}

type mockFlashcards struct {
	notes      []services.Note
	decks      []string
	syncs      int
	addErr     error
	failAfter  int // AddNote returns addErr once this many notes were added
	duplicates map[string]bool
	syncErr    error
}

func (m *mockFlashcards) AddNote(ctx context.Context, note services.Note) (int64, error) {
	if m.addErr != nil && len(m.notes) >= m.failAfter {
		return 0, m.addErr
	}
	if m.duplicates[note.Fields[formatter.FieldFront]] {
		return 0, fmt.Errorf("%w: cannot create note because it is a duplicate", shared.ErrDuplicateNote)
	}
	m.notes = append(m.notes, note)
	return int64(len(m.notes)), nil
}

func (m *mockFlashcards) CreateDeck(ctx context.Context, name string) (int64, error) {
	m.decks = append(m.decks, name)
	return 1, nil
}

func (m *mockFlashcards) Sync(ctx context.Context) error {
	m.syncs++
	return m.syncErr
}

func (m *mockFlashcards) Version(ctx context.Context) (int, error) { return 6, nil }

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db, shared.DriverSQLite); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func wordOf(set uint32, id uint64, createdAt string) models.WordOfSet {
	return models.WordOfSet{
		WordSet: models.WordSet{ID: set, Title: fmt.Sprintf("Set %d", set)},
		Word:    models.Word{MeaningID: id, CreatedAt: createdAt},
	}
}

func meaningOf(id uint64, text string) models.Meaning {
	return models.Meaning{ID: id, Text: text, Translation: models.Translation{Text: "t-" + text}}
}

type fixture struct {
	vocab      *mockVocabulary
	cards      *mockFlashcards
	executions *repositories.ExecutionRepository
	words      *repositories.WordRepository
	metrics    *metrics.Metrics
	engine     *SyncEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	f := &fixture{
		vocab: &mockVocabulary{
			words: models.Words{
				wordOf(1, 10, "2021-03-01T10:00:00+00:00"),
				wordOf(1, 11, "2021-03-02T10:00:00+00:00"),
				wordOf(2, 12, "2021-03-03T10:00:00+00:00"),
			},
			meanings: []models.Meaning{meaningOf(10, "deter"), meaningOf(11, "abide"), meaningOf(12, "comply")},
		},
		cards:      &mockFlashcards{duplicates: map[string]bool{}},
		executions: repositories.NewExecutionRepository(db, shared.DriverSQLite),
		words:      repositories.NewWordRepository(db, shared.DriverSQLite),
		metrics:    metrics.New(),
	}
	f.engine = NewSyncEngine(f.vocab, f.cards, f.executions, f.words, f.metrics, nil)
	f.engine.now = func() time.Time { return time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

var syncOpts = SyncOpts{
	StudentID: 7,
	Note:      formatter.NoteOpts{Deck: "Skyeng", Model: "Basic", Tags: []string{"skyeng"}},
	AnkiSync:  true,
}

func TestSyncEngine(t *testing.T) {
	t.Run("Not Initialized", func(t *testing.T) {
		engine := NewSyncEngine(nil, nil, nil, nil, nil, nil)
		_, err := engine.Run(context.Background(), syncOpts, nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}
	})

	t.Run("First Pass Exports Everything", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Listed != 3 || result.New != 3 || result.Added != 3 {
			t.Errorf("unexpected counts %+v", result)
		}
		if len(f.cards.notes) != 3 {
			t.Fatalf("expected 3 notes, got %d", len(f.cards.notes))
		}
		if f.cards.notes[0].Fields[formatter.FieldFront] != "deter" {
			t.Errorf("expected notes in listing order, got %q first", f.cards.notes[0].Fields[formatter.FieldFront])
		}
		if len(f.cards.decks) != 1 || f.cards.decks[0] != "Skyeng" {
			t.Errorf("expected deck to be created, got %v", f.cards.decks)
		}
		if f.cards.syncs != 1 {
			t.Errorf("expected one anki sync, got %d", f.cards.syncs)
		}

		last, _ := f.executions.LastUpdate()
		if last != "2021-03-03T10:00:00+00:00" {
			t.Errorf("expected watermark to advance to the newest word, got %q", last)
		}
		if result.Execution == nil || result.Execution.Words != 3 {
			t.Errorf("expected recorded execution, got %+v", result.Execution)
		}

		if n, _ := f.words.Count(7); n != 3 {
			t.Errorf("expected 3 stored words, got %d", n)
		}
		if testutil.ToFloat64(f.metrics.Success) != 1 || testutil.ToFloat64(f.metrics.NotesAdded) != 3 {
			t.Error("expected success metrics")
		}
	})

	t.Run("Second Pass Without New Words", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.engine.Run(context.Background(), syncOpts, nil); err != nil {
			t.Fatalf("first pass failed: %v", err)
		}

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if result.New != 0 || result.Added != 0 || result.Execution != nil {
			t.Errorf("expected an empty pass, got %+v", result)
		}
		if len(f.vocab.requested) != 1 {
			t.Errorf("expected no meanings request without new words, got %d", len(f.vocab.requested))
		}
		if len(f.cards.notes) != 3 || f.cards.syncs != 1 {
			t.Errorf("expected anki untouched, got %d notes %d syncs", len(f.cards.notes), f.cards.syncs)
		}
	})

	t.Run("Only Words After Watermark", func(t *testing.T) {
		f := newFixture(t)
		f.executions.Record("2021-03-01T10:00:00+00:00", 1)

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Watermark != "2021-03-01T10:00:00+00:00" || result.New != 2 {
			t.Errorf("unexpected result %+v", result)
		}
		if got := f.vocab.requested[0]; len(got) != 2 || got[0] != 11 || got[1] != 12 {
			t.Errorf("expected meanings of new words only, got %v", got)
		}
	})

	t.Run("Anki Failure Keeps Watermark", func(t *testing.T) {
		f := newFixture(t)
		f.cards.addErr = fmt.Errorf("%w: collection is not available", shared.ErrAPIRequest)
		f.cards.failAfter = 1

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected anki error, got %v", err)
		}
		if result == nil || result.Added != 1 {
			t.Errorf("expected partial progress to be reported, got %+v", result)
		}

		last, _ := f.executions.LastUpdate()
		if last != "" {
			t.Errorf("expected watermark unchanged, got %q", last)
		}
		if f.cards.syncs != 0 {
			t.Error("expected no anki sync after a failure")
		}
		if testutil.ToFloat64(f.metrics.Success) != 0 {
			t.Error("expected failure metric")
		}

		f.cards.addErr = nil
		retry, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if retry.Added != 2 || retry.Skipped != 1 {
			t.Errorf("expected retry to skip the exported word, got %+v", retry)
		}
		if len(f.cards.notes) != 3 {
			t.Errorf("expected each word added once, got %d notes", len(f.cards.notes))
		}
	})

	t.Run("Anki Sync Failure Keeps Watermark", func(t *testing.T) {
		f := newFixture(t)
		f.cards.syncErr = errors.New("ankiweb unreachable")

		if _, err := f.engine.Run(context.Background(), syncOpts, nil); err == nil {
			t.Fatal("expected error")
		}
		if last, _ := f.executions.LastUpdate(); last != "" {
			t.Errorf("expected watermark unchanged, got %q", last)
		}
	})

	t.Run("Anki Sync Disabled", func(t *testing.T) {
		f := newFixture(t)
		opts := syncOpts
		opts.AnkiSync = false

		if _, err := f.engine.Run(context.Background(), opts, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.cards.syncs != 0 {
			t.Errorf("expected no anki sync, got %d", f.cards.syncs)
		}
	})

	t.Run("Duplicate Notes Are Skipped", func(t *testing.T) {
		f := newFixture(t)
		f.cards.duplicates["abide"] = true

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Added != 2 || result.Skipped != 1 {
			t.Errorf("expected one skipped duplicate, got %+v", result)
		}
		if exported, _ := f.words.Exported(7, 1, 11); !exported {
			t.Error("expected duplicate to be recorded as exported")
		}
		if last, _ := f.executions.LastUpdate(); last != "2021-03-03T10:00:00+00:00" {
			t.Errorf("expected watermark to advance, got %q", last)
		}
	})

	t.Run("Missing Meaning", func(t *testing.T) {
		f := newFixture(t)
		f.vocab.meanings = f.vocab.meanings[:2]

		result, err := f.engine.Run(context.Background(), syncOpts, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Missing != 1 || result.Added != 2 {
			t.Errorf("unexpected counts %+v", result)
		}
	})

	t.Run("Listing Failure", func(t *testing.T) {
		f := newFixture(t)
		f.vocab.wordsErr = fmt.Errorf("%w: token rejected", shared.ErrUser)

		_, err := f.engine.Run(context.Background(), syncOpts, nil)
		if !errors.Is(err, shared.ErrUser) {
			t.Errorf("expected user error, got %v", err)
		}
		if len(f.cards.notes) != 0 || len(f.cards.decks) != 0 {
			t.Error("expected anki untouched")
		}
	})

	t.Run("Meanings Failure", func(t *testing.T) {
		f := newFixture(t)
		f.vocab.meaningsErr = &services.DeserializationError{Err: errors.New("bad json"), Body: []byte("{")}

		_, err := f.engine.Run(context.Background(), syncOpts, nil)
		if !errors.Is(err, shared.ErrDeserialization) {
			t.Errorf("expected deserialization error, got %v", err)
		}
		if last, _ := f.executions.LastUpdate(); last != "" {
			t.Errorf("expected watermark unchanged, got %q", last)
		}
	})

	t.Run("Dry Run", func(t *testing.T) {
		f := newFixture(t)
		opts := syncOpts
		opts.DryRun = true

		result, err := f.engine.Run(context.Background(), opts, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Notes) != 3 || result.Added != 3 {
			t.Errorf("expected 3 built notes, got %+v", result)
		}
		if len(f.cards.notes) != 0 || len(f.cards.decks) != 0 || f.cards.syncs != 0 {
			t.Error("expected anki untouched on a dry run")
		}
		if last, _ := f.executions.LastUpdate(); last != "" {
			t.Errorf("expected watermark unchanged, got %q", last)
		}
		if n, _ := f.words.Count(7); n != 0 {
			t.Errorf("expected no stored words, got %d", n)
		}
	})

	t.Run("Progress Phases", func(t *testing.T) {
		f := newFixture(t)
		progress := make(chan ProgressUpdate, 32)

		if _, err := f.engine.Run(context.Background(), syncOpts, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for u := range progress {
			if len(phases) == 0 || phases[len(phases)-1] != u.Phase {
				phases = append(phases, u.Phase)
			}
		}

		want := []Phase{LoadWatermark, FetchWords, FilterWords, FetchMeanings, AddNotes, SyncAnki, SaveWatermark}
		if fmt.Sprint(phases) != fmt.Sprint(want) {
			t.Errorf("expected phases %v, got %v", want, phases)
		}
	})

	t.Run("Full Progress Channel Does Not Block", func(t *testing.T) {
		f := newFixture(t)
		progress := make(chan ProgressUpdate)

		done := make(chan error, 1)
		go func() {
			_, err := f.engine.Run(context.Background(), syncOpts, progress)
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("sync blocked on an unread progress channel")
		}
	})
}

func TestSyncEndToEnd(t *testing.T) {
	skyeng := tu.NewFakeSkyeng(t)
	skyeng.WordSets = []models.WordSet{{ID: 3, Title: "Idioms"}}
	skyeng.Words[3] = []models.Word{
		{MeaningID: 100, CreatedAt: "2021-05-01T08:00:00+00:00"},
		{MeaningID: 101, CreatedAt: "2021-05-02T08:00:00+00:00"},
	}
	skyeng.Meanings = []models.Meaning{
		{ID: 100, Text: "break the ice", SoundURL: "https://tts.host/api?text=break+the+ice"},
		{ID: 101, Text: "hit the sack", Images: []models.Image{{URL: "//cdn.host/img/sack.png"}}},
	}
	anki := tu.NewFakeAnki(t)

	session, err := services.NewSession(
		models.Credentials{Username: skyeng.Username, Password: skyeng.Password},
		services.SessionOpts{Endpoints: services.EndpointsAt(skyeng.URL)},
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	db := setupTestDB(t)
	tokens := repositories.NewTokenRepository(db, shared.DriverSQLite)
	session.OnTokenChange(func(tok models.Token) {
		if err := tokens.Save(skyeng.Username, tok); err != nil {
			t.Errorf("failed to persist token: %v", err)
		}
	})

	engine := NewSyncEngine(
		services.NewSkyengService(session, services.SkyengOpts{Endpoints: services.EndpointsAt(skyeng.URL), PageSize: 1}),
		services.NewAnkiService(anki.URL, nil),
		repositories.NewExecutionRepository(db, shared.DriverSQLite),
		repositories.NewWordRepository(db, shared.DriverSQLite),
		nil, nil,
	)

	result, err := engine.Run(context.Background(), syncOpts, nil)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Added != 2 {
		t.Errorf("expected 2 notes, got %+v", result)
	}
	if anki.NoteCount() != 2 {
		t.Errorf("expected 2 notes in anki, got %d", anki.NoteCount())
	}

	stored, err := tokens.Get(skyeng.Username)
	if err != nil || stored.Value != "jwt-token-1" {
		t.Errorf("expected token persisted through the callback, got %+v (%v)", stored, err)
	}

	again, err := engine.Run(context.Background(), syncOpts, nil)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if again.New != 0 || anki.NoteCount() != 2 {
		t.Errorf("expected nothing new on the second pass, got %+v", again)
	}
	if skyeng.LoginCount() != 1 {
		t.Errorf("expected the token to be reused, got %d logins", skyeng.LoginCount())
	}
}
