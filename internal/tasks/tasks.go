package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/skyanki/internal/formatter"
	"github.com/desertthunder/skyanki/internal/metrics"
	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/services"
	"github.com/desertthunder/skyanki/internal/shared"
)

// WatermarkStore persists the watermark of completed passes.
type WatermarkStore interface {
	LastUpdate() (string, error)
	Record(lastUpdate string, words int) (*models.Execution, error)
}

// WordStore remembers which words were handed to Anki.
type WordStore interface {
	Save(rec models.WordRecord) (bool, error)
	MarkExported(studentID, wordSetID, wordID int64, at time.Time) error
	Exported(studentID, wordSetID, wordID int64) (bool, error)
}

// SyncOpts configures one pass.
type SyncOpts struct {
	StudentID int64
	Note      formatter.NoteOpts
	AnkiSync  bool // push the collection to AnkiWeb after adding notes
	DryRun    bool // build notes without touching Anki or the stores
}

// SyncResult describes a finished pass.
type SyncResult struct {
	Watermark     string            // watermark the pass started from
	NextWatermark string            // greatest creation time among the new words
	Listed        int               // words listed across all word-sets
	New           int               // words created after Watermark
	Added         int               // notes added to Anki, or built during a dry run
	Skipped       int               // duplicates and words already exported
	Missing       int               // words whose meaning the dictionary did not return
	Notes         []services.Note   // notes built during a dry run
	Execution     *models.Execution // recorded pass, nil when nothing was new or on a dry run
}

// SyncEngine runs incremental passes: list every word, keep those created after the stored
// watermark, resolve their meanings, add one note per word and advance the watermark.
//
// The watermark is only recorded once every note was added (and the collection synced), so a
// failed pass is retried in full by the next one. Words already exported are skipped.
type SyncEngine struct {
	vocab      services.Vocabulary
	cards      services.Flashcards
	executions WatermarkStore
	words      WordStore
	metrics    *metrics.Metrics
	logger     *log.Logger
	now        func() time.Time
}

// NewSyncEngine creates a new SyncEngine. A nil metrics or logger is replaced by a private one.
func NewSyncEngine(vocab services.Vocabulary, cards services.Flashcards, executions WatermarkStore, words WordStore, m *metrics.Metrics, logger *log.Logger) *SyncEngine {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SyncEngine{
		vocab:      vocab,
		cards:      cards,
		executions: executions,
		words:      words,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one pass. The returned result is non-nil even on error and reports how far
// the pass got.
func (e *SyncEngine) Run(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.vocab == nil || e.executions == nil || e.words == nil {
		return nil, fmt.Errorf("%w: sync engine not initialized", shared.ErrServiceUnavailable)
	}
	if e.cards == nil && !opts.DryRun {
		return nil, fmt.Errorf("%w: anki client not initialized", shared.ErrServiceUnavailable)
	}

	start := e.now()
	e.metrics.Success.Set(0)
	defer func() { e.metrics.Duration.Set(e.now().Sub(start).Seconds()) }()

	result := &SyncResult{}
	if err := e.run(ctx, opts, progress, result); err != nil {
		return result, err
	}

	e.metrics.Success.Set(1)
	e.metrics.LastSuccess.Set(float64(e.now().Unix()))
	return result, nil
}

func (e *SyncEngine) run(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate, result *SyncResult) error {
	watermark, err := e.executions.LastUpdate()
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}
	result.Watermark = watermark
	e.sendProgress(progress, loadWatermarkUpdate(watermark))

	e.sendProgress(progress, fetchWordsUpdate())
	words, err := e.vocab.Words(ctx, opts.StudentID)
	if err != nil {
		return fmt.Errorf("failed to list words: %w", err)
	}

	fresh := words.CreatedAfter(watermark)
	result.Listed, result.New = len(words), len(fresh)
	e.metrics.WordsListed.Set(float64(result.Listed))
	e.metrics.WordsNew.Set(float64(result.New))
	e.sendProgress(progress, filterWordsUpdate(result.Listed, result.New))
	e.logger.Info("words listed", "listed", result.Listed, "new", result.New, "watermark", watermark)

	if len(fresh) == 0 {
		return nil
	}
	result.NextWatermark, _ = fresh.LastCreated()

	ids := fresh.MeaningIDs()
	e.sendProgress(progress, fetchMeaningsUpdate(len(ids)))
	meanings, err := e.vocab.Meanings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch meanings: %w", err)
	}

	byID := make(map[uint64]models.Meaning, len(meanings))
	for _, m := range meanings {
		byID[m.ID] = m
	}

	if !opts.DryRun && opts.Note.Deck != "" {
		if _, err := e.cards.CreateDeck(ctx, opts.Note.Deck); err != nil {
			return err
		}
	}

	for i, w := range fresh {
		step, total := i+1, len(fresh)

		m, ok := byID[w.Word.MeaningID]
		if !ok {
			result.Missing++
			e.logger.Warn("meaning not returned by the dictionary", "meaning_id", w.Word.MeaningID)
			e.sendProgress(progress, skipNoteUpdate(step, total, w.Word.MeaningID, "no meaning"))
			continue
		}

		added, err := e.export(ctx, opts, w, m, result)
		if err != nil {
			return err
		}
		if added {
			e.sendProgress(progress, addNoteUpdate(step, total, m))
		} else {
			e.sendProgress(progress, skipNoteUpdate(step, total, m.ID, "already in anki"))
		}
	}

	e.metrics.NotesAdded.Set(float64(result.Added))
	e.metrics.NotesSkipped.Set(float64(result.Skipped))

	if opts.DryRun {
		return nil
	}

	if opts.AnkiSync {
		e.sendProgress(progress, syncAnkiUpdate())
		if err := e.cards.Sync(ctx); err != nil {
			return fmt.Errorf("failed to sync anki: %w", err)
		}
	}

	exec, err := e.executions.Record(result.NextWatermark, result.Added)
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}
	result.Execution = exec
	e.sendProgress(progress, saveWatermarkUpdate(exec))
	e.logger.Info("sync complete", "added", result.Added, "skipped", result.Skipped, "watermark", exec.LastUpdate)
	return nil
}

// export adds the note for one word and records the word, reporting whether a note was added.
func (e *SyncEngine) export(ctx context.Context, opts SyncOpts, w models.WordOfSet, m models.Meaning, result *SyncResult) (bool, error) {
	studentID, setID, wordID := opts.StudentID, int64(w.WordSet.ID), int64(w.Word.MeaningID)

	exported, err := e.words.Exported(studentID, setID, wordID)
	if err != nil {
		return false, err
	}
	if exported {
		result.Skipped++
		return false, nil
	}

	note := formatter.BuildNote(w, m, opts.Note)
	if opts.DryRun {
		result.Notes = append(result.Notes, note)
		result.Added++
		return true, nil
	}

	added := true
	if _, err := e.cards.AddNote(ctx, note); err != nil {
		if !errors.Is(err, shared.ErrDuplicateNote) {
			return false, fmt.Errorf("failed to add note for %q: %w", m.Text, err)
		}
		e.logger.Debug("note already in anki", "text", m.Text)
		added = false
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to encode meaning %d: %w", m.ID, err)
	}

	at := e.now().UTC()
	inserted, err := e.words.Save(models.WordRecord{
		StudentID:  studentID,
		WordSetID:  setID,
		WordID:     wordID,
		Title:      w.WordSet.Title,
		Subtitle:   w.WordSet.Subtitle,
		Meaning:    string(payload),
		CreatedAt:  w.Word.CreatedAt,
		ExportedAt: &at,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		if err := e.words.MarkExported(studentID, setID, wordID, at); err != nil {
			return false, err
		}
	}

	if added {
		result.Added++
	} else {
		result.Skipped++
	}
	return added, nil
}
