package tasks

import (
	"fmt"

	"github.com/desertthunder/skyanki/internal/models"
)

// ProgressUpdate represents a progress event during a sync pass.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadWatermark Phase = iota
	FetchWords
	FilterWords
	FetchMeanings
	AddNotes
	SyncAnki
	SaveWatermark
)

func (p Phase) String() string {
	switch p {
	case LoadWatermark:
		return "load_watermark"
	case FetchWords:
		return "fetch_words"
	case FilterWords:
		return "filter_words"
	case FetchMeanings:
		return "fetch_meanings"
	case AddNotes:
		return "add_notes"
	case SyncAnki:
		return "sync_anki"
	case SaveWatermark:
		return "save_watermark"
	default:
		return ""
	}
}

func loadWatermarkUpdate(watermark string) ProgressUpdate {
	msg := "No previous sync, exporting every word"
	if watermark != "" {
		msg = fmt.Sprintf("Resuming after %s", watermark)
	}
	return ProgressUpdate{Phase: LoadWatermark, Step: 1, Total: 1, Message: msg, Data: watermark}
}

func fetchWordsUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchWords, Step: 1, Total: 1, Message: "Fetching words from Skyeng..."}
}

func filterWordsUpdate(listed, fresh int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterWords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d new of %d words", fresh, listed),
	}
}

func fetchMeaningsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchMeanings,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching %d meanings...", count),
	}
}

func addNoteUpdate(step, total int, m models.Meaning) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddNotes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, m.Text, m.Translation.Text),
		Data:    m,
	}
}

func skipNoteUpdate(step, total int, id uint64, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddNotes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] skipped %d: %s", step, total, id, reason),
	}
}

func syncAnkiUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: SyncAnki, Step: 1, Total: 1, Message: "Synchronizing Anki collection..."}
}

func saveWatermarkUpdate(exec *models.Execution) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveWatermark,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Watermark advanced to %s", exec.LastUpdate),
		Data:    exec,
	}
}
