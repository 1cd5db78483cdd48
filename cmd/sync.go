package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/skyanki/internal/formatter"
	"github.com/desertthunder/skyanki/internal/shared"
	"github.com/desertthunder/skyanki/internal/tasks"
)

// SyncRun runs one incremental pass and prints its summary.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	conf := r.conf()
	if err := conf.ValidateSync(); err != nil {
		return err
	}
	if err := r.connectSkyeng(); err != nil {
		return err
	}
	r.connectAnki()

	opts := tasks.SyncOpts{
		StudentID: conf.Skyeng.StudentID,
		Note: formatter.NoteOpts{
			Deck:  conf.Anki.Deck,
			Model: conf.Anki.Model,
			Tags:  conf.Anki.Tags,
		},
		AnkiSync: conf.Anki.Sync && !cmd.Bool("no-anki-sync"),
		DryRun:   cmd.Bool("dry-run"),
	}
	if deck := cmd.String("deck"); deck != "" {
		opts.Note.Deck = deck
	}

	if !opts.DryRun {
		version, err := r.anki.Version(ctx)
		if err != nil {
			return fmt.Errorf("%w: anki is not reachable at %s: %w", shared.ErrServiceUnavailable, conf.Anki.URL, err)
		}
		r.logger.Debug("anki connected", "version", version)
	}

	r.logger.Info("starting sync", "student", opts.StudentID, "deck", opts.Note.Deck, "dry_run", opts.DryRun)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Phase {
			case tasks.AddNotes:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			default:
				r.writePlain("• %s\n", update.Message)
			}
		}
	}()

	result, err := r.syncEngine().Run(ctx, opts, progressCh)
	close(progressCh)
	wg.Wait()

	r.pushMetrics(ctx)

	if err != nil {
		if result != nil && result.Added > 0 {
			r.writePlain("\n%d notes were added before the failure; the next run skips them\n", result.Added)
		}
		return err
	}

	r.writePlain("\n")
	if opts.DryRun {
		r.writePlainHeader("Dry Run")
		for _, note := range result.Notes {
			r.writePlain("  + %s\n", note.Fields[formatter.FieldFront])
		}
	} else {
		r.writePlainHeader("Sync Complete!")
	}

	r.writePlain("Listed: %s\n", formatCount(result.Listed, "word"))
	r.writePlain("New: %d\n", result.New)
	r.writePlain("Added: %d\n", result.Added)
	if result.Skipped > 0 {
		r.writePlain("Skipped: %d\n", result.Skipped)
	}
	if result.Missing > 0 {
		r.writePlain("Without meaning: %d\n", result.Missing)
	}
	if result.Execution != nil {
		r.writePlain("Watermark: %s\n", result.Execution.LastUpdate)
	}
	return nil
}

// SyncStatus shows the current watermark and the most recent passes.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}

	watermark, err := r.executions.LastUpdate()
	if err != nil {
		return err
	}

	latest, err := r.executions.Latest()
	if err != nil {
		return err
	}

	executions, err := r.executions.List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	r.writePlainHeader("Sync Status")
	if watermark == "" {
		r.writePlain("Watermark: none, the next pass exports every word\n")
	} else {
		r.writePlain("Watermark: %s\n", watermark)
	}

	if latest == nil {
		r.writePlain("Last pass: never\n")
	} else {
		r.writePlain("Last pass: %s (%s)\n", latest.CreatedAt.Local().Format(time.RFC1123), formatCount(latest.Words, "word"))
	}

	if id := r.conf().Skyeng.StudentID; id > 0 {
		count, err := r.words.Count(id)
		if err != nil {
			return err
		}
		r.writePlain("Exported words: %d\n", count)
	}

	if len(executions) == 0 {
		return nil
	}

	r.writePlain("\nRecent passes:\n")
	for _, e := range executions {
		r.writePlain("  %s  %3d words  up to %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Words, e.LastUpdate)
	}
	return nil
}

func formatCount(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
