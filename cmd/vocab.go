package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/skyanki/internal/formatter"
	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/shared"
)

// WordSets lists the word-sets of the configured student.
func (r *Runner) WordSets(ctx context.Context, cmd *cli.Command) error {
	studentID, err := r.studentID()
	if err != nil {
		return err
	}
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	sets, err := r.skyeng.WordSets(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to list word-sets: %w", err)
	}
	r.logger.Info("word-sets listed", "count", len(sets))

	if cmd.Bool("json") {
		return r.writeJSON(sets, true)
	}

	r.writePlainHeader(fmt.Sprintf("Word-sets (%d)", len(sets)))
	for _, set := range sets {
		if set.Subtitle != "" {
			r.writePlain("%8d  %s (%s)\n", set.ID, set.Title, set.Subtitle)
		} else {
			r.writePlain("%8d  %s\n", set.ID, set.Title)
		}
	}
	return nil
}

// Words lists the student's words, optionally only those newer than the watermark, in
// the requested format.
func (r *Runner) Words(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if _, err := formatter.Export(format, nil, nil); err != nil {
		return err
	}

	studentID, err := r.studentID()
	if err != nil {
		return err
	}
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	words, err := r.skyeng.Words(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to list words: %w", err)
	}

	if cmd.Bool("new") {
		watermark, err := r.executions.LastUpdate()
		if err != nil {
			return err
		}
		words = words.CreatedAfter(watermark)
		r.logger.Debug("filtered by watermark", "watermark", watermark, "remaining", len(words))
	}

	var meanings []models.Meaning
	if (format == "markdown" || format == "md") && len(words) > 0 {
		if meanings, err = r.skyeng.Meanings(ctx, words.MeaningIDs()); err != nil {
			return fmt.Errorf("failed to fetch meanings: %w", err)
		}
	}

	if path := cmd.String("output"); path != "" || cmd.Bool("save") {
		written, err := formatter.WriteExport(format, words, meanings, path)
		if err != nil {
			return err
		}
		r.logger.Info("words exported", "path", written, "count", len(words))
		return r.writePlain("✓ %d words written to %s\n", len(words), written)
	}

	data, err := formatter.Export(format, words, meanings)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Meanings fetches and prints the meanings named by --ids.
func (r *Runner) Meanings(ctx context.Context, cmd *cli.Command) error {
	ids, err := parseIDs(cmd.String("ids"))
	if err != nil {
		return err
	}
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	meanings, err := r.skyeng.Meanings(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to fetch meanings: %w", err)
	}
	return r.writeJSON(meanings, cmd.Bool("pretty"))
}

func (r *Runner) studentID() (int64, error) {
	id := r.conf().Skyeng.StudentID
	if id <= 0 {
		return 0, fmt.Errorf("%w: set skyeng.student_id or SKYENG_STUDENT", shared.ErrInvalidConfig)
	}
	return id, nil
}

// parseIDs parses a comma-separated list of meaning ids, ignoring blanks.
func parseIDs(s string) ([]uint64, error) {
	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: meaning id %q", shared.ErrInvalidArgument, part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: --ids", shared.ErrMissingArgument)
	}
	return ids, nil
}
