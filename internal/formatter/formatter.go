// package formatter builds Anki notes from meanings and exports word listings to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/shared"
)

// ExportToCSV converts words to CSV format with columns: WordSetID, WordSet, Subtitle, MeaningID, CreatedAt
func ExportToCSV(words models.Words) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"WordSetID", "WordSet", "Subtitle", "MeaningID", "CreatedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, w := range words {
		record := []string{
			strconv.FormatUint(uint64(w.WordSet.ID), 10),
			w.WordSet.Title,
			w.WordSet.Subtitle,
			strconv.FormatUint(w.Word.MeaningID, 10),
			w.Word.CreatedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts words to Markdown with one section per word-set, in listing order.
//
// When meanings are given, each entry shows the word and its translation instead of the bare id.
func ExportToMarkdown(words models.Words, meanings []models.Meaning) ([]byte, error) {
	var buf bytes.Buffer

	byID := make(map[uint64]models.Meaning, len(meanings))
	for _, m := range meanings {
		byID[m.ID] = m
	}

	buf.WriteString("# Vocabulary\n\n")
	buf.WriteString(fmt.Sprintf("**Words**: %d\n", len(words)))

	var current uint32
	started := false
	for _, w := range words {
		if !started || w.WordSet.ID != current {
			current, started = w.WordSet.ID, true
			buf.WriteString(fmt.Sprintf("\n## %s\n\n", w.WordSet.Title))
			if w.WordSet.Subtitle != "" {
				buf.WriteString(fmt.Sprintf("_%s_\n\n", w.WordSet.Subtitle))
			}
		}

		if m, ok := byID[w.Word.MeaningID]; ok {
			buf.WriteString(fmt.Sprintf("- **%s** %s (%s)\n", m.Text, m.Translation.Text, w.Word.CreatedAt))
		} else {
			buf.WriteString(fmt.Sprintf("- %d (%s)\n", w.Word.MeaningID, w.Word.CreatedAt))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts words to plain text format
func ExportToText(words models.Words) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Words: %d\n\n", len(words)))
	for i, w := range words {
		buf.WriteString(fmt.Sprintf("%d. [%s] %d %s\n", i+1, w.WordSet.Title, w.Word.MeaningID, w.Word.CreatedAt))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts words to indented JSON.
func ExportToJSON(words models.Words) ([]byte, error) {
	return shared.MarshalJSON(words, true)
}

// Export renders words in the named format: json, csv, markdown or text.
func Export(format string, words models.Words, meanings []models.Meaning) ([]byte, error) {
	switch format {
	case "json", "":
		return ExportToJSON(words)
	case "csv":
		return ExportToCSV(words)
	case "markdown", "md":
		return ExportToMarkdown(words, meanings)
	case "text", "txt":
		return ExportToText(words)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders words in the named format and writes them to path.
//
// Defaults to skyeng_words.{ext} in the working directory.
func WriteExport(format string, words models.Words, meanings []models.Meaning, path string) (string, error) {
	data, err := Export(format, words, meanings)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "skyeng_words." + Extension(format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

// Extension returns the file extension for a format name.
func Extension(format string) string {
	switch format {
	case "csv":
		return "csv"
	case "markdown", "md":
		return "md"
	case "text", "txt":
		return "txt"
	default:
		return "json"
	}
}
