// Package tasks orchestrates the Skyeng to Anki sync with real-time progress reporting.
//
// # Sync Pass
//
// [SyncEngine.Run] performs one incremental pass:
//
//  1. Load the watermark, the greatest creation time exported so far
//  2. List every word of every word-set of the student
//  3. Keep the words created after the watermark ([models.Words.CreatedAfter])
//  4. Resolve their meanings in a single dictionary request
//  5. Build and add one note per word, skipping words already exported and duplicates
//  6. Optionally synchronize the collection with AnkiWeb
//  7. Record the new watermark ([models.Words.LastCreated])
//
// Nothing is recorded when a step fails, so the next pass starts from the same watermark.
// A pass without new words records nothing either.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Metrics
//
// Pass statistics are written to a [metrics.Metrics] the caller may push afterwards.
package tasks
