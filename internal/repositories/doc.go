// Package repositories implements SQL persistence for the sync agent.
//
// Key Implementations:
//   - [TokenRepository] : the bearer token per login, upserted after every login
//   - [ExecutionRepository] : completed sync passes and the watermark they reached
//   - [WordRepository] : every word handed to Anki with its meaning payload
//
// Repositories accept a driver name and rebind "?" placeholders with [shared.Rebind], so the
// same queries run on SQLite and PostgreSQL. Upserts use ON CONFLICT, which both support.
package repositories
