// Package models defines the domain entities of the Skyeng to Anki sync agent.
//
// The package contains two categories of types:
//
// 1. Remote entities decoded from the Skyeng APIs
//   - [WordSet] : a vocabulary topic owned by a student
//   - [Word] : a vocabulary entry with its meaning id and creation timestamp
//   - [WordOfSet] : a word joined with the word-set it was listed under
//   - [Meaning] : a dictionary entry with translation, definition, examples, images and sounds
//   - [PageMeta] : the pagination block of listing endpoints
//
// 2. Local entities
//   - [Token] : the bearer token and its expiry
//   - [Credentials] : the login pair
//   - [WordRecord] : an exported word as stored in the database
//   - [Execution] : a recorded sync pass carrying the watermark
//
// [Words] carries the incremental sync helpers: [Words.CreatedAfter] filters by a watermark and
// [Words.LastCreated] computes the next one.
package models
