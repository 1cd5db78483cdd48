// Package services implements the HTTP clients of the sync agent.
//
// # Session
//
// [Session] holds the Skyeng bearer token. When the token is unset or expired it logs in
// with the three step web flow:
//  1. GET the login page and scrape the csrfToken hidden input
//  2. POST username, password and csrfToken as a form
//  3. POST to the JWT endpoint and read the token from the first cookie set
//
// The session's cookie jar carries the state between the steps. The token expiry comes from
// the cookie's Expires or Max-Age attribute, else from the exp claim of the JWT.
// [Session.OnTokenChange] lets the caller persist every new token.
//
// # Vocabulary
//
// [SkyengService] implements [Vocabulary]. Listing endpoints are walked page by page with
// [Paginate]; every request is paced by an optional rate limiter and authenticated through
// the session.
//
// # Flashcards
//
// [AnkiService] implements [Flashcards] against the AnkiConnect add-on (API version 6).
// Attachments are named by [URLToFilename] so repeated exports reuse the same media file.
//
// # Raw Requests
//
// [RawClient] issues arbitrary GETs for inspection; pair it with an [oauth2.Transport]
// fed by [Session.TokenSource].
//
// # Error Handling
//
// Services classify failures with the sentinels of the shared package:
//   - [shared.ErrTransport] : the request never produced a response
//   - [shared.ErrUser] : 4xx responses, including a rejected login
//   - [shared.ErrServer] : 5xx responses and a JWT response without a token cookie
//   - [shared.ErrParsing] : no CSRF token on the login page, or no token expiry
//   - [shared.ErrDeserialization] : a body that does not decode, see [DeserializationError]
//   - [shared.ErrDuplicateNote] : AnkiConnect refused a duplicate note
package services
