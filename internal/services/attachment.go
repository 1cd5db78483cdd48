package services

import "strings"

// URLToFilename derives a stable attachment filename from a media URL.
//
// Generated audio URLs carry the spoken word as their last query value
// (".../voice?gender=female&text=deter"), so a URL with a "?" is named after the text
// following its last "=" plus ".mp3". Any other URL keeps the last path segment verbatim.
func URLToFilename(url string) string {
	if strings.Contains(url, "?") {
		return url[strings.LastIndex(url, "=")+1:] + ".mp3"
	}
	return url[strings.LastIndex(url, "/")+1:]
}

// NewMedia builds an AnkiConnect attachment for url named by [URLToFilename].
func NewMedia(url string, fields ...string) Media {
	return Media{URL: url, Filename: URLToFilename(url), Fields: fields}
}
