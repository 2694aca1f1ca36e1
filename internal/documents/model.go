package documents

import "time"

// Document is a user file relocated to durable storage.
type Document struct {
	ID              string
	UserID          string
	SourceRef       string // transport media id or original URL
	FileName        string
	MimeType        string
	SizeBytes       int64
	StorageProvider string
	StorageKey      string
	PublicURL       string
	CreatedAt       time.Time
}
