package conversation

import (
	"context"
	"errors"
	"fmt"

	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/transport"
)

// MediaFetcher downloads attachments referenced by chat events.
type MediaFetcher struct {
	Resolver   transport.MediaResolver
	Downloader documents.Downloader
	MaxBytes   int64
}

// Fetch returns the attachment bytes and the best known mime type.
func (f MediaFetcher) Fetch(ctx context.Context, media *transport.Media) ([]byte, string, error) {
	if media == nil {
		return nil, "", errors.New("event has no media")
	}
	if f.Downloader == nil {
		return nil, "", errors.New("media downloader not configured")
	}
	url, mimeType := media.URL, media.MimeType
	if url == "" {
		if f.Resolver == nil || media.ID == "" {
			return nil, "", errors.New("media cannot be resolved")
		}
		resolved, resolvedMime, err := f.Resolver.MediaURL(ctx, media.ID)
		if err != nil {
			return nil, "", fmt.Errorf("resolve media: %w", err)
		}
		url = resolved
		if mimeType == "" {
			mimeType = resolvedMime
		}
	}
	max := f.MaxBytes
	if max <= 0 {
		max = documents.MaxDocumentBytes
	}
	data, contentType, err := f.Downloader.Download(ctx, url, max)
	if err != nil {
		return nil, "", err
	}
	if mimeType == "" {
		mimeType = contentType
	}
	return data, mimeType, nil
}

// documentRef builds a pipeline reference from a document, image or link event.
func documentRef(ev transport.Event) (documents.Ref, bool) {
	switch {
	case ev.Media != nil && (ev.Kind == transport.KindDocument || ev.Kind == transport.KindImage):
		return documents.Ref{URL: ev.Media.URL, MediaID: ev.Media.ID, FileName: ev.Media.FileName, MimeType: ev.Media.MimeType}, true
	case ev.Kind == transport.KindText && looksLikeURL(ev.Text):
		return documents.Ref{URL: ev.Text}, true
	}
	return documents.Ref{}, false
}
