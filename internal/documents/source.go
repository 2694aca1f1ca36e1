package documents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"cvbot-backend/internal/shared/util"
)

// MaxDocumentBytes is the largest file the pipeline accepts.
const MaxDocumentBytes = 20 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".txt":  true,
	".rtf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Ref points at a user's document either by direct URL or by a transport
// media id.
type Ref struct {
	URL      string
	MediaID  string
	FileName string
	MimeType string
}

// Key identifies the document for duplicate detection.
func (r Ref) Key() string {
	if r.MediaID != "" {
		return r.MediaID
	}
	return r.URL
}

// Source is a resolved, downloadable document.
type Source struct {
	URL      string
	FileName string
	MimeType string
}

// MediaResolver turns a transport media id into a download URL and mime type.
type MediaResolver interface {
	MediaURL(ctx context.Context, mediaID string) (string, string, error)
}

// Downloader fetches a document body.
type Downloader interface {
	Download(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error)
}

// HTTPDownloader downloads with a plain or pre-authorized HTTP client.
type HTTPDownloader struct {
	Client *http.Client
}

func (d HTTPDownloader) Download(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error) {
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = MaxDocumentBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, "", ErrDocumentTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > maxBytes {
		return nil, "", ErrDocumentTooLarge
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func resolve(ctx context.Context, resolver MediaResolver, ref Ref) (Source, error) {
	src := Source{
		URL:      strings.TrimSpace(ref.URL),
		FileName: strings.TrimSpace(ref.FileName),
		MimeType: strings.TrimSpace(ref.MimeType),
	}
	if src.URL == "" && ref.MediaID != "" {
		if resolver == nil {
			return Source{}, fmt.Errorf("%w: no media resolver", ErrResolveFailed)
		}
		mediaURL, mimeType, err := resolver.MediaURL(ctx, ref.MediaID)
		if err != nil {
			return Source{}, fmt.Errorf("%w: %v", ErrResolveFailed, err)
		}
		src.URL = mediaURL
		if src.MimeType == "" {
			src.MimeType = mimeType
		}
	}
	if src.URL == "" {
		return Source{}, fmt.Errorf("%w: no url or media id", ErrInvalidInput)
	}
	u, err := url.Parse(src.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Source{}, fmt.Errorf("%w: %q is not an http url", ErrInvalidInput, src.URL)
	}
	if src.FileName == "" {
		src.FileName = fileNameFor(u, src.MimeType)
	}
	return src, nil
}

func fileNameFor(u *url.URL, mimeType string) string {
	base := path.Base(u.Path)
	if base != "" && base != "/" && base != "." && path.Ext(base) != "" {
		return base
	}
	ext := util.ExtensionFor(mimeType)
	if ext == "" {
		ext = ".pdf"
	}
	return "cv" + ext
}

// checkExtension enforces the analyzer's accepted formats, fixing up names
// that lack an extension from the mime type.
func checkExtension(fileName, mimeType string) (string, error) {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = util.ExtensionFor(mimeType)
		fileName += ext
	}
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return fileName, nil
}
