package util

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var extMime = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain; charset=utf-8",
	".rtf":  "application/rtf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".html": "text/html; charset=utf-8",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
}

// DetectMime prefers the file extension and falls back to content sniffing.
func DetectMime(fileName string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if mt, ok := extMime[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return http.DetectContentType(head)
}

// ExtensionFor returns a file extension (with dot) for a mime type, or "".
func ExtensionFor(mimeType string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	for ext, mt := range extMime {
		if strings.SplitN(mt, ";", 2)[0] == base && ext != ".jpeg" {
			return ext
		}
	}
	return ""
}
