package util

import (
	"errors"
	"path"
	"strings"
)

const maxStemLen = 80

var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName turns a chat attachment name into a storage-safe one:
// accents folded, separators and punctuation collapsed to dashes, extension
// lowercased. "../" anywhere is rejected outright.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.TrimSpace(name)
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)

	ext := path.Ext(s)
	stem := strings.TrimSuffix(s, ext)
	ext = strings.ReplaceAll(FoldText(ext), " ", "")

	stem = strings.ReplaceAll(FoldText(stem), " ", "-")
	if len(stem) > maxStemLen {
		stem = strings.TrimRight(stem[:maxStemLen], "-")
	}
	if stem == "" {
		return "", ErrInvalidFileName
	}
	if ext == "" {
		return stem, nil
	}
	return stem + "." + ext, nil
}
