package documents

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid document input")
	ErrResolveFailed      = errors.New("document could not be resolved")
	ErrFetchFailed        = errors.New("document download failed")
	ErrRelocateFailed     = errors.New("document relocation failed")
	ErrUnsupportedType    = errors.New("unsupported document type")
	ErrDocumentTooLarge   = errors.New("document too large")
	ErrNotConfigured      = errors.New("document pipeline not configured")
)
