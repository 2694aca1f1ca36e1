package documents

import "time"

// DocumentResponse is a stored CV as the admin API shows it.
type DocumentResponse struct {
	DocumentID string    `json:"documentId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	Provider   string    `json:"provider"`
	Source     string    `json:"source,omitempty"`
	URL        string    `json:"url"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func ToResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
		Provider:   doc.StorageProvider,
		Source:     doc.SourceRef,
		URL:        doc.PublicURL,
		ReceivedAt: doc.CreatedAt,
	}
}

// ToResponses converts a page of documents; nil becomes an empty list.
func ToResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, ToResponse(d))
	}
	return out
}
