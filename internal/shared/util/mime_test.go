package util

import "testing"

func TestDetectMime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		head []byte
		want string
	}{
		{name: "pdf by extension", file: "cv.PDF", want: "application/pdf"},
		{name: "docx by extension", file: "cv.docx", want: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{name: "sniffed pdf", file: "cv", head: []byte("%PDF-1.7"), want: "application/pdf"},
		{name: "sniffed text", file: "notes", head: []byte("hola"), want: "text/plain; charset=utf-8"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectMime(tt.file, tt.head); got != tt.want {
				t.Fatalf("DetectMime(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestExtensionFor(t *testing.T) {
	if got := ExtensionFor("application/pdf"); got != ".pdf" {
		t.Fatalf("expected .pdf, got %q", got)
	}
	if got := ExtensionFor("image/jpeg"); got != ".jpg" {
		t.Fatalf("expected .jpg, got %q", got)
	}
	if got := ExtensionFor("application/x-unknown"); got != "" {
		t.Fatalf("expected empty extension, got %q", got)
	}
}
