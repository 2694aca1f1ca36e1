package payments

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchPackage(t *testing.T) {
	cat := DefaultCatalog()
	tests := []struct {
		in     string
		wantID string
		ok     bool
	}{
		{in: "package_3", wantID: "package_3", ok: true},
		{in: "PACKAGE_6", wantID: "package_6", ok: true},
		{in: "quiero el de 3 revisiones", wantID: "package_3", ok: true},
		{in: "el de S/ 10", wantID: "package_6", ok: true},
		{in: "1", wantID: "package_1", ok: true},
		{in: "el más barato", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			got, ok := cat.MatchPackage(tt.in)
			if ok != tt.ok {
				t.Fatalf("MatchPackage(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got.ID != tt.wantID {
				t.Fatalf("MatchPackage(%q) = %s, want %s", tt.in, got.ID, tt.wantID)
			}
		})
	}
}

func TestMatchAdvisory(t *testing.T) {
	cat := DefaultCatalog()
	if a, ok := cat.MatchAdvisory("advisory_interview"); !ok || a.Price != 40 {
		t.Fatalf("expected interview advisory, got %+v %v", a, ok)
	}
	if a, ok := cat.MatchAdvisory("2"); !ok || a.ID != "advisory_interview" {
		t.Fatalf("expected positional match, got %+v %v", a, ok)
	}
	if _, ok := cat.MatchAdvisory("nada"); ok {
		t.Fatalf("expected no match")
	}
}

func TestLoadCatalogMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `currency: "USD"
payee_name: "Ana Torres"
promo_codes:
  - code: BIENVENIDA
    description: Acceso ilimitado de lanzamiento
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if cat.Currency != "USD" || cat.PayeeName != "Ana Torres" {
		t.Fatalf("unexpected header %+v", cat)
	}
	if len(cat.Packages) != 3 {
		t.Fatalf("expected default packages, got %d", len(cat.Packages))
	}
	if _, ok := cat.Promo("bienvenida"); !ok {
		t.Fatalf("expected case-insensitive promo lookup")
	}
	if cat.FormatPrice(7) != "USD 7" {
		t.Fatalf("unexpected price format %q", cat.FormatPrice(7))
	}
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `packages:
  - id: package_1
    reviews: 1
    price: 4
  - id: package_1
    reviews: 0
    price: 9
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
	cat, err := LoadCatalog("")
	if err != nil || len(cat.Packages) != 3 {
		t.Fatalf("expected defaults for empty path, got %v", err)
	}
}
