package util

import "testing"

func TestFoldText(t *testing.T) {
	tests := map[string]string{
		"Líder  Técnico!":   "lider tecnico",
		"  ÑANDÚ / jefe  ":  "nandu jefe",
		"S/ 10.00":          "s 10 00",
		"":                  "",
	}
	for in, want := range tests {
		if got := FoldText(in); got != want {
			t.Fatalf("FoldText(%q) = %q, want %q", in, got, want)
		}
	}
}
