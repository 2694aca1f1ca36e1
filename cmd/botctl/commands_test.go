package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/session"
)

type noAnalyses struct{}

func (noAnalyses) CountByUser(context.Context, string) (int, error) { return 1, nil }

func memoryServices() *services {
	return &services{
		Ledger:       ledger.NewService(noAnalyses{}, nil),
		Sessions:     session.NewService(session.NewMemoryRepo()),
		FreeAnalyses: 1,
	}
}

func run(t *testing.T, svc *services, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context) (*services, error) { return svc, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCreditsGrantAndShow(t *testing.T) {
	svc := memoryServices()

	out, err := run(t, svc, "credits", "grant", "whatsapp:5491100", "3", "--description", "soporte")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !strings.Contains(out, "remaining 3") {
		t.Fatalf("unexpected grant output %q", out)
	}

	out, err = run(t, svc, "credits", "show", "whatsapp:5491100")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "source=credit") || !strings.Contains(out, "credits=3") {
		t.Fatalf("unexpected show output %q", out)
	}

	out, err = run(t, svc, "ledger", "list", "whatsapp:5491100")
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if !strings.Contains(out, "grant") || !strings.Contains(out, "soporte") || !strings.Contains(out, "balance: 3") {
		t.Fatalf("unexpected ledger output %q", out)
	}
}

func TestCreditsGrantRejectsBadAmount(t *testing.T) {
	for _, amount := range []string{"0", "-1", "tres"} {
		if _, err := run(t, memoryServices(), "credits", "grant", "u1", amount); err == nil {
			t.Fatalf("expected error for amount %q", amount)
		}
	}
}

func TestSessionShowAndReset(t *testing.T) {
	svc := memoryServices()
	ctx := context.Background()
	if _, err := svc.Sessions.Update(ctx, "u1", session.Patch{
		State:         session.Ptr(session.StateMenuSelection),
		TermsAccepted: session.Ptr(true),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := run(t, svc, "session", "show", "u1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, `"state": "menu_selection"`) {
		t.Fatalf("unexpected session json %q", out)
	}

	out, err = run(t, svc, "session", "reset", "u1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "state=initial epoch=1") {
		t.Fatalf("unexpected reset output %q", out)
	}
}

func TestCatalogValidate(t *testing.T) {
	out, err := run(t, nil, "catalog", "validate")
	if err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	if !strings.Contains(out, "package") {
		t.Fatalf("expected packages listed, got %q", out)
	}

	bad := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(bad, []byte("packages:\n  - id: a\n    reviews: 1\n    price: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := run(t, nil, "catalog", "validate", bad); err == nil {
		t.Fatalf("expected validation error for zero price")
	}
}
