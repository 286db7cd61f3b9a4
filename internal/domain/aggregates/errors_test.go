package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewError(CodeVaultPaused, "vault.deposit", "vault is paused", nil), "vault.deposit: vault is paused (vault_paused)"},
		{NewError(CodeNoStrategy, "vault.withdraw", "", nil), "vault.withdraw (no_strategy)"},
		{NewError(CodeInternal, "", "boom", nil), "boom (internal)"},
		{NewError(CodeConflict, "", "", nil), "conflict"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error(): want=%q got=%q", tc.want, got)
		}
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	root := errors.New("venue offline")
	err := fmt.Errorf("harvest: %w", Wrap(CodeExternalCallFailed, "exchange.swap", root))

	if !IsCode(err, CodeExternalCallFailed) {
		t.Fatalf("expected external_call_failed, got=%v", CodeOf(err))
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected cause to be reachable")
	}
	if !errors.Is(err, NewError(CodeExternalCallFailed, "", "", nil)) {
		t.Fatalf("expected sentinel match by code")
	}
	if errors.Is(err, NewError(CodeSlippageExceeded, "", "", nil)) {
		t.Fatalf("unexpected match for different code")
	}
	if Wrap(CodeInternal, "noop", nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
	if CodeOf(root) != "" {
		t.Fatalf("plain errors carry no code")
	}
}
