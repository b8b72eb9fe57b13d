package domain

import (
	"strings"
	"testing"
)

// FuzzCanonicalize checks that canonicalization never panics and is stable
// under repeated application.
//
// Justification: every ingestion boundary (API payloads, config lists, CLI
// input) funnels through Canonicalize, so any instability would let the same
// nation appear under two identifiers.
func FuzzCanonicalize(f *testing.F) {
	f.Add("")
	f.Add("Testlandia")
	f.Add("The Grand Duchy of Somewhere")
	f.Add("  padded  ")
	f.Add("already_canonical")
	f.Add(string([]byte{0xff, 0x20, 0x41}))

	f.Fuzz(func(t *testing.T, input string) {
		once := Canonicalize(input)
		twice := Canonicalize(once.String())
		if once != twice {
			t.Fatalf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
		if strings.Contains(once.String(), " ") {
			t.Errorf("canonical form contains a space: %q", once)
		}
		if strings.ToLower(once.String()) != once.String() && isASCII(once.String()) {
			t.Errorf("canonical ASCII form is not lowercase: %q", once)
		}
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
