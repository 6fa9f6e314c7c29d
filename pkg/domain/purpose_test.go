package domain

import "testing"

func TestParsePurposeKnownTags(t *testing.T) {
	for _, s := range []string{"repo_init", "otp_share", "multisig_setup"} {
		p, err := ParsePurpose(s)
		if err != nil {
			t.Fatalf("ParsePurpose(%q): %v", s, err)
		}
		if p.String() != s {
			t.Fatalf("round trip: got %q want %q", p.String(), s)
		}
	}
}

func TestParsePurposeRejectsUnknown(t *testing.T) {
	for _, s := range []string{"", "repo-init", "REPO_INIT", "otp", "multisig"} {
		if _, err := ParsePurpose(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
