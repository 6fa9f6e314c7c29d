package engine

import (
	"errors"
	"testing"

	"github.com/888tyui/pmg/pkg/domain"
)

func TestEffectiveThresholdDefaults(t *testing.T) {
	// ceil(n/2) for signer sets of size 1..5.
	want := map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3}
	for n, expected := range want {
		signers := make([]string, n)
		got, err := effectiveThreshold(signers, nil)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != expected {
			t.Fatalf("n=%d: threshold = %d, want %d", n, got, expected)
		}
	}
}

func TestEffectiveThresholdHonorsValidRequest(t *testing.T) {
	signers := []string{"a", "b", "c"}
	for _, req := range []int{1, 2, 3} {
		req := req
		got, err := effectiveThreshold(signers, &req)
		if err != nil {
			t.Fatalf("requested %d: %v", req, err)
		}
		if got != req {
			t.Fatalf("requested %d: got %d", req, got)
		}
	}
}

func TestEffectiveThresholdClampsOutOfRange(t *testing.T) {
	signers := []string{"a", "b", "c"}
	for _, req := range []int{0, -1, 4, 100} {
		req := req
		got, err := effectiveThreshold(signers, &req)
		if err != nil {
			t.Fatalf("requested %d: %v", req, err)
		}
		if got != 2 {
			t.Fatalf("requested %d: got %d, want default 2", req, got)
		}
	}
}

func TestEffectiveThresholdEmptySigners(t *testing.T) {
	got, err := effectiveThreshold(nil, nil)
	if err != nil {
		t.Fatalf("no signers, no request: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 threshold without signers, got %d", got)
	}

	req := 2
	if _, err := effectiveThreshold(nil, &req); !errors.Is(err, domain.ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}
