package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

func TestVerifyHappyPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	msg := PushApprovalMessage("push_abc123")
	sig := ed25519.Sign(priv, msg)

	ok, err := Verify(msg, base58.Encode(sig), base58.Encode(pub))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}
}

func TestVerifyRejectsWrongSubject(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	sig := ed25519.Sign(priv, PushApprovalMessage("push_abc123"))

	ok, err := Verify(PushApprovalMessage("push_other"), base58.Encode(sig), base58.Encode(pub))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("signature must not transfer between subjects")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	otherPub, _, _ := ed25519.GenerateKey(rand.Reader)
	msg := PushApprovalMessage("push_abc123")
	sig := ed25519.Sign(priv, msg)

	ok, err := Verify(msg, base58.Encode(sig), base58.Encode(otherPub))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected rejection under a different key")
	}
}

func TestVerifyMalformedInputs(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	msg := PushApprovalMessage("push_abc123")
	sig := ed25519.Sign(priv, msg)

	if _, err := Verify(msg, base58.Encode(sig), "not-base58-0OIl"); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
	if _, err := Verify(msg, base58.Encode(sig), base58.Encode(pub[:16])); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner for short key, got %v", err)
	}
	if _, err := Verify(msg, "not-base58-0OIl", base58.Encode(pub)); !errors.Is(err, ErrInvalidSignatureEncoding) {
		t.Fatalf("expected ErrInvalidSignatureEncoding, got %v", err)
	}
	if _, err := Verify(msg, base58.Encode(sig[:10]), base58.Encode(pub)); !errors.Is(err, ErrInvalidSignatureEncoding) {
		t.Fatalf("expected ErrInvalidSignatureEncoding for short signature, got %v", err)
	}
}

func TestPushApprovalMessageShape(t *testing.T) {
	got := string(PushApprovalMessage("push_1"))
	want := "pmg-v1 Push Approval:push_1"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
