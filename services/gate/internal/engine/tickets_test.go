package engine

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestNewTicketTokenShape(t *testing.T) {
	tok := newTicketToken()
	raw, err := hex.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not hex: %v", err)
	}
	if len(raw) != 24 {
		t.Fatalf("token carries %d bytes, want 24", len(raw))
	}
}

func TestNewTicketTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := newTicketToken()
		if seen[tok] {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = true
	}
}

func TestResolveTTL(t *testing.T) {
	if got := resolveTTL(0); got != 1440*time.Minute {
		t.Fatalf("default ttl = %v, want 24h", got)
	}
	if got := resolveTTL(-5); got != 1440*time.Minute {
		t.Fatalf("negative ttl = %v, want 24h", got)
	}
	if got := resolveTTL(1); got != time.Minute {
		t.Fatalf("ttl = %v, want 1m", got)
	}
}

func TestRandomBytesLength(t *testing.T) {
	if got := len(randomBytes(32)); got != 32 {
		t.Fatalf("got %d bytes", got)
	}
}
