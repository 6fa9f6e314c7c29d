package engine

import (
	"errors"
	"testing"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/pkg/ledger"
)

func balance(idx int, owner, asset, amount string) ledger.TokenBalance {
	return ledger.TokenBalance{AccountIndex: idx, Owner: owner, Asset: asset, Amount: amount, Decimals: 6}
}

func TestNetDeliveredSimpleDeposit(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances:  []ledger.TokenBalance{balance(2, "R", "X", "100")},
		PostBalances: []ledger.TokenBalance{balance(2, "R", "X", "110")},
	}
	net, err := netDelivered(tx, "X", "R")
	if err != nil {
		t.Fatalf("netDelivered: %v", err)
	}
	if net.String() != "10" {
		t.Fatalf("net = %s, want 10", net.String())
	}
}

func TestNetDeliveredFreshAccountHasZeroPre(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PostBalances: []ledger.TokenBalance{balance(3, "R", "X", "25")},
	}
	net, err := netDelivered(tx, "X", "R")
	if err != nil {
		t.Fatalf("netDelivered: %v", err)
	}
	if net.String() != "25" {
		t.Fatalf("net = %s, want 25", net.String())
	}
}

func TestNetDeliveredMatchesByAccountIndex(t *testing.T) {
	// Same owner and asset across two accounts; only index 2 received.
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances: []ledger.TokenBalance{
			balance(1, "R", "X", "500"),
			balance(2, "R", "X", "100"),
		},
		PostBalances: []ledger.TokenBalance{
			balance(1, "R", "X", "500"),
			balance(2, "R", "X", "140"),
		},
	}
	net, err := netDelivered(tx, "X", "R")
	if err != nil {
		t.Fatalf("netDelivered: %v", err)
	}
	if net.String() != "40" {
		t.Fatalf("net = %s, want 40", net.String())
	}
}

func TestNetDeliveredDestinationNotInvolved(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances:  []ledger.TokenBalance{balance(0, "Other", "X", "5")},
		PostBalances: []ledger.TokenBalance{balance(0, "Other", "X", "15")},
	}
	if _, err := netDelivered(tx, "X", "R"); !errors.Is(err, domain.ErrDestinationNotInvolved) {
		t.Fatalf("expected ErrDestinationNotInvolved, got %v", err)
	}
}

func TestNetDeliveredWrongAssetNotInvolved(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PostBalances: []ledger.TokenBalance{balance(0, "R", "Y", "15")},
	}
	if _, err := netDelivered(tx, "X", "R"); !errors.Is(err, domain.ErrDestinationNotInvolved) {
		t.Fatalf("expected ErrDestinationNotInvolved, got %v", err)
	}
}

func TestNetDeliveredNoDeposit(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances:  []ledger.TokenBalance{balance(2, "R", "X", "100")},
		PostBalances: []ledger.TokenBalance{balance(2, "R", "X", "100")},
	}
	if _, err := netDelivered(tx, "X", "R"); !errors.Is(err, domain.ErrNoDepositDetected) {
		t.Fatalf("expected ErrNoDepositDetected for zero delta, got %v", err)
	}

	// Outflow is not a deposit either.
	tx.PostBalances = []ledger.TokenBalance{balance(2, "R", "X", "90")}
	if _, err := netDelivered(tx, "X", "R"); !errors.Is(err, domain.ErrNoDepositDetected) {
		t.Fatalf("expected ErrNoDepositDetected for outflow, got %v", err)
	}
}

func TestNetDeliveredMalformedAmountIsAnError(t *testing.T) {
	// A node returning garbage must surface as an error, never as
	// "no deposit" or an understated net.
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances:  []ledger.TokenBalance{balance(2, "R", "X", "100")},
		PostBalances: []ledger.TokenBalance{balance(2, "R", "X", "not-a-number")},
	}
	if _, err := netDelivered(tx, "X", "R"); err == nil || errors.Is(err, domain.ErrNoDepositDetected) {
		t.Fatalf("expected a parse error, got %v", err)
	}

	tx.PreBalances[0].Amount = "12,5"
	tx.PostBalances[0].Amount = "200"
	if _, err := netDelivered(tx, "X", "R"); err == nil {
		t.Fatal("expected a parse error for malformed pre-balance")
	}
}

func TestNetDeliveredLargeAmounts(t *testing.T) {
	tx := &ledger.TransactionResult{
		Found: true, Succeeded: true,
		PreBalances:  []ledger.TokenBalance{balance(2, "R", "X", "340282366920938463463374607431768211455")},
		PostBalances: []ledger.TokenBalance{balance(2, "R", "X", "340282366920938463463374607431768211465")},
	}
	net, err := netDelivered(tx, "X", "R")
	if err != nil {
		t.Fatalf("netDelivered: %v", err)
	}
	if net.String() != "10" {
		t.Fatalf("net = %s, want 10", net.String())
	}
}
