package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/pkg/ledger"
)

// netDelivered computes how much of asset the transaction delivered to
// recipient, as post-balance minus the matching pre-balance. Balances are
// matched by (owner, asset, account index); a post entry with no pre
// counterpart means the account was created in this transaction and its
// pre-balance is zero. The engine never trusts a single absolute balance,
// so a destination account that pre-existed with funds still yields the
// correct delta on retries and bursts.
func netDelivered(tx *ledger.TransactionResult, asset, recipient string) (decimal.Decimal, error) {
	pre := make(map[[2]string]map[int]decimal.Decimal)
	for _, b := range tx.PreBalances {
		if b.Owner != recipient || b.Asset != asset {
			continue
		}
		key := [2]string{b.Owner, b.Asset}
		if pre[key] == nil {
			pre[key] = make(map[int]decimal.Decimal)
		}
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			// A broken node response must not read as "no deposit".
			return decimal.Zero, fmt.Errorf("parse pre-balance amount %q: %w", b.Amount, err)
		}
		pre[key][b.AccountIndex] = amount
	}

	involved := false
	total := decimal.Zero
	for _, b := range tx.PostBalances {
		if b.Owner != recipient || b.Asset != asset {
			continue
		}
		involved = true
		post, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse post-balance amount %q: %w", b.Amount, err)
		}
		before := decimal.Zero
		if m := pre[[2]string{b.Owner, b.Asset}]; m != nil {
			if v, ok := m[b.AccountIndex]; ok {
				before = v
			}
		}
		total = total.Add(post.Sub(before))
	}

	if !involved {
		return decimal.Zero, domain.ErrDestinationNotInvolved
	}
	if total.Sign() <= 0 {
		return decimal.Zero, domain.ErrNoDepositDetected
	}
	return total, nil
}
