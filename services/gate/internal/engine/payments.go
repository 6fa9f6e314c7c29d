package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/pkg/ledger"
	"github.com/888tyui/pmg/services/gate/internal/store"
)

// ChainClient is the external ledger-network collaborator. The real
// implementation is ledger.Client; tests substitute a fake.
type ChainClient interface {
	GetTransaction(ctx context.Context, txHash string) (*ledger.TransactionResult, error)
}

// PaymentLedger records verified payments and exposes the consume-once
// primitive every gated resource creation runs through.
type PaymentLedger struct {
	Store *store.Store
	Chain ChainClient
}

func NewPaymentLedger(st *store.Store, chain ChainClient) *PaymentLedger {
	return &PaymentLedger{Store: st, Chain: chain}
}

type VerifyAndRecordInput struct {
	TxHash    string
	Payer     string
	Purpose   domain.Purpose
	MinAmount decimal.Decimal
	AssetID   string
	Recipient string
	RepoName  *string
	Metadata  map[string]any
}

// VerifyAndRecord confirms the on-chain transfer and inserts a confirmed
// payment record. Replays of an already-recorded hash return the existing
// record without touching the network. The remote verification runs
// outside any database transaction; only the validated result is applied
// in a short local insert, deduplicated by the tx_hash unique constraint.
func (l *PaymentLedger) VerifyAndRecord(ctx context.Context, in VerifyAndRecordInput) (*store.PaymentRecord, error) {
	existing, err := l.Store.GetPaymentByHash(ctx, in.TxHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return l.replay(ctx, existing, in.Purpose)
	}

	res, err := l.Chain.GetTransaction(ctx, in.TxHash)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, domain.ErrTransactionNotFound
	}
	if !res.Succeeded {
		return nil, domain.ErrTransactionFailed
	}
	net, err := netDelivered(res, in.AssetID, in.Recipient)
	if err != nil {
		return nil, err
	}
	if net.Cmp(in.MinAmount) < 0 {
		return nil, fmt.Errorf("%w: delivered %s, need %s", domain.ErrInsufficientAmount, net.String(), in.MinAmount.String())
	}

	rec := store.PaymentRecord{
		PaymentID: "pay_" + uuid.NewString(),
		TxHash:    in.TxHash,
		Payer:     in.Payer,
		Purpose:   in.Purpose,
		Amount:    net,
		Status:    store.PaymentConfirmed,
		RepoName:  in.RepoName,
		Metadata:  in.Metadata,
	}
	inserted, err := l.Store.InsertPayment(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost the insert race; the winner's row is authoritative.
		existing, err := l.Store.GetPaymentByHash(ctx, in.TxHash)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrPaymentNotFound
		}
		return l.replay(ctx, existing, in.Purpose)
	}
	return l.Store.GetPaymentByHash(ctx, in.TxHash)
}

func (l *PaymentLedger) replay(ctx context.Context, existing *store.PaymentRecord, purpose domain.Purpose) (*store.PaymentRecord, error) {
	if existing.Purpose != purpose {
		return nil, domain.ErrPaymentWrongPurpose
	}
	if existing.Status != store.PaymentConfirmed {
		if err := l.Store.ConfirmPayment(ctx, existing.TxHash); err != nil {
			return nil, err
		}
		existing.Status = store.PaymentConfirmed
	}
	return existing, nil
}

// ConsumeExactlyOnce locks the payment row, asserts it is confirmed,
// purpose-matched and unconsumed, runs the caller's unit of work inside the
// same transaction, then stamps consumed_at and commits. Any failure in the
// unit of work rolls everything back: a failed resource creation never
// burns the payment, and a consumed payment always has its resource.
func (l *PaymentLedger) ConsumeExactlyOnce(ctx context.Context, txHash string, purpose domain.Purpose, unitOfWork func(tx pgx.Tx) error) error {
	return l.Store.WithTx(ctx, func(tx pgx.Tx) error {
		rec, err := l.Store.LockPayment(ctx, tx, txHash)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.ErrPaymentNotFound
		}
		if rec.Purpose != purpose {
			return domain.ErrPaymentWrongPurpose
		}
		if rec.Status != store.PaymentConfirmed {
			return domain.ErrPaymentNotConfirmed
		}
		if rec.ConsumedAt != nil {
			return domain.ErrPaymentAlreadyConsumed
		}
		if err := unitOfWork(tx); err != nil {
			return err
		}
		return l.Store.MarkPaymentConsumed(ctx, tx, rec.PaymentID)
	})
}
