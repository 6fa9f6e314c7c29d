package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/services/gate/internal/store"
)

// Registry creates repository records, gated by consuming one payment.
type Registry struct {
	Store     *store.Store
	Payments  *PaymentLedger
	Approvals *ApprovalCoordinator
}

func NewRegistry(st *store.Store, payments *PaymentLedger, approvals *ApprovalCoordinator) *Registry {
	return &Registry{Store: st, Payments: payments, Approvals: approvals}
}

type RegisterInput struct {
	Name          string
	Owner         string
	IsPrivate     bool
	Signers       []string
	Threshold     *int
	PaymentTxHash string
}

// effectiveThreshold resolves the approval threshold for a signer set. A
// requested value is honored only within [1, len(signers)]; anything else
// falls back to ceil(n/2). An explicit threshold without signers is an
// error, not a silent no-op.
func effectiveThreshold(signers []string, requested *int) (int, error) {
	if len(signers) == 0 {
		if requested != nil {
			return 0, domain.ErrInvalidThreshold
		}
		return 0, nil
	}
	if requested != nil && *requested >= 1 && *requested <= len(signers) {
		return *requested, nil
	}
	return (len(signers) + 1) / 2, nil
}

// Register creates a repo by consuming a repo_init payment. A collision on
// (owner, name) aborts the whole transaction as ErrRepoExists, leaving the
// payment unconsumed and available for a corrected retry.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*store.RepoRecord, error) {
	threshold, err := effectiveThreshold(in.Signers, in.Threshold)
	if err != nil {
		return nil, err
	}

	rec := store.RepoRecord{
		RepoID:        "repo_" + uuid.NewString(),
		Name:          in.Name,
		Owner:         in.Owner,
		IsPrivate:     in.IsPrivate,
		Multisig:      len(in.Signers) > 0,
		Signers:       in.Signers,
		PaymentTxHash: in.PaymentTxHash,
	}
	if rec.Multisig {
		rec.Threshold = &threshold
	}
	if rec.Signers == nil {
		rec.Signers = []string{}
	}

	err = r.Payments.ConsumeExactlyOnce(ctx, in.PaymentTxHash, domain.PurposeRepoInit, func(tx pgx.Tx) error {
		return r.Store.InsertRepo(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return r.Store.GetRepoByOwnerName(ctx, in.Owner, in.Name)
}

type SetupMultisigInput struct {
	Name          string
	Owner         string
	Signers       []string
	Threshold     *int
	SubjectID     string
	Branch        *string
	PaymentTxHash string
}

// SetupMultisig switches a repo (creating it if absent) to multisig mode
// and registers the pending action with the approval coordinator, all
// inside one multisig_setup payment consumption.
func (r *Registry) SetupMultisig(ctx context.Context, in SetupMultisigInput) (*store.RepoRecord, error) {
	if len(in.Signers) == 0 {
		return nil, domain.ErrInvalidThreshold
	}
	threshold, err := effectiveThreshold(in.Signers, in.Threshold)
	if err != nil {
		return nil, err
	}

	existing, err := r.Store.GetRepoByOwnerName(ctx, in.Owner, in.Name)
	if err != nil {
		return nil, err
	}

	var out *store.RepoRecord
	err = r.Payments.ConsumeExactlyOnce(ctx, in.PaymentTxHash, domain.PurposeMultisigSetup, func(tx pgx.Tx) error {
		if existing != nil {
			if err := r.Store.EnableRepoMultisig(ctx, tx, existing.RepoID, threshold, in.Signers); err != nil {
				return err
			}
			updated := *existing
			updated.Multisig = true
			updated.Threshold = &threshold
			updated.Signers = in.Signers
			out = &updated
		} else {
			rec := store.RepoRecord{
				RepoID:        "repo_" + uuid.NewString(),
				Name:          in.Name,
				Owner:         in.Owner,
				Multisig:      true,
				Threshold:     &threshold,
				Signers:       in.Signers,
				PaymentTxHash: in.PaymentTxHash,
			}
			if err := r.Store.InsertRepo(ctx, tx, rec); err != nil {
				return err
			}
			out = &rec
		}
		if in.SubjectID == "" {
			return nil
		}
		_, err := r.Approvals.registerTx(ctx, tx, out, in.SubjectID, in.Branch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Store.GetRepoByOwnerName(ctx, in.Owner, in.Name)
}
