package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/pkg/signature"
	"github.com/888tyui/pmg/services/gate/internal/store"
)

// ApprovalCoordinator runs the signature-gated quorum protocol for pending
// pushes. State per request is pending -> approved, terminal; approvals
// past the threshold still increment the stored count but never change
// state.
type ApprovalCoordinator struct {
	Store *store.Store
}

func NewApprovalCoordinator(st *store.Store) *ApprovalCoordinator {
	return &ApprovalCoordinator{Store: st}
}

// RegisterIfMultisig tracks subjectID for approval when the repo is
// multisig-enabled with a positive threshold; otherwise it does nothing.
// Re-registering the same subject is a no-op and the first registration's
// required_approvals stays frozen even if the repo's threshold changes
// later.
func (c *ApprovalCoordinator) RegisterIfMultisig(ctx context.Context, repo *store.RepoRecord, subjectID string, branch *string) (*store.ApprovalRequest, error) {
	return c.registerTx(ctx, c.Store.DB, repo, subjectID, branch)
}

func (c *ApprovalCoordinator) registerTx(ctx context.Context, q store.Querier, repo *store.RepoRecord, subjectID string, branch *string) (*store.ApprovalRequest, error) {
	if !repo.Multisig || repo.Threshold == nil || *repo.Threshold < 1 {
		return nil, nil
	}
	req := store.ApprovalRequest{
		RequestID:         "apr_" + uuid.NewString(),
		RepoID:            repo.RepoID,
		SubjectID:         subjectID,
		Branch:            branch,
		Status:            store.ApprovalPending,
		RequiredApprovals: *repo.Threshold,
	}
	inserted, err := c.Store.InsertApprovalRequest(ctx, q, req)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost to an earlier registration. Return the stored row, not the
		// candidate: its request_id is the one signatures attach to and
		// its required_approvals is the frozen value.
		existing, err := c.Store.GetRequest(ctx, q, repo.RepoID, subjectID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrRequestNotTracked
		}
		return existing, nil
	}
	return &req, nil
}

type ApprovalResult struct {
	RequestID         string     `json:"request_id"`
	SubjectID         string     `json:"subject_id"`
	Status            string     `json:"status"`
	ApprovalCount     int        `json:"approval_count"`
	RequiredApprovals int        `json:"required_approvals"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
}

// Approve records one signer's endorsement of a pending push. The signer
// must be in the repo's signer set as it stands now, not as it stood at
// registration time. The signature is checked against the canonical push
// approval message before any row is touched; the double-submit race is
// then resolved by the unique constraint inside the locked transaction.
func (c *ApprovalCoordinator) Approve(ctx context.Context, subjectID, signer, signatureB58 string) (*ApprovalResult, error) {
	req, err := c.Store.GetRequestBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrRequestNotTracked
	}
	repo, err := c.Store.GetRepoByID(ctx, req.RepoID)
	if err != nil {
		return nil, err
	}
	if repo == nil || !contains(repo.Signers, signer) {
		return nil, domain.ErrSignerNotAuthorized
	}

	ok, err := signature.Verify(signature.PushApprovalMessage(subjectID), signatureB58, signer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSignatureInvalid
	}

	var out ApprovalResult
	err = c.Store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := c.Store.LockRequest(ctx, tx, req.RequestID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrRequestNotTracked
		}
		err = c.Store.InsertApprovalSignature(ctx, tx, store.ApprovalSignature{
			SignatureID: "sig_" + uuid.NewString(),
			RequestID:   locked.RequestID,
			Signer:      signer,
			Signature:   signatureB58,
		})
		if err != nil {
			return err
		}
		count, err := c.Store.CountSignatures(ctx, tx, locked.RequestID)
		if err != nil {
			return err
		}
		status := locked.Status
		approvedAt := locked.ApprovedAt
		if count >= locked.RequiredApprovals && status == store.ApprovalPending {
			status = store.ApprovalApproved
			now := time.Now().UTC()
			approvedAt = &now
		}
		if err := c.Store.UpdateRequestProgress(ctx, tx, locked.RequestID, count, status, approvedAt); err != nil {
			return err
		}
		out = ApprovalResult{
			RequestID:         locked.RequestID,
			SubjectID:         subjectID,
			Status:            status,
			ApprovalCount:     count,
			RequiredApprovals: locked.RequiredApprovals,
			ApprovedAt:        approvedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type StatusResult struct {
	Request    store.ApprovalRequest     `json:"request"`
	Signatures []store.ApprovalSignature `json:"signatures"`
}

// Status is a read-only view of a tracked request and its signatures in
// submission order.
func (c *ApprovalCoordinator) Status(ctx context.Context, repoID, subjectID string) (*StatusResult, error) {
	req, err := c.Store.GetRequest(ctx, c.Store.DB, repoID, subjectID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.ErrRequestNotTracked
	}
	sigs, err := c.Store.ListSignatures(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Request: *req, Signatures: sigs}, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
