package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
)

type ApprovalRequest struct {
	RequestID         string     `json:"request_id"`
	RepoID            string     `json:"repo_id"`
	SubjectID         string     `json:"subject_id"`
	Branch            *string    `json:"branch,omitempty"`
	Status            string     `json:"status"`
	RequiredApprovals int        `json:"required_approvals"`
	ApprovalCount     int        `json:"approval_count"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ApprovalSignature struct {
	SignatureID string    `json:"signature_id"`
	RequestID   string    `json:"request_id"`
	Signer      string    `json:"signer"`
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"created_at"`
}

const requestColumns = `request_id,repo_id,subject_id,branch,status,required_approvals,approval_count,approved_at,created_at`

func scanRequest(row pgx.Row) (*ApprovalRequest, error) {
	var r ApprovalRequest
	err := row.Scan(&r.RequestID, &r.RepoID, &r.SubjectID, &r.Branch, &r.Status, &r.RequiredApprovals, &r.ApprovalCount, &r.ApprovedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertApprovalRequest registers a pending action. First registration
// wins: a duplicate (repo_id, subject_id) is ignored and required_approvals
// stays frozen at whatever the first registration captured.
func (s *Store) InsertApprovalRequest(ctx context.Context, q Querier, r ApprovalRequest) (bool, error) {
	tag, err := q.Exec(ctx, `
INSERT INTO approval_requests(request_id,repo_id,subject_id,branch,status,required_approvals)
VALUES($1,$2,$3,$4,$5,$6)
ON CONFLICT (repo_id,subject_id) DO NOTHING
`, r.RequestID, r.RepoID, r.SubjectID, r.Branch, ApprovalPending, r.RequiredApprovals)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetRequestBySubject looks up a request by subject alone. Subjects are
// push transaction ids, unique across the whole ledger, so the lookup is
// unambiguous; the ORDER BY is a tiebreak, not a disambiguation strategy.
func (s *Store) GetRequestBySubject(ctx context.Context, subjectID string) (*ApprovalRequest, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE subject_id=$1 ORDER BY created_at LIMIT 1`, subjectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) GetRequest(ctx context.Context, q Querier, repoID, subjectID string) (*ApprovalRequest, error) {
	r, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE repo_id=$1 AND subject_id=$2`, repoID, subjectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// LockRequest re-reads the request FOR UPDATE so the signature insert,
// count recomputation, and status flip happen under one row lock.
func (s *Store) LockRequest(ctx context.Context, tx pgx.Tx, requestID string) (*ApprovalRequest, error) {
	r, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE request_id=$1 FOR UPDATE`, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// InsertApprovalSignature records one signer's endorsement. The unique
// constraint, not an application-level check, is what rejects a second
// submission from the same signer under concurrency.
func (s *Store) InsertApprovalSignature(ctx context.Context, tx pgx.Tx, sig ApprovalSignature) error {
	_, err := tx.Exec(ctx, `
INSERT INTO approval_signatures(signature_id,request_id,signer,signature)
VALUES($1,$2,$3,$4)
`, sig.SignatureID, sig.RequestID, sig.Signer, sig.Signature)
	if isUniqueViolation(err, "approval_signatures_request_signer_key") {
		return domain.ErrSignatureAlreadySubmitted
	}
	return err
}

// CountSignatures recomputes the approval count from stored rows. Counting
// rows instead of incrementing in place keeps the count self-healing after
// partial failures.
func (s *Store) CountSignatures(ctx context.Context, tx pgx.Tx, requestID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT count(*) FROM approval_signatures WHERE request_id=$1`, requestID).Scan(&n)
	return n, err
}

func (s *Store) UpdateRequestProgress(ctx context.Context, tx pgx.Tx, requestID string, count int, status string, approvedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
UPDATE approval_requests SET approval_count=$2, status=$3, approved_at=$4 WHERE request_id=$1
`, requestID, count, status, approvedAt)
	return err
}

func (s *Store) ListSignatures(ctx context.Context, requestID string) ([]ApprovalSignature, error) {
	rows, err := s.DB.Query(ctx, `
SELECT signature_id,request_id,signer,signature,created_at
FROM approval_signatures WHERE request_id=$1 ORDER BY created_at
`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApprovalSignature
	for rows.Next() {
		var sig ApprovalSignature
		if err := rows.Scan(&sig.SignatureID, &sig.RequestID, &sig.Signer, &sig.Signature, &sig.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
