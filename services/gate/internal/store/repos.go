package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
)

type RepoRecord struct {
	RepoID        string    `json:"repo_id"`
	Name          string    `json:"name"`
	Owner         string    `json:"owner"`
	IsPrivate     bool      `json:"is_private"`
	Multisig      bool      `json:"multisig"`
	Threshold     *int      `json:"threshold,omitempty"`
	Signers       []string  `json:"signers"`
	PaymentTxHash string    `json:"payment_tx_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

const repoColumns = `repo_id,name,owner,is_private,multisig,threshold,signers,payment_tx_hash,created_at`

func scanRepo(row pgx.Row) (*RepoRecord, error) {
	var r RepoRecord
	err := row.Scan(&r.RepoID, &r.Name, &r.Owner, &r.IsPrivate, &r.Multisig, &r.Threshold, &r.Signers, &r.PaymentTxHash, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if r.Signers == nil {
		r.Signers = []string{}
	}
	return &r, nil
}

// InsertRepo inserts a repo row via q (pool or transaction). A collision on
// (owner, name) surfaces as ErrRepoExists; inside a consume-once unit of
// work that aborts the whole transaction, leaving the payment unconsumed.
func (s *Store) InsertRepo(ctx context.Context, q Querier, r RepoRecord) error {
	_, err := q.Exec(ctx, `
INSERT INTO repos(repo_id,name,owner,is_private,multisig,threshold,signers,payment_tx_hash)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
`, r.RepoID, r.Name, r.Owner, r.IsPrivate, r.Multisig, r.Threshold, r.Signers, r.PaymentTxHash)
	if isUniqueViolation(err, "repos_owner_name_key") {
		return domain.ErrRepoExists
	}
	return err
}

// EnableRepoMultisig switches an existing repo to multisig mode with a new
// signer set and threshold.
func (s *Store) EnableRepoMultisig(ctx context.Context, q Querier, repoID string, threshold int, signers []string) error {
	_, err := q.Exec(ctx, `UPDATE repos SET multisig=true, threshold=$2, signers=$3 WHERE repo_id=$1`, repoID, threshold, signers)
	return err
}

func (s *Store) GetRepoByOwnerName(ctx context.Context, owner, name string) (*RepoRecord, error) {
	r, err := scanRepo(s.DB.QueryRow(ctx, `SELECT `+repoColumns+` FROM repos WHERE owner=$1 AND name=$2`, owner, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) GetRepoByID(ctx context.Context, repoID string) (*RepoRecord, error) {
	r, err := scanRepo(s.DB.QueryRow(ctx, `SELECT `+repoColumns+` FROM repos WHERE repo_id=$1`, repoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}
