package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
)

type TicketRecord struct {
	TicketID      string     `json:"ticket_id"`
	RepoID        string     `json:"repo_id"`
	PaymentTxHash string     `json:"payment_tx_hash"`
	Token         string     `json:"-"`
	KeyMaterial   []byte     `json:"-"`
	PayloadRef    string     `json:"payload_ref"`
	ExpiresAt     time.Time  `json:"expires_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

const ticketColumns = `ticket_id,repo_id,payment_tx_hash,token,key_material,payload_ref,expires_at,used_at,created_at`

func scanTicket(row pgx.Row) (*TicketRecord, error) {
	var t TicketRecord
	err := row.Scan(&t.TicketID, &t.RepoID, &t.PaymentTxHash, &t.Token, &t.KeyMaterial, &t.PayloadRef, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) InsertTicket(ctx context.Context, q Querier, t TicketRecord) error {
	_, err := q.Exec(ctx, `
INSERT INTO tickets(ticket_id,repo_id,payment_tx_hash,token,key_material,payload_ref,expires_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
`, t.TicketID, t.RepoID, t.PaymentTxHash, t.Token, t.KeyMaterial, t.PayloadRef, t.ExpiresAt)
	return err
}

// RedeemTicket consumes a ticket in a single conditional update: set
// used_at where it is still null and the ticket is unexpired. Two
// concurrent redemptions race safely; exactly one gets the row back, the
// loser is classified by a follow-up read.
func (s *Store) RedeemTicket(ctx context.Context, token string) (*TicketRecord, error) {
	t, err := scanTicket(s.DB.QueryRow(ctx, `
UPDATE tickets SET used_at=now()
WHERE token=$1 AND used_at IS NULL AND expires_at > now()
RETURNING `+ticketColumns, token))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Conditional update matched nothing; find out why.
	t, err = scanTicket(s.DB.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE token=$1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	if t.UsedAt != nil {
		return nil, domain.ErrTicketAlreadyUsed
	}
	return nil, domain.ErrTicketExpired
}
