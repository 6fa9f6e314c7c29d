package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/888tyui/pmg/pkg/domain"
)

const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
)

type PaymentRecord struct {
	PaymentID  string          `json:"payment_id"`
	TxHash     string          `json:"tx_hash"`
	Payer      string          `json:"payer"`
	Purpose    domain.Purpose  `json:"purpose"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	RepoName   *string         `json:"repo_name,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	ConsumedAt *time.Time      `json:"consumed_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

const paymentColumns = `payment_id,tx_hash,payer,purpose,amount::text,status,repo_name,metadata,consumed_at,created_at`

func scanPayment(row pgx.Row) (*PaymentRecord, error) {
	var p PaymentRecord
	var purpose, amount string
	var metadata []byte
	err := row.Scan(&p.PaymentID, &p.TxHash, &p.Payer, &purpose, &amount, &p.Status, &p.RepoName, &metadata, &p.ConsumedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Purpose = domain.Purpose(purpose)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &p.Metadata)
	}
	return &p, nil
}

// InsertPayment inserts a confirmed payment record. A concurrent inserter
// for the same tx_hash loses via ON CONFLICT DO NOTHING and reports
// inserted=false; the caller falls back to re-reading the winner's row.
func (s *Store) InsertPayment(ctx context.Context, p PaymentRecord) (bool, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return false, err
	}
	if p.Metadata == nil {
		metadata = []byte("{}")
	}
	tag, err := s.DB.Exec(ctx, `
INSERT INTO payments(payment_id,tx_hash,payer,purpose,amount,status,repo_name,metadata)
VALUES($1,$2,$3,$4,$5::numeric,$6,$7,$8::jsonb)
ON CONFLICT (tx_hash) DO NOTHING
`, p.PaymentID, p.TxHash, p.Payer, p.Purpose.String(), p.Amount.String(), p.Status, p.RepoName, string(metadata))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetPaymentByHash(ctx context.Context, txHash string) (*PaymentRecord, error) {
	p, err := scanPayment(s.DB.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tx_hash=$1`, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ConfirmPayment opportunistically flips a pending payment to confirmed.
func (s *Store) ConfirmPayment(ctx context.Context, txHash string) error {
	_, err := s.DB.Exec(ctx, `UPDATE payments SET status=$2 WHERE tx_hash=$1 AND status<>$2`, txHash, PaymentConfirmed)
	return err
}

// LockPayment reads the payment row FOR UPDATE inside tx, blocking other
// consumers of the same hash until the transaction ends. Returns nil when
// no row exists.
func (s *Store) LockPayment(ctx context.Context, tx pgx.Tx, txHash string) (*PaymentRecord, error) {
	p, err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE tx_hash=$1 FOR UPDATE`, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// MarkPaymentConsumed stamps consumed_at on a not-yet-consumed payment.
// The caller must hold the row lock; a zero-row update here means the
// invariant was violated upstream.
func (s *Store) MarkPaymentConsumed(ctx context.Context, tx pgx.Tx, paymentID string) error {
	tag, err := tx.Exec(ctx, `UPDATE payments SET consumed_at=now() WHERE payment_id=$1 AND consumed_at IS NULL`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrPaymentAlreadyConsumed
	}
	return nil
}
