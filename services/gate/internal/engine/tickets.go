package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/services/gate/internal/store"
)

const defaultTicketTTL = 1440 * time.Minute

// TicketIssuer mints and redeems single-use decryption tickets. Expiry is
// enforced lazily at redemption; there is no sweeper.
type TicketIssuer struct {
	Store    *store.Store
	Payments *PaymentLedger
}

func NewTicketIssuer(st *store.Store, payments *PaymentLedger) *TicketIssuer {
	return &TicketIssuer{Store: st, Payments: payments}
}

type IssueInput struct {
	RepoID        string
	PayloadRef    string
	PaymentTxHash string
	KeyMaterial   []byte // generated when empty
	TTLMinutes    int    // default 1440
}

type IssuedTicket struct {
	TicketID    string    `json:"ticket_id"`
	RepoID      string    `json:"repo_id"`
	Token       string    `json:"token"`
	KeyMaterial []byte    `json:"key_material"`
	PayloadRef  string    `json:"payload_ref"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issue mints a ticket by consuming an otp_share payment. Token and key
// material come from crypto/rand; the token's uniqueness is additionally
// backed by the tickets_token_key constraint.
func (t *TicketIssuer) Issue(ctx context.Context, in IssueInput) (*IssuedTicket, error) {
	key := in.KeyMaterial
	if len(key) == 0 {
		key = randomBytes(32)
	}
	rec := store.TicketRecord{
		TicketID:      "tkt_" + uuid.NewString(),
		RepoID:        in.RepoID,
		PaymentTxHash: in.PaymentTxHash,
		Token:         newTicketToken(),
		KeyMaterial:   key,
		PayloadRef:    in.PayloadRef,
		ExpiresAt:     time.Now().UTC().Add(resolveTTL(in.TTLMinutes)),
	}
	err := t.Payments.ConsumeExactlyOnce(ctx, in.PaymentTxHash, domain.PurposeOtpShare, func(tx pgx.Tx) error {
		return t.Store.InsertTicket(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return &IssuedTicket{
		TicketID:    rec.TicketID,
		RepoID:      rec.RepoID,
		Token:       rec.Token,
		KeyMaterial: rec.KeyMaterial,
		PayloadRef:  rec.PayloadRef,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// Redeem consumes a ticket exactly once and returns what it guards.
func (t *TicketIssuer) Redeem(ctx context.Context, token string) (*store.TicketRecord, error) {
	return t.Store.RedeemTicket(ctx, token)
}

func resolveTTL(minutes int) time.Duration {
	if minutes <= 0 {
		return defaultTicketTTL
	}
	return time.Duration(minutes) * time.Minute
}

// newTicketToken returns a 192-bit random token in hex.
func newTicketToken() string {
	return hex.EncodeToString(randomBytes(24))
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
