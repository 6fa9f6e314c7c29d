package gateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a typed HTTP client for the gate service, for callers that
// shuttle payments, tickets and approvals from their own backends.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type Payment struct {
	PaymentID  string     `json:"payment_id"`
	TxHash     string     `json:"tx_hash"`
	Payer      string     `json:"payer"`
	Purpose    string     `json:"purpose"`
	Amount     string     `json:"amount"`
	Status     string     `json:"status"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Repo struct {
	RepoID    string   `json:"repo_id"`
	Name      string   `json:"name"`
	Owner     string   `json:"owner"`
	IsPrivate bool     `json:"is_private"`
	Multisig  bool     `json:"multisig"`
	Threshold *int     `json:"threshold,omitempty"`
	Signers   []string `json:"signers"`
}

type Ticket struct {
	TicketID    string    `json:"ticket_id,omitempty"`
	RepoID      string    `json:"repo_id"`
	Token       string    `json:"token,omitempty"`
	KeyMaterial string    `json:"key_material"`
	PayloadRef  string    `json:"payload_ref"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type Approval struct {
	RequestID         string     `json:"request_id"`
	SubjectID         string     `json:"subject_id"`
	Status            string     `json:"status"`
	ApprovalCount     int        `json:"approval_count"`
	RequiredApprovals int        `json:"required_approvals"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
}

type VerifyPaymentRequest struct {
	TxHash   string         `json:"tx_hash"`
	Payer    string         `json:"payer"`
	Purpose  string         `json:"purpose"`
	RepoName *string        `json:"repo_name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (c *Client) VerifyPayment(ctx context.Context, in VerifyPaymentRequest) (*Payment, error) {
	var out struct {
		Payment Payment `json:"payment"`
	}
	if err := c.postJSON(ctx, "/gate/payments/verify", in, &out); err != nil {
		return nil, err
	}
	return &out.Payment, nil
}

type RegisterRepoRequest struct {
	Name          string   `json:"name"`
	Owner         string   `json:"owner"`
	IsPrivate     bool     `json:"is_private"`
	Signers       []string `json:"signers,omitempty"`
	Threshold     *int     `json:"threshold,omitempty"`
	PaymentTxHash string   `json:"payment_tx_hash"`
}

func (c *Client) RegisterRepo(ctx context.Context, in RegisterRepoRequest) (*Repo, error) {
	var out struct {
		Repo Repo `json:"repo"`
	}
	if err := c.postJSON(ctx, "/gate/repos", in, &out); err != nil {
		return nil, err
	}
	return &out.Repo, nil
}

type SetupMultisigRequest struct {
	Name          string   `json:"name"`
	Owner         string   `json:"owner"`
	Signers       []string `json:"signers"`
	Threshold     *int     `json:"threshold,omitempty"`
	SubjectID     string   `json:"subject_id,omitempty"`
	Branch        *string  `json:"branch,omitempty"`
	PaymentTxHash string   `json:"payment_tx_hash"`
}

func (c *Client) SetupMultisig(ctx context.Context, in SetupMultisigRequest) (*Repo, error) {
	var out struct {
		Repo Repo `json:"repo"`
	}
	if err := c.postJSON(ctx, "/gate/repos/multisig", in, &out); err != nil {
		return nil, err
	}
	return &out.Repo, nil
}

type IssueTicketRequest struct {
	RepoID        string `json:"repo_id"`
	PayloadRef    string `json:"payload_ref"`
	PaymentTxHash string `json:"payment_tx_hash"`
	KeyMaterial   string `json:"key_material,omitempty"`
	TTLMinutes    int    `json:"ttl_minutes,omitempty"`
}

func (c *Client) IssueTicket(ctx context.Context, in IssueTicketRequest) (*Ticket, error) {
	var out struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.postJSON(ctx, "/gate/tickets", in, &out); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

func (c *Client) RedeemTicket(ctx context.Context, token string) (*Ticket, error) {
	var out struct {
		Ticket Ticket `json:"ticket"`
	}
	if err := c.postJSON(ctx, "/gate/tickets/redeem", map[string]string{"token": token}, &out); err != nil {
		return nil, err
	}
	return &out.Ticket, nil
}

func (c *Client) Approve(ctx context.Context, subjectID, signer, signatureB58 string) (*Approval, error) {
	var out struct {
		Approval Approval `json:"approval"`
	}
	body := map[string]string{"signer": signer, "signature": signatureB58}
	if err := c.postJSON(ctx, "/gate/approvals/"+url.PathEscape(subjectID), body, &out); err != nil {
		return nil, err
	}
	return &out.Approval, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("http %d: %v", resp.StatusCode, errBody)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
