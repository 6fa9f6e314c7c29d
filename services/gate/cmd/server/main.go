package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/888tyui/pmg/pkg/db"
	"github.com/888tyui/pmg/pkg/domain"
	"github.com/888tyui/pmg/pkg/httpx"
	"github.com/888tyui/pmg/pkg/ledger"
	"github.com/888tyui/pmg/pkg/signature"
	"github.com/888tyui/pmg/services/gate/internal/engine"
	"github.com/888tyui/pmg/services/gate/internal/store"
)

func main() {
	pool := db.MustConnect()
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("schema: %v", err)
	}

	chain := ledger.New(mustGetenv("PMG_RPC_URL"))
	payments := engine.NewPaymentLedger(st, chain)
	approvals := engine.NewApprovalCoordinator(st)
	registry := engine.NewRegistry(st, payments, approvals)
	tickets := engine.NewTicketIssuer(st, payments)

	recipient := mustGetenv("PMG_RECIPIENT")
	asset := mustGetenv("PMG_ASSET")
	prices := map[domain.Purpose]decimal.Decimal{
		domain.PurposeRepoInit:      mustPrice("PMG_PRICE_REPO_INIT"),
		domain.PurposeOtpShare:      mustPrice("PMG_PRICE_OTP_SHARE"),
		domain.PurposeMultisigSetup: mustPrice("PMG_PRICE_MULTISIG_SETUP"),
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/gate", func(api chi.Router) {

		api.Post("/payments/verify", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				TxHash   string         `json:"tx_hash"`
				Payer    string         `json:"payer"`
				Purpose  string         `json:"purpose"`
				RepoName *string        `json:"repo_name,omitempty"`
				Metadata map[string]any `json:"metadata,omitempty"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			purpose, err := domain.ParsePurpose(req.Purpose)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_PURPOSE", err.Error(), nil)
				return
			}
			rec, err := payments.VerifyAndRecord(r.Context(), engine.VerifyAndRecordInput{
				TxHash:    req.TxHash,
				Payer:     req.Payer,
				Purpose:   purpose,
				MinAmount: prices[purpose],
				AssetID:   asset,
				Recipient: recipient,
				RepoName:  req.RepoName,
				Metadata:  req.Metadata,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "payment": rec})
		})

		api.Post("/repos", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name          string   `json:"name"`
				Owner         string   `json:"owner"`
				IsPrivate     bool     `json:"is_private"`
				Signers       []string `json:"signers"`
				Threshold     *int     `json:"threshold,omitempty"`
				PaymentTxHash string   `json:"payment_tx_hash"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			if req.Name == "" || req.Owner == "" || req.PaymentTxHash == "" {
				httpx.WriteError(w, 400, "MISSING_FIELD", "name, owner and payment_tx_hash are required", nil)
				return
			}
			repo, err := registry.Register(r.Context(), engine.RegisterInput{
				Name:          req.Name,
				Owner:         req.Owner,
				IsPrivate:     req.IsPrivate,
				Signers:       req.Signers,
				Threshold:     req.Threshold,
				PaymentTxHash: req.PaymentTxHash,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "repo": repo})
		})

		api.Get("/repos/{owner}/{name}", func(w http.ResponseWriter, r *http.Request) {
			repo, err := st.GetRepoByOwnerName(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "name"))
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			if repo == nil {
				httpx.WriteError(w, 404, "NOT_FOUND", "repo not found", nil)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "repo": repo})
		})

		api.Post("/repos/multisig", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name          string   `json:"name"`
				Owner         string   `json:"owner"`
				Signers       []string `json:"signers"`
				Threshold     *int     `json:"threshold,omitempty"`
				SubjectID     string   `json:"subject_id,omitempty"`
				Branch        *string  `json:"branch,omitempty"`
				PaymentTxHash string   `json:"payment_tx_hash"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			repo, err := registry.SetupMultisig(r.Context(), engine.SetupMultisigInput{
				Name:          req.Name,
				Owner:         req.Owner,
				Signers:       req.Signers,
				Threshold:     req.Threshold,
				SubjectID:     req.SubjectID,
				Branch:        req.Branch,
				PaymentTxHash: req.PaymentTxHash,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "repo": repo})
		})

		api.Post("/tickets", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				RepoID        string `json:"repo_id"`
				PayloadRef    string `json:"payload_ref"`
				PaymentTxHash string `json:"payment_tx_hash"`
				KeyMaterial   string `json:"key_material,omitempty"` // base58, generated when absent
				TTLMinutes    int    `json:"ttl_minutes,omitempty"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			var key []byte
			if req.KeyMaterial != "" {
				var err error
				if key, err = base58.Decode(req.KeyMaterial); err != nil {
					httpx.WriteError(w, 400, "BAD_KEY_MATERIAL", "key_material must be base58", nil)
					return
				}
			}
			issued, err := tickets.Issue(r.Context(), engine.IssueInput{
				RepoID:        req.RepoID,
				PayloadRef:    req.PayloadRef,
				PaymentTxHash: req.PaymentTxHash,
				KeyMaterial:   key,
				TTLMinutes:    req.TTLMinutes,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{
				"request_id": httpx.NewRequestID(),
				"ticket": map[string]any{
					"ticket_id":    issued.TicketID,
					"repo_id":      issued.RepoID,
					"token":        issued.Token,
					"key_material": base58.Encode(issued.KeyMaterial),
					"payload_ref":  issued.PayloadRef,
					"expires_at":   issued.ExpiresAt,
				},
				"token_hint": "store once; not retrievable again",
			})
		})

		api.Post("/tickets/redeem", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Token string `json:"token"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			ticket, err := tickets.Redeem(r.Context(), req.Token)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"ticket": map[string]any{
					"repo_id":      ticket.RepoID,
					"payload_ref":  ticket.PayloadRef,
					"key_material": base58.Encode(ticket.KeyMaterial),
				},
			})
		})

		api.Post("/approvals/{subject_id}", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Signer    string `json:"signer"`
				Signature string `json:"signature"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			res, err := approvals.Approve(r.Context(), chi.URLParam(r, "subject_id"), req.Signer, req.Signature)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "approval": res})
		})

		api.Get("/approvals/{repo_id}/{subject_id}", func(w http.ResponseWriter, r *http.Request) {
			res, err := approvals.Status(r.Context(), chi.URLParam(r, "repo_id"), chi.URLParam(r, "subject_id"))
			if err != nil {
				writeDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "status": res})
		})
	})

	port := getenvOr("SERVICE_PORT", "8090")
	log.Printf("gate listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

// writeDomainError maps engine error kinds onto HTTP statuses. Anything
// unrecognized is a storage or transport failure and stays a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	type mapping struct {
		target error
		status int
		code   string
	}
	mappings := []mapping{
		{domain.ErrTransactionNotFound, 404, "TRANSACTION_NOT_FOUND"},
		{domain.ErrTransactionFailed, 422, "TRANSACTION_FAILED"},
		{domain.ErrDestinationNotInvolved, 422, "DESTINATION_NOT_INVOLVED"},
		{domain.ErrNoDepositDetected, 422, "NO_DEPOSIT_DETECTED"},
		{domain.ErrInsufficientAmount, 422, "INSUFFICIENT_AMOUNT"},
		{domain.ErrPaymentNotFound, 404, "PAYMENT_NOT_FOUND"},
		{domain.ErrPaymentWrongPurpose, 409, "PAYMENT_WRONG_PURPOSE"},
		{domain.ErrPaymentNotConfirmed, 409, "PAYMENT_NOT_CONFIRMED"},
		{domain.ErrPaymentAlreadyConsumed, 409, "PAYMENT_ALREADY_CONSUMED"},
		{domain.ErrRepoExists, 409, "REPO_EXISTS"},
		{domain.ErrTicketNotFound, 404, "TICKET_NOT_FOUND"},
		{domain.ErrTicketAlreadyUsed, 409, "TICKET_ALREADY_USED"},
		{domain.ErrTicketExpired, 410, "TICKET_EXPIRED"},
		{domain.ErrSignerNotAuthorized, 403, "SIGNER_NOT_AUTHORIZED"},
		{domain.ErrSignatureInvalid, 403, "SIGNATURE_INVALID"},
		{domain.ErrSignatureAlreadySubmitted, 409, "SIGNATURE_ALREADY_SUBMITTED"},
		{domain.ErrRequestNotTracked, 404, "REQUEST_NOT_TRACKED"},
		{domain.ErrInvalidThreshold, 400, "INVALID_THRESHOLD"},
		{signature.ErrInvalidSignatureEncoding, 400, "INVALID_SIGNATURE_ENCODING"},
		{signature.ErrInvalidSigner, 400, "INVALID_SIGNER"},
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			httpx.WriteError(w, m.status, m.code, err.Error(), nil)
			return
		}
	}
	httpx.WriteError(w, 500, "INTERNAL", err.Error(), nil)
}

func mustGetenv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s is required", key)
	}
	return v
}

func mustPrice(key string) decimal.Decimal {
	v, err := decimal.NewFromString(mustGetenv(key))
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return v
}

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
