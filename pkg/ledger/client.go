package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client queries a ledger-network JSON-RPC node for finalized transactions.
// It is the only remote dependency of the payment ledger and is always
// called outside any database transaction.
type Client struct {
	RPCURL     string
	HTTPClient *http.Client
}

func New(rpcURL string) *Client {
	return &Client{
		RPCURL:     strings.TrimRight(rpcURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcTokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type rpcTokenBalance struct {
	AccountIndex  int            `json:"accountIndex"`
	Mint          string         `json:"mint"`
	Owner         string         `json:"owner"`
	UITokenAmount rpcTokenAmount `json:"uiTokenAmount"`
}

type rpcTransactionMeta struct {
	Err               any               `json:"err"`
	PreTokenBalances  []rpcTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []rpcTokenBalance `json:"postTokenBalances"`
}

type rpcTransactionResult struct {
	Meta *rpcTransactionMeta `json:"meta"`
}

type rpcResponse struct {
	Result *rpcTransactionResult `json:"result"`
	Error  *rpcError             `json:"error"`
}

// GetTransaction fetches a finalized transaction by hash. A missing
// transaction is reported via Found=false, not an error; errors are
// reserved for transport and protocol failures so the caller can tell
// "not there" apart from "could not ask".
func (c *Client) GetTransaction(ctx context.Context, txHash string) (*TransactionResult, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{txHash, map[string]any{
			"commitment":                     "finalized",
			"maxSupportedTransactionVersion": 0,
		}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RPCURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger rpc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger rpc: unexpected status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ledger rpc: decode: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("ledger rpc: %d %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil || out.Result.Meta == nil {
		return &TransactionResult{Found: false}, nil
	}

	meta := out.Result.Meta
	return &TransactionResult{
		Found:        true,
		Succeeded:    meta.Err == nil,
		PreBalances:  convertBalances(meta.PreTokenBalances),
		PostBalances: convertBalances(meta.PostTokenBalances),
	}, nil
}

func convertBalances(in []rpcTokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		out = append(out, TokenBalance{
			AccountIndex: b.AccountIndex,
			Owner:        b.Owner,
			Asset:        b.Mint,
			Amount:       b.UITokenAmount.Amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out
}
