package ledger

// TokenBalance is one entry of a transaction's pre or post balance set,
// matched across the two sets by (Owner, Asset, AccountIndex).
type TokenBalance struct {
	AccountIndex int
	Owner        string
	Asset        string
	Amount       string // base units, decimal string
	Decimals     int
}

// TransactionResult is what the ledger network reports for a transaction
// hash. Found=false means the network has no record of the hash at the
// queried commitment level. Succeeded reflects the execution status only;
// balance deltas are computed by the caller.
type TransactionResult struct {
	Found        bool
	Succeeded    bool
	PreBalances  []TokenBalance
	PostBalances []TokenBalance
}
