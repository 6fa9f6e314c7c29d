package domain

import "errors"

// Ledger verification failures. Returned unchanged to the caller; the engine
// never retries on its own.
var (
	ErrTransactionNotFound    = errors.New("transaction not found on ledger")
	ErrTransactionFailed      = errors.New("transaction failed on ledger")
	ErrDestinationNotInvolved = errors.New("destination account not involved in transaction")
	ErrNoDepositDetected      = errors.New("no deposit to destination detected")
	ErrInsufficientAmount     = errors.New("deposited amount below required minimum")
)

// Payment consumption failures.
var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentWrongPurpose    = errors.New("payment recorded for a different purpose")
	ErrPaymentNotConfirmed    = errors.New("payment not confirmed")
	ErrPaymentAlreadyConsumed = errors.New("payment already consumed")
)

// Resource failures.
var (
	ErrRepoExists        = errors.New("repository already exists")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketAlreadyUsed = errors.New("ticket already used")
	ErrTicketExpired     = errors.New("ticket expired")
)

// Approval failures.
var (
	ErrSignerNotAuthorized       = errors.New("signer not in authorized set")
	ErrSignatureInvalid          = errors.New("signature verification failed")
	ErrSignatureAlreadySubmitted = errors.New("signer already submitted a signature")
	ErrRequestNotTracked         = errors.New("no approval request tracked for subject")
	ErrInvalidThreshold          = errors.New("invalid approval threshold")
)
