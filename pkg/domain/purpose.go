package domain

import "fmt"

// Purpose tags what a verified payment is allowed to buy. The set is closed:
// a payment recorded under one purpose can never be consumed under another.
type Purpose string

const (
	PurposeRepoInit      Purpose = "repo_init"
	PurposeOtpShare      Purpose = "otp_share"
	PurposeMultisigSetup Purpose = "multisig_setup"
)

func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case PurposeRepoInit, PurposeOtpShare, PurposeMultisigSetup:
		return Purpose(s), nil
	}
	return "", fmt.Errorf("unknown payment purpose %q", s)
}

func (p Purpose) String() string { return string(p) }
