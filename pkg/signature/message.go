package signature

import "fmt"

// Signed messages are always a fixed, versioned template plus one opaque
// identifier. Free-form content never enters a signed message, so a
// signature over one subject can never be replayed against another action.
const pushApprovalTemplate = "pmg-v1 Push Approval:%s"

// PushApprovalMessage is the canonical byte string a signer approves when
// endorsing a pending push identified by subjectID.
func PushApprovalMessage(subjectID string) []byte {
	return []byte(fmt.Sprintf(pushApprovalTemplate, subjectID))
}
