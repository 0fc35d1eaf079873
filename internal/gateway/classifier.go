package gateway

import "fmt"

// Outcome is the semantic classification of a gateway response code.
type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomePartialApproved Outcome = "partial_approved"
	// The gateway answered, but with a code saying the transaction's state
	// is unknown to the merchant. Treated identically to a transport
	// timeout: the authorization must be reversed.
	OutcomeTimeoutClass Outcome = "timeout_class"
	OutcomeDeclined     Outcome = "declined"
)

// CodePartialApproval authorizes less than the requested amount.
const CodePartialApproval = "10"

var approvedCodes = map[string]bool{
	"00": true, // approved
	"11": true, // approved (VIP)
}

var timeoutClassCodes = map[string]bool{
	"68": true, // response received too late
	"91": true, // issuer or switch inoperative
	"96": true, // system malfunction
}

// Classify maps a gateway response code to its semantic outcome. Every
// string input classifies; unknown codes are declines.
func Classify(code string) Outcome {
	switch {
	case approvedCodes[code]:
		return OutcomeApproved
	case code == CodePartialApproval:
		return OutcomePartialApproved
	case timeoutClassCodes[code]:
		return OutcomeTimeoutClass
	}
	return OutcomeDeclined
}

// PartialNoteFallback is shown when the gateway approves a partial amount
// without supplying its own note.
const PartialNoteFallback = "Partial authorization — insufficient funds for full amount"

// PartialNote returns the user-facing note for a partial approval,
// preferring the gateway-supplied free text.
func PartialNote(resp *Response) string {
	if resp != nil && resp.PartialAmountNote != "" {
		return resp.PartialAmountNote
	}
	return PartialNoteFallback
}

var responseMessages = map[string]string{
	"00": "Approved",
	"01": "Refer to card issuer",
	"03": "Invalid merchant",
	"04": "Pick up card",
	"05": "Do not honor",
	"10": "Partial approval",
	"11": "Approved (VIP)",
	"12": "Invalid transaction",
	"13": "Invalid amount",
	"14": "Invalid card number",
	"30": "Format error",
	"41": "Lost card",
	"43": "Stolen card",
	"51": "Insufficient funds",
	"54": "Expired card",
	"55": "Incorrect PIN",
	"57": "Transaction not permitted to cardholder",
	"58": "Transaction not permitted to terminal",
	"61": "Exceeds withdrawal amount limit",
	"62": "Restricted card",
	"65": "Exceeds withdrawal frequency limit",
	"68": "Response received too late",
	"75": "PIN tries exceeded",
	"91": "Issuer or switch is inoperative",
	"94": "Duplicate transmission",
	"96": "System malfunction",
}

// Message renders a human-readable text for a gateway response code. It
// never fails: unknown codes get a generic fallback carrying the raw code
// for support reference.
func Message(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unrecognized response code: %s", code)
}
