package relayer

import "fmt"

// ValidationCode is the closed set of user-facing outcomes the settlement
// coordinator and the on-chain contract agree on. SUCCESS is the only
// non-error member; every other value names a specific rejection reason so
// a buyer or seller sees why a validation or settlement attempt failed
// instead of a bare "transaction reverted".
type ValidationCode string

const (
	CodeSuccess            ValidationCode = "SUCCESS"
	CodeReplayAttack       ValidationCode = "REPLAY_ATTACK"
	CodePaymentTooOld      ValidationCode = "PAYMENT_TOO_OLD"
	CodeHashMismatch       ValidationCode = "HASH_MISMATCH"
	CodeAlreadyUsed        ValidationCode = "ALREADY_USED"
	CodeNotPending         ValidationCode = "NOT_PENDING"
	CodeExpired            ValidationCode = "EXPIRED"
	CodeVerificationFailed ValidationCode = "VERIFICATION_FAILED"
)

// selectorCodes maps a 4-byte custom-error selector to the ValidationCode a
// caller should surface. Built once from escrowABI's error entries so the
// mapping can never drift from the ABI it matches against.
var selectorCodes = buildSelectorCodes()

func buildSelectorCodes() map[[4]byte]ValidationCode {
	names := map[string]ValidationCode{
		"ReplayAttack":        CodeReplayAttack,
		"PaymentTooOld":       CodePaymentTooOld,
		"HashMismatch":        CodeHashMismatch,
		"AlreadyUsed":         CodeAlreadyUsed,
		"TradeNotPending":     CodeNotPending,
		"TradeExpired":        CodeExpired,
		"VerificationFailed":  CodeVerificationFailed,
	}
	contractABI, err := parseEscrowABI()
	if err != nil {
		// escrowABI is a compile-time constant; a parse failure here is a
		// programming error, not a runtime condition callers can recover from.
		panic(fmt.Sprintf("relayer: escrow abi failed to parse: %v", err))
	}
	out := make(map[[4]byte]ValidationCode, len(names))
	for name, code := range names {
		errDef, ok := contractABI.Errors[name]
		if !ok {
			continue
		}
		var selector [4]byte
		copy(selector[:], errDef.ID[:4])
		out[selector] = code
	}
	return out
}

// RevertError is returned by Gateway methods when the transaction was mined
// but reverted. Code is CodeVerificationFailed when the revert data doesn't
// match any known custom error (e.g. a plain require string, or a contract
// upgrade this build predates).
type RevertError struct {
	Method string
	Code   ValidationCode
	TxHash string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("%s reverted (%s): tx %s", e.Method, e.Code, e.TxHash)
}

func (g *Gateway) revertError(method string, result *TxResult) error {
	code := CodeVerificationFailed
	if len(result.RevertData) >= 4 {
		var selector [4]byte
		copy(selector[:], result.RevertData[:4])
		if c, ok := selectorCodes[selector]; ok {
			code = c
		}
	}
	return &RevertError{Method: method, Code: code, TxHash: result.TxHash.Hex()}
}
