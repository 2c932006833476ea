package verifier

import (
	"crypto/sha256"
	"encoding/binary"
)

// Digest is the fixed-size output of every commitment in this package.
type Digest [32]byte

func sha256Digest(parts ...[]byte) Digest {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func le32(n uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	return b[:]
}

// ExtractedLines holds the five fixed line numbers the receipt format
// places semantic fields on, per §6 External Interfaces.
type ExtractedLines struct {
	AccountName  string // line 20
	AccountID    string // line 21
	TxID         string // line 25
	PaymentTime  string // line 27
	AmountLine   string // line 29
}

// RequiredLineNumbers is the fixed input-line-number list the guest program
// and the relay agree on; order matters, it is sent verbatim to the prover.
var RequiredLineNumbers = [5]uint32{20, 21, 25, 27, 29}

// Literal line prefixes the receipt layout places before the account name,
// account id, and amount fields (§3, §6). These are baked into the PDF text
// itself, so anyone reconstructing a line from plain fields — rather than
// reading it off a parsed receipt — must prepend them before hashing.
const (
	AccountNameLinePrefix = "账户名："
	AccountIDLinePrefix   = "账号："
	AmountLinePrefix      = "小写："
)

// FormatAmountLine renders line 29 the way the receipt carries it: the
// "小写：" prefix followed by the decimal amount, verbatim. Used by the
// Settlement Coordinator to reconstruct the canonical line from the
// server-side trade amount instead of trusting the amount parsed off the
// buyer-submitted PDF (§8 scenario 1).
func FormatAmountLine(decimalAmount string) string {
	return AmountLinePrefix + decimalAmount
}

// AccountLinesHashFromPlainFields computes the same H_account digest as
// AccountLinesHash, but starting from an order's plain accountName/
// accountId fields rather than lines already extracted from a receipt. It
// reconstructs the canonical prefixed lines — "prefix_name:" +
// upper-if-ascii(name) and "prefix_acct:" + mask(id) — per §3/§4.1, the
// same construction the seller's frontend and the guest program apply.
func AccountLinesHashFromPlainFields(accountName, accountID string) Digest {
	nameLine := AccountNameLinePrefix + NormalizeAccountName(accountName)
	idLine := AccountIDLinePrefix + MaskAccountID(accountID)
	return AccountLinesHash(nameLine, idLine)
}

// AccountLinesHash computes H_account = digest(20‖line20‖21‖line21).
func AccountLinesHash(accountName, accountID string) Digest {
	return sha256Digest(
		le32(RequiredLineNumbers[0]), []byte(accountName),
		le32(RequiredLineNumbers[1]), []byte(accountID),
	)
}

// TxIDHash computes H_tx = digest(25‖line25).
func TxIDHash(txID string) Digest {
	return sha256Digest(le32(RequiredLineNumbers[2]), []byte(txID))
}

// TimeAmountHash computes H_time_amount = digest(27‖line27‖29‖line29).
func TimeAmountHash(paymentTime, amountLine string) Digest {
	return sha256Digest(
		le32(RequiredLineNumbers[3]), []byte(paymentTime),
		le32(RequiredLineNumbers[4]), []byte(amountLine),
	)
}

// OutputHash computes H_output = digest(is_valid‖fingerprint‖H_account‖H_tx‖H_time_amount),
// the value the external prover's guest program reveals and that the
// Settlement Coordinator's validate step compares against its own
// server-side expectation.
func OutputHash(isValid bool, fingerprint Digest, account, tx, timeAmount Digest) Digest {
	validByte := byte(0)
	if isValid {
		validByte = 1
	}
	return sha256Digest([]byte{validByte}, fingerprint[:], account[:], tx[:], timeAmount[:])
}

// CommitmentFromLines computes all three field digests at once from a
// parsed ExtractedLines, as the Receipt Verifier's output does.
func CommitmentFromLines(lines ExtractedLines) (account, tx, timeAmount Digest) {
	return AccountLinesHash(lines.AccountName, lines.AccountID),
		TxIDHash(lines.TxID),
		TimeAmountHash(lines.PaymentTime, lines.AmountLine)
}
