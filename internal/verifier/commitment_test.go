package verifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

func TestAccountLinesHash(t *testing.T) {
	got := AccountLinesHash("账户名：ZHANG", "账号：138******88")

	var buf bytes.Buffer
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], 20)
	buf.Write(n[:])
	buf.WriteString("账户名：ZHANG")
	binary.LittleEndian.PutUint32(n[:], 21)
	buf.Write(n[:])
	buf.WriteString("账号：138******88")
	want := sha256.Sum256(buf.Bytes())

	if got != Digest(want) {
		t.Errorf("AccountLinesHash mismatch: got %x, want %x", got, want)
	}
}

func TestOutputHash_Deterministic(t *testing.T) {
	fp := Digest{1, 2, 3}
	acct := Digest{4, 5, 6}
	tx := Digest{7, 8, 9}
	ta := Digest{10, 11, 12}

	a := OutputHash(true, fp, acct, tx, ta)
	b := OutputHash(true, fp, acct, tx, ta)
	if a != b {
		t.Error("OutputHash is not deterministic for identical inputs")
	}

	c := OutputHash(false, fp, acct, tx, ta)
	if a == c {
		t.Error("OutputHash must differ when is_valid differs")
	}
}

func TestCommitmentFromLines(t *testing.T) {
	lines := ExtractedLines{
		AccountName: "账户名：ZHANG",
		AccountID:   "账号：138******88",
		TxID:        "2024...0001",
		PaymentTime: "2024-01-01 00:00:00",
		AmountLine:  "小写：100.00",
	}
	account, tx, timeAmount := CommitmentFromLines(lines)

	if account != AccountLinesHash(lines.AccountName, lines.AccountID) {
		t.Error("account digest does not match direct computation")
	}
	if tx != TxIDHash(lines.TxID) {
		t.Error("tx digest does not match direct computation")
	}
	if timeAmount != TimeAmountHash(lines.PaymentTime, lines.AmountLine) {
		t.Error("time/amount digest does not match direct computation")
	}
}
