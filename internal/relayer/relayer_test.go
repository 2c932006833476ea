package relayer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyHex := common.Bytes2Hex(crypto.FromECDSA(key))
	gw, err := New("http://127.0.0.1:0", 8453, common.HexToAddress("0x1234"), keyHex)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func TestBuildSelectorCodes_CoversEveryKnownError(t *testing.T) {
	want := []ValidationCode{
		CodeReplayAttack, CodePaymentTooOld, CodeHashMismatch,
		CodeAlreadyUsed, CodeNotPending, CodeExpired, CodeVerificationFailed,
	}
	seen := make(map[ValidationCode]bool)
	for _, code := range selectorCodes {
		seen[code] = true
	}
	for _, code := range want {
		if !seen[code] {
			t.Errorf("no selector maps to %s", code)
		}
	}
}

func TestGateway_CreateTrade_RejectsNonWholeYuanFiatAmount(t *testing.T) {
	gw := testGateway(t)
	defer gw.Close()

	_, _, err := gw.CreateTrade(context.Background(), [32]byte{1}, common.HexToAddress("0xabc"), big.NewInt(12345))
	if err == nil {
		t.Fatal("expected an error for a fiat amount that isn't a multiple of 100")
	}
}

func TestRevertError_UnknownSelectorFallsBackToVerificationFailed(t *testing.T) {
	gw := testGateway(t)
	defer gw.Close()

	err := gw.revertError("submitProof", &TxResult{Reverted: true, RevertData: []byte{0xde, 0xad, 0xbe, 0xef}})
	re, ok := err.(*RevertError)
	if !ok {
		t.Fatalf("expected *RevertError, got %T", err)
	}
	if re.Code != CodeVerificationFailed {
		t.Errorf("code = %s, want %s", re.Code, CodeVerificationFailed)
	}
}

func TestRevertError_KnownSelectorMapsToItsCode(t *testing.T) {
	gw := testGateway(t)
	defer gw.Close()

	contractABI, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parseEscrowABI: %v", err)
	}
	errDef := contractABI.Errors["HashMismatch"]
	revertErr := gw.revertError("submitProof", &TxResult{Reverted: true, RevertData: errDef.ID[:4]})
	re := revertErr.(*RevertError)
	if re.Code != CodeHashMismatch {
		t.Errorf("code = %s, want %s", re.Code, CodeHashMismatch)
	}
}
