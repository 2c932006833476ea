// Package verifier implements the Receipt Verifier component: it parses a
// signed PDF receipt, verifies its PKCS#7 RSA-SHA256 signature, extracts
// the fixed set of semantic text lines, and computes the domain-separated
// commitment digests the rest of the pipeline cross-checks against
// on-chain state. It must be deterministic and match, byte for byte, the
// computation performed inside the external ZK guest program.
package verifier

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// Result is the Receipt Verifier's output: either a structural rejection
// (returned as an error) or a fully-formed result discriminated on
// IsValid — failure modes inside the cryptographic pipeline never panic or
// error, they set IsValid=false with a zero fingerprint, per the component
// contract.
type Result struct {
	IsValid             bool
	SignerKeyFingerprint Digest
	Lines               ExtractedLines
	AccountHash         Digest
	TxIDHash            Digest
	TimeAmountHash      Digest
	OutputHash          Digest
}

// Verify parses pdf, verifies its embedded signature, extracts the five
// fixed semantic lines, and computes all commitment digests. Only
// structural failures that prevent even attempting the checks (the receipt
// isn't a PDF at all, required directives are missing) return an error;
// a structurally well-formed receipt with an invalid signature returns
// Result{IsValid: false} and a nil error, matching the PDF-core
// orchestration this is grounded on.
func Verify(pdf []byte) (*Result, error) {
	if len(pdf) > maxReceiptBytes {
		return nil, fmt.Errorf("receipt exceeds %d byte limit", maxReceiptBytes)
	}

	signatureDER, signedPayload, err := getSignatureDER(pdf)
	if err != nil {
		return nil, fmt.Errorf("extract signature: %w", err)
	}

	pages, pageErr := extractPageText(pdf)

	params, parseErr := parseSignedData(signatureDER)
	if parseErr != nil {
		return &Result{IsValid: false}, nil
	}

	isValid, fingerprint := verifySignature(params, signedPayload)

	result := &Result{IsValid: isValid, SignerKeyFingerprint: fingerprint}
	if pageErr == nil && len(pages) > 0 {
		result.Lines = linesFromPage(pages[0])
	}
	result.AccountHash, result.TxIDHash, result.TimeAmountHash = CommitmentFromLines(result.Lines)
	result.OutputHash = OutputHash(result.IsValid, result.SignerKeyFingerprint, result.AccountHash, result.TxIDHash, result.TimeAmountHash)
	return result, nil
}

// verifySignature performs the two-step check: the signed-attributes
// message digest must match the digest of the actual signed payload, and
// the RSA signature over the signed-attributes DER must verify against the
// certificate's public key. It never returns an error; any failure simply
// yields is_valid=false and a zero fingerprint.
func verifySignature(params *signedDataParams, signedPayload []byte) (bool, Digest) {
	payloadDigest := sha256.Sum256(signedPayload)
	if !bytesEqual(params.MessageDigest, payloadDigest[:]) {
		return false, Digest{}
	}

	exponent := new(big.Int).SetBytes(params.Exponent).Int64()
	if exponent <= 0 || exponent > 1<<31 {
		return false, Digest{}
	}
	pubKey := &rsa.PublicKey{
		N: new(big.Int).SetBytes(params.Modulus),
		E: int(exponent),
	}

	attrDigest := sha256.Sum256(params.SignedAttrDigestInput)
	if err := rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, attrDigest[:], params.Signature); err != nil {
		return false, Digest{}
	}

	spki := buildSPKIDER(params.Modulus, params.Exponent)
	return true, sha256.Sum256(spki)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// linesFromPage splits a page's extracted text into 1-indexed lines and
// returns the five semantic fields the receipt layout fixes: 20 (account
// name), 21 (masked account id), 25 (transaction id), 27 (payment time),
// 29 (amount).
func linesFromPage(page string) ExtractedLines {
	lines := splitLines(page)
	get := func(n uint32) string {
		idx := int(n) - 1
		if idx < 0 || idx >= len(lines) {
			return ""
		}
		return lines[idx]
	}
	return ExtractedLines{
		AccountName: get(RequiredLineNumbers[0]),
		AccountID:   get(RequiredLineNumbers[1]),
		TxID:        get(RequiredLineNumbers[2]),
		PaymentTime: get(RequiredLineNumbers[3]),
		AmountLine:  get(RequiredLineNumbers[4]),
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// ExtractPublicKeyHash recovers only the signer's public-key fingerprint,
// without verifying the signature — used by the optimistic key-rotation
// path where the signature is re-verified as part of the fuller Verify
// call that happens anyway during validate.
func ExtractPublicKeyHash(pdf []byte) (Digest, error) {
	signatureDER, _, err := getSignatureDER(pdf)
	if err != nil {
		return Digest{}, fmt.Errorf("extract signature: %w", err)
	}
	params, err := parseSignedData(signatureDER)
	if err != nil {
		return Digest{}, fmt.Errorf("parse signed data: %w", err)
	}
	spki := buildSPKIDER(params.Modulus, params.Exponent)
	return sha256.Sum256(spki), nil
}
