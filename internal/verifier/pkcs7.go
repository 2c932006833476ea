package verifier

import (
	"fmt"
	"math/big"
)

// signedDataParams is everything the receipt verifier needs out of a
// PKCS#7 SignedData structure: the certificate's RSA public key, the
// signature, and the two digests that must cross-check against each other
// and against the signed payload.
type signedDataParams struct {
	Modulus               []byte // raw DER INTEGER content, sign-correct big-endian
	Exponent              []byte
	Signature             []byte
	SignedAttrDigestInput []byte // DER re-encoding of signedAttrs under a SET tag — hash this to get signedAttrDigest
	MessageDigest         []byte // messageDigest attribute value, compared against digest(signed payload)
}

// parseSignedData parses a PKCS#7 SignedData ContentInfo and extracts the
// fields needed to verify an Alipay-style detached RSA-SHA256 signature.
// It mirrors pkcs7_parser.rs's parse_signed_data function block for block,
// since the PDF receipts this parses are produced by a small closed set of
// signing services and the ASN.1 shape is fixed.
func parseSignedData(der []byte) (*signedDataParams, error) {
	top, err := parseDER(der)
	if err != nil {
		return nil, fmt.Errorf("der parse: %w", err)
	}
	contentInfo, err := extractContentInfo(top)
	if err != nil {
		return nil, err
	}
	signedData, err := extractSignedDataSeq(contentInfo)
	if err != nil {
		return nil, err
	}
	signerInfo, err := extractSignerInfo(signedData)
	if err != nil {
		return nil, err
	}
	serial, err := extractIssuerSerial(signerInfo)
	if err != nil {
		return nil, err
	}
	if err := requireSHA256Digest(signerInfo); err != nil {
		return nil, err
	}

	signedAttrsDER, err := extractSignedAttributesDER(signerInfo)
	if err != nil {
		return nil, err
	}
	// Re-parse the re-tagged SET to recover its own header length rather
	// than assuming a fixed 2-byte tag+length: signedAttrs routinely carries
	// content-type, message-digest, and signing-time attributes and crosses
	// the 128-byte short-form boundary, so appendDERLength above may have
	// emitted a long-form length.
	signedAttrsSet, err := parseDEROne(signedAttrsDER)
	if err != nil {
		return nil, fmt.Errorf("signedAttrs parse: %w", err)
	}
	signedAttrNodes := signedAttrsSet.Children
	messageDigest, err := extractMessageDigest(signedAttrNodes)
	if err != nil {
		return nil, err
	}

	signature, err := extractSignature(signerInfo)
	if err != nil {
		return nil, err
	}

	modulus, exponent, err := extractPubkeyComponents(signedData, serial)
	if err != nil {
		return nil, err
	}

	return &signedDataParams{
		Modulus:               modulus,
		Exponent:              exponent,
		Signature:             signature,
		SignedAttrDigestInput: signedAttrsDER,
		MessageDigest:         messageDigest,
	}, nil
}

func extractContentInfo(top []*derNode) ([]*derNode, error) {
	if len(top) == 0 || !top[0].isUniversal(tagSequence) {
		return nil, fmt.Errorf("pkcs7: top level is not a SEQUENCE")
	}
	children := top[0].Children
	if len(children) < 2 || !oidEquals(children[0], oidSignedData) {
		return nil, fmt.Errorf("pkcs7: not a SignedData contentType")
	}
	return children, nil
}

// extractSignedDataSeq unwraps the explicit [0] content wrapper around the
// SignedData SEQUENCE.
func extractSignedDataSeq(contentInfo []*derNode) ([]*derNode, error) {
	wrapper := contentInfo[1]
	if wrapper.isUniversal(tagSequence) {
		return wrapper.Children, nil
	}
	if wrapper.isContextTag(0) && wrapper.Constructed {
		if len(wrapper.Children) == 1 && wrapper.Children[0].isUniversal(tagSequence) {
			return wrapper.Children[0].Children, nil
		}
		// Some encoders omit the inner explicit wrapping node and place the
		// SignedData fields directly as children of [0].
		if len(wrapper.Children) > 1 {
			return wrapper.Children, nil
		}
		parsed, err := parseDER(wrapper.Raw)
		if err == nil && len(parsed) == 1 && parsed[0].isUniversal(tagSequence) {
			return parsed[0].Children, nil
		}
	}
	return nil, fmt.Errorf("pkcs7: unexpected SignedData content format")
}

func extractSignerInfo(signedData []*derNode) ([]*derNode, error) {
	if len(signedData) == 0 {
		return nil, fmt.Errorf("pkcs7: empty SignedData")
	}
	last := signedData[len(signedData)-1]
	if !last.isUniversal(tagSet) || len(last.Children) == 0 {
		return nil, fmt.Errorf("pkcs7: expected SignerInfos SET")
	}
	first := last.Children[0]
	if !first.isUniversal(tagSequence) {
		return nil, fmt.Errorf("pkcs7: expected SignerInfo SEQUENCE")
	}
	return first.Children, nil
}

func extractIssuerSerial(signerInfo []*derNode) (*big.Int, error) {
	if len(signerInfo) < 2 || !signerInfo[1].isUniversal(tagSequence) {
		return nil, fmt.Errorf("pkcs7: expected issuerAndSerialNumber SEQUENCE")
	}
	parts := signerInfo[1].Children
	if len(parts) != 2 || !parts[1].isUniversal(tagInteger) {
		return nil, fmt.Errorf("pkcs7: expected serialNumber INTEGER")
	}
	return new(big.Int).SetBytes(parts[1].Raw), nil
}

func requireSHA256Digest(signerInfo []*derNode) error {
	if len(signerInfo) < 3 || !signerInfo[2].isUniversal(tagSequence) {
		return fmt.Errorf("pkcs7: digestAlgorithm missing")
	}
	algo := signerInfo[2].Children
	if len(algo) == 0 || !oidEquals(algo[0], oidSHA256) {
		return fmt.Errorf("pkcs7: only SHA-256 digest algorithm is supported")
	}
	return nil
}

// extractSignedAttributesDER finds the implicit [0] signedAttrs element and
// re-tags it as a DER SET (0x31) — per RFC 2315, the signature covers the
// DER re-encoding of signedAttrs with a SET tag, not the [0] IMPLICIT tag
// as it appears on the wire.
func extractSignedAttributesDER(signerInfo []*derNode) ([]byte, error) {
	for _, n := range signerInfo {
		if n.isContextTag(0) {
			out := make([]byte, 0, len(n.Raw)+4)
			out = append(out, 0x31)
			out = appendDERLength(out, len(n.Raw))
			out = append(out, n.Raw...)
			return out, nil
		}
	}
	return nil, fmt.Errorf("pkcs7: signedAttrs [0] not found")
}

func extractMessageDigest(attrs []*derNode) ([]byte, error) {
	candidates := attrs
	if len(attrs) == 1 && attrs[0].isUniversal(tagSet) {
		candidates = attrs[0].Children
	}
	for _, attr := range candidates {
		if !attr.isUniversal(tagSequence) || len(attr.Children) < 2 {
			continue
		}
		if !oidEquals(attr.Children[0], oidMessageDigest) {
			continue
		}
		valueSet := attr.Children[1]
		if !valueSet.isUniversal(tagSet) || len(valueSet.Children) == 0 {
			continue
		}
		octets := valueSet.Children[0]
		if !octets.isUniversal(tagOctetString) {
			continue
		}
		return octets.Raw, nil
	}
	return nil, fmt.Errorf("pkcs7: messageDigest attribute not found")
}

func extractSignature(signerInfo []*derNode) ([]byte, error) {
	// digestEncryptionAlgorithm sits after the (implicit, so absent-from-
	// index) signedAttrs in some encoders and is always directly followed
	// by the OCTET STRING signature value; scan for the first OCTET STRING
	// after the digestAlgorithm/digestEncryptionAlgorithm sequences rather
	// than hard-coding an index, since presence of unauthenticatedAttrs [1]
	// and of signedAttrs [0] both shift position.
	seenSequences := 0
	for i, n := range signerInfo {
		if n.isUniversal(tagSequence) {
			seenSequences++
			continue
		}
		if n.isUniversal(tagOctetString) && seenSequences >= 2 && i > 2 {
			return n.Raw, nil
		}
	}
	return nil, fmt.Errorf("pkcs7: signature OCTET STRING not found")
}

func extractPubkeyComponents(signedData []*derNode, serial *big.Int) ([]byte, []byte, error) {
	certs, err := findCertificates(signedData)
	if err != nil {
		return nil, nil, err
	}
	tbs, err := findCertBySerial(certs, serial)
	if err != nil {
		return nil, nil, err
	}
	spki, err := findSPKI(tbs)
	if err != nil {
		return nil, nil, err
	}
	if len(spki.Children) < 2 || !spki.Children[1].isUniversal(tagBitString) {
		return nil, nil, fmt.Errorf("pkcs7: expected BIT STRING public key")
	}
	bitstring := spki.Children[1].Raw
	if len(bitstring) < 1 {
		return nil, nil, fmt.Errorf("pkcs7: empty public key bit string")
	}
	rsaKey, err := parseDEROne(bitstring[1:]) // first byte is unused-bits count, always 0 for RSA keys
	if err != nil || !rsaKey.isUniversal(tagSequence) || len(rsaKey.Children) != 2 {
		return nil, nil, fmt.Errorf("pkcs7: malformed RSAPublicKey")
	}
	modulus := rsaKey.Children[0]
	exponent := rsaKey.Children[1]
	if !modulus.isUniversal(tagInteger) || !exponent.isUniversal(tagInteger) {
		return nil, nil, fmt.Errorf("pkcs7: RSAPublicKey fields are not INTEGERs")
	}
	return modulus.Raw, exponent.Raw, nil
}

// findCertificates locates the SignedData.certificates [0] IMPLICIT field.
func findCertificates(signedData []*derNode) ([]*derNode, error) {
	for _, n := range signedData {
		if n.isContextTag(0) {
			if len(n.Children) > 0 {
				return n.Children, nil
			}
			if parsed, err := parseDER(n.Raw); err == nil {
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("pkcs7: certificates field not found")
}

func findCertBySerial(certs []*derNode, target *big.Int) ([]*derNode, error) {
	for _, cert := range certs {
		if !cert.isUniversal(tagSequence) || len(cert.Children) == 0 {
			continue
		}
		tbs := cert.Children[0]
		var fields []*derNode
		if tbs.isContextTag(0) {
			// explicit version tag precedes serialNumber; fall back to the
			// certificate's own children, which include the version tag.
			fields = cert.Children
		} else if tbs.isUniversal(tagSequence) {
			fields = tbs.Children
		} else {
			continue
		}
		if len(fields) < 2 || !fields[1].isUniversal(tagInteger) {
			continue
		}
		serial := new(big.Int).SetBytes(fields[1].Raw)
		if serial.Cmp(target) == 0 {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("pkcs7: no certificate matching signer serial number")
}

func findSPKI(tbsFields []*derNode) (*derNode, error) {
	for _, f := range tbsFields {
		if !f.isUniversal(tagSequence) || len(f.Children) < 2 {
			continue
		}
		alg := f.Children[0]
		if alg.isUniversal(tagSequence) && len(alg.Children) > 0 && oidEquals(alg.Children[0], oidRSAEncryption) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("pkcs7: subjectPublicKeyInfo not found")
}
