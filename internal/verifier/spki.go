package verifier

// buildSPKIDER reconstructs the canonical DER encoding of a
// SubjectPublicKeyInfo for an RSA key from its raw (modulus, exponent)
// INTEGER contents, per the fixed template in the component design:
//
//	SEQUENCE {
//	  AlgorithmIdentifier { rsaEncryption OID, NULL },
//	  BIT STRING { unused=0, SEQUENCE { INTEGER modulus, INTEGER exponent } }
//	}
func buildSPKIDER(modulus, exponent []byte) []byte {
	rsaBody := derInteger(modulus)
	rsaBody = append(rsaBody, derInteger(exponent)...)
	rsaSeq := derSequence(rsaBody)

	algBody := derOID(oidRSAEncryption)
	algBody = append(algBody, 0x05, 0x00) // NULL
	algSeq := derSequence(algBody)

	bitstring := make([]byte, 0, len(rsaSeq)+1)
	bitstring = append(bitstring, 0x00) // unused bits
	bitstring = append(bitstring, rsaSeq...)
	bitstringTLV := derTLV(0x03, bitstring)

	spkiBody := append(append([]byte{}, algSeq...), bitstringTLV...)
	return derSequence(spkiBody)
}

func derTLV(tag byte, content []byte) []byte {
	out := []byte{tag}
	out = appendDERLength(out, len(content))
	return append(out, content...)
}

func derSequence(body []byte) []byte { return derTLV(0x30, body) }

func derOID(oidContent []byte) []byte { return derTLV(0x06, oidContent) }

// derInteger re-emits a DER INTEGER from content bytes taken verbatim from
// an already-valid DER INTEGER (a certificate's modulus/exponent), which is
// always already minimally encoded.
func derInteger(content []byte) []byte { return derTLV(0x02, content) }
