package verifier

import (
	"bytes"
	"testing"
)

func TestParseDER_RoundTripInteger(t *testing.T) {
	encoded := derInteger([]byte{0x01, 0x00, 0x01}) // 65537
	node, err := parseDEROne(encoded)
	if err != nil {
		t.Fatalf("parseDEROne: %v", err)
	}
	if !node.isUniversal(tagInteger) {
		t.Fatalf("expected INTEGER tag, got class=%d tag=%d", node.Class, node.Tag)
	}
	if !bytes.Equal(node.Raw, []byte{0x01, 0x00, 0x01}) {
		t.Errorf("integer content mismatch: got %x", node.Raw)
	}
}

func TestParseDER_NestedSequence(t *testing.T) {
	modulus := []byte{0x00, 0xAB, 0xCD}
	exponent := []byte{0x01, 0x00, 0x01}
	body := append(derInteger(modulus), derInteger(exponent)...)
	seq := derSequence(body)

	node, err := parseDEROne(seq)
	if err != nil {
		t.Fatalf("parseDEROne: %v", err)
	}
	if !node.isUniversal(tagSequence) {
		t.Fatalf("expected SEQUENCE")
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if !bytes.Equal(node.Children[0].Raw, modulus) {
		t.Errorf("modulus mismatch: got %x want %x", node.Children[0].Raw, modulus)
	}
	if !bytes.Equal(node.Children[1].Raw, exponent) {
		t.Errorf("exponent mismatch: got %x want %x", node.Children[1].Raw, exponent)
	}
}

func TestParseDER_LongFormLength(t *testing.T) {
	content := bytes.Repeat([]byte{0x42}, 200) // forces long-form length (0x81)
	encoded := derTLV(0x04, content)

	node, err := parseDEROne(encoded)
	if err != nil {
		t.Fatalf("parseDEROne: %v", err)
	}
	if !bytes.Equal(node.Raw, content) {
		t.Errorf("content length mismatch: got %d bytes, want %d", len(node.Raw), len(content))
	}
}

func TestBuildSPKIDER_StructuralShape(t *testing.T) {
	modulus := append([]byte{0x00}, bytes.Repeat([]byte{0xFF}, 256)...) // typical 2048-bit RSA modulus w/ sign pad
	exponent := []byte{0x01, 0x00, 0x01}

	spki := buildSPKIDER(modulus, exponent)

	top, err := parseDEROne(spki)
	if err != nil {
		t.Fatalf("parse rebuilt SPKI: %v", err)
	}
	if !top.isUniversal(tagSequence) || len(top.Children) != 2 {
		t.Fatalf("SPKI must be a 2-element SEQUENCE, got %d children", len(top.Children))
	}

	alg := top.Children[0]
	if !alg.isUniversal(tagSequence) || len(alg.Children) != 2 {
		t.Fatalf("AlgorithmIdentifier must be a 2-element SEQUENCE")
	}
	if !oidEquals(alg.Children[0], oidRSAEncryption) {
		t.Error("AlgorithmIdentifier OID is not rsaEncryption")
	}
	if !alg.Children[1].isUniversal(tagNull) {
		t.Error("AlgorithmIdentifier must carry a NULL parameter")
	}

	bits := top.Children[1]
	if !bits.isUniversal(tagBitString) {
		t.Fatalf("expected BIT STRING subjectPublicKey")
	}
	if bits.Raw[0] != 0x00 {
		t.Errorf("BIT STRING unused-bits byte must be 0, got %x", bits.Raw[0])
	}

	inner, err := parseDEROne(bits.Raw[1:])
	if err != nil {
		t.Fatalf("parse inner RSAPublicKey: %v", err)
	}
	if !inner.isUniversal(tagSequence) || len(inner.Children) != 2 {
		t.Fatalf("RSAPublicKey must be a 2-element SEQUENCE")
	}
	if !bytes.Equal(inner.Children[0].Raw, modulus) {
		t.Error("recovered modulus does not match input")
	}
	if !bytes.Equal(inner.Children[1].Raw, exponent) {
		t.Error("recovered exponent does not match input")
	}
}
