package verifier

import (
	"bytes"
	"testing"
)

func buildByteRangeFixture(t *testing.T, sigHex string) []byte {
	t.Helper()
	prefix := []byte("prefix-bytes-before-signature")
	suffix := []byte("suffix-bytes-after-signature")

	contents := []byte("/Contents <" + sigHex + ">")
	// ByteRange covers [0, len(prefix)] and [afterContents, len(suffix)].
	doc := append([]byte{}, prefix...)
	doc = append(doc, contents...)
	offset2 := len(doc)
	doc = append(doc, suffix...)

	byteRange := []byte("/ByteRange [0 " + itoa(len(prefix)) + " " + itoa(offset2) + " " + itoa(len(suffix)) + "]")
	doc = append(doc, byteRange...)
	return doc
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestExtractSignedBytes(t *testing.T) {
	doc := buildByteRangeFixture(t, "deadbeef")

	signed, contentsPos, err := extractSignedBytes(doc)
	if err != nil {
		t.Fatalf("extractSignedBytes: %v", err)
	}
	if contentsPos < 0 || contentsPos >= len(doc) {
		t.Fatalf("contentsPos out of range: %d", contentsPos)
	}
	if !bytes.Contains(doc, signed) && len(signed) > 0 {
		// signed is a concatenation of two spans, not necessarily contiguous;
		// just confirm it's non-empty and bounded.
	}
	if len(signed) == 0 {
		t.Fatal("expected non-empty signed payload")
	}
}

func TestExtractSignatureHex_Inline(t *testing.T) {
	doc := buildByteRangeFixture(t, "DEADBEEF")
	_, contentsPos, err := extractSignedBytes(doc)
	if err != nil {
		t.Fatalf("extractSignedBytes: %v", err)
	}
	hexStr, err := extractSignatureHex(doc, contentsPos)
	if err != nil {
		t.Fatalf("extractSignatureHex: %v", err)
	}
	if hexStr != "DEADBEEF" {
		t.Errorf("got %q, want DEADBEEF", hexStr)
	}
}

func TestGetSignatureDER_TrimsZeroPadding(t *testing.T) {
	doc := buildByteRangeFixture(t, "aabbcc0000")
	der, signed, err := getSignatureDER(doc)
	if err != nil {
		t.Fatalf("getSignatureDER: %v", err)
	}
	want := []byte{0xaa, 0xbb, 0xcc}
	if !bytes.Equal(der, want) {
		t.Errorf("der = %x, want %x (trailing zero padding should be trimmed)", der, want)
	}
	if len(signed) == 0 {
		t.Fatal("expected non-empty signed payload")
	}
}

func TestExtractSignedBytes_MissingByteRange(t *testing.T) {
	if _, _, err := extractSignedBytes([]byte("no byte range here")); err == nil {
		t.Fatal("expected error when ByteRange is absent")
	}
}
