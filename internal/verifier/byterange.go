package verifier

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// maxReceiptBytes is the input size ceiling from the component contract:
// "A byte sequence claimed to be a signed PDF-format receipt (≤10 MiB)".
const maxReceiptBytes = 10 * 1024 * 1024

// extractSignedBytes locates the /ByteRange directive, validates its
// bounds, and returns the concatenation of the two spans it names — the
// "signed payload" whose digest the PKCS#7 signature covers — along with
// the byte offset of the nearby /Contents token.
func extractSignedBytes(pdf []byte) (signedBytes []byte, contentsPos int, err error) {
	brPos := bytes.Index(pdf, []byte("/ByteRange"))
	if brPos < 0 {
		return nil, 0, fmt.Errorf("ByteRange not found")
	}
	open := bytes.IndexByte(pdf[brPos:], '[')
	if open < 0 {
		return nil, 0, fmt.Errorf("ByteRange '[' not found")
	}
	brStart := brPos + open + 1
	closeRel := bytes.IndexByte(pdf[brStart:], ']')
	if closeRel < 0 {
		return nil, 0, fmt.Errorf("ByteRange ']' not found")
	}
	brEnd := brStart + closeRel

	fields := strings.Fields(string(pdf[brStart:brEnd]))
	nums := make([]int, 0, 4)
	for _, f := range fields {
		n, convErr := strconv.Atoi(f)
		if convErr != nil {
			continue
		}
		nums = append(nums, n)
		if len(nums) == 4 {
			break
		}
	}
	if len(nums) != 4 {
		return nil, 0, fmt.Errorf("expected exactly 4 numbers inside ByteRange")
	}
	offset1, len1, offset2, len2 := nums[0], nums[1], nums[2], nums[3]
	if offset1 < 0 || len1 < 0 || offset2 < 0 || len2 < 0 ||
		offset1+len1 > len(pdf) || offset2+len2 > len(pdf) {
		return nil, 0, fmt.Errorf("ByteRange values out of bounds")
	}

	// /Contents normally precedes /ByteRange in the signature dictionary;
	// search backward first, then forward, as producers vary the order.
	pos := bytes.LastIndex(pdf[:brPos], []byte("/Contents"))
	if pos < 0 {
		if fwd := bytes.Index(pdf[brPos:], []byte("/Contents")); fwd >= 0 {
			pos = brPos + fwd
		}
	}
	if pos < 0 {
		return nil, 0, fmt.Errorf("Contents not found near ByteRange")
	}

	out := make([]byte, 0, len1+len2)
	out = append(out, pdf[offset1:offset1+len1]...)
	out = append(out, pdf[offset2:offset2+len2]...)
	return out, pos, nil
}

// extractSignatureHex finds the /Contents value, either an inline
// <hex-string> or an indirect reference to a stream object, and returns its
// (possibly whitespace-padded) hex digits.
func extractSignatureHex(pdf []byte, contentsPos int) (string, error) {
	slice := pdf[contentsPos:]

	if hexStr, ok, err := extractInlineContentsHex(slice); err != nil {
		return "", err
	} else if ok {
		return hexStr, nil
	}
	return extractIndirectContentsHex(pdf, slice)
}

func extractInlineContentsHex(slice []byte) (string, bool, error) {
	start := bytes.IndexByte(slice, '<')
	if start < 0 {
		return "", false, nil
	}
	end := -1
	for i, ch := range slice[start+1:] {
		switch {
		case ch == '>':
			end = i + start + 1
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
			continue
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			continue
		default:
			return "", false, fmt.Errorf("invalid character in Contents hex")
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return "", false, fmt.Errorf("end '>' not found after Contents")
	}
	clean := stripWhitespace(slice[start+1 : end])
	if len(clean) == 0 {
		return "", false, fmt.Errorf("empty Contents hex")
	}
	return string(clean), true, nil
}

func extractIndirectContentsHex(pdf []byte, slice []byte) (string, error) {
	refStart := -1
	for i, b := range slice {
		if b >= '0' && b <= '9' {
			refStart = i
			break
		}
	}
	if refStart < 0 {
		return "", fmt.Errorf("Contents reference missing object number")
	}
	rRel := bytes.IndexByte(slice[refStart:], 'R')
	if rRel < 0 {
		return "", fmt.Errorf("Contents reference missing 'R'")
	}
	refEnd := refStart + rRel + 1
	fields := strings.Fields(string(slice[refStart:refEnd]))
	if len(fields) < 2 {
		return "", fmt.Errorf("invalid Contents object reference")
	}
	objNum, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", fmt.Errorf("invalid Contents object number")
	}
	genNum, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", fmt.Errorf("invalid Contents generation number")
	}

	pattern := []byte(fmt.Sprintf("%d %d obj", objNum, genNum))
	objPos := bytes.Index(pdf, pattern)
	if objPos < 0 {
		return "", fmt.Errorf("Contents object not found")
	}

	streamRel := bytes.Index(pdf[objPos:], []byte("stream"))
	if streamRel < 0 {
		return "", fmt.Errorf("stream keyword not found in Contents object")
	}
	streamStart := objPos + streamRel + len("stream")
	endRel := bytes.Index(pdf[streamStart:], []byte("endstream"))
	if endRel < 0 {
		return "", fmt.Errorf("endstream not found in Contents object")
	}
	streamEnd := streamStart + endRel

	trimmed := bytes.TrimSpace(pdf[streamStart:streamEnd])
	clean := stripWhitespace(trimmed)
	if len(clean) == 0 {
		return "", fmt.Errorf("empty contents stream")
	}
	return string(clean), nil
}

func stripWhitespace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n', '\f', '\v':
			continue
		default:
			out = append(out, c)
		}
	}
	return out
}

// getSignatureDER returns (signatureDER, signedPayload) for pdf, decoding
// the hex Contents and trimming the trailing zero-padding PDF signature
// placeholders commonly carry.
func getSignatureDER(pdf []byte) ([]byte, []byte, error) {
	if len(pdf) > maxReceiptBytes {
		return nil, nil, fmt.Errorf("receipt exceeds %d byte limit", maxReceiptBytes)
	}
	signedBytes, contentsPos, err := extractSignedBytes(pdf)
	if err != nil {
		return nil, nil, err
	}
	hexStr, err := extractSignatureHex(pdf, contentsPos)
	if err != nil {
		return nil, nil, err
	}
	clean := stripWhitespace([]byte(hexStr))
	der, err := hex.DecodeString(string(clean))
	if err != nil {
		return nil, nil, fmt.Errorf("Contents hex decode: %w", err)
	}
	for len(der) > 0 && der[len(der)-1] == 0 {
		der = der[:len(der)-1]
	}
	return der, signedBytes, nil
}
