package verifier

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// objectPattern matches "N G obj ... endobj" bodies. PDF receipts from the
// payment providers this verifier targets are small, single-revision,
// non-linearized documents, so a scan over every indirect object is
// sufficient without building a full cross-reference table — the same
// shortcut the signature's ByteRange/Contents lookup takes.
var objectPattern = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj(.*?)endobj`)

type pdfObject struct {
	num  int
	body []byte
}

func scanObjects(pdf []byte) []pdfObject {
	matches := objectPattern.FindAllSubmatch(pdf, -1)
	objs := make([]pdfObject, 0, len(matches))
	for _, m := range matches {
		num, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		objs = append(objs, pdfObject{num: num, body: m[3]})
	}
	return objs
}

// extractPageText decodes every page's content stream(s) and returns one
// string per page, in object-scan order. Only the first page is used by
// the commitment pipeline, but all are returned for completeness (e.g. a
// manual audit dump).
func extractPageText(pdf []byte) ([]string, error) {
	objs := scanObjects(pdf)
	byNum := make(map[int]pdfObject, len(objs))
	for _, o := range objs {
		byNum[o.num] = o
	}

	toUnicode := buildGlobalToUnicodeMap(objs, byNum)

	var pages []string
	for _, o := range objs {
		if !looksLikePageObject(o.body) {
			continue
		}
		content, err := pageContentBytes(o.body, byNum)
		if err != nil {
			continue
		}
		pages = append(pages, renderContentStream(content, toUnicode))
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page objects found")
	}
	return pages, nil
}

func looksLikePageObject(body []byte) bool {
	if !bytes.Contains(body, []byte("/Type")) {
		return false
	}
	// "/Type /Page" but not "/Type /Pages" (the tree node).
	idx := bytes.Index(body, []byte("/Page"))
	if idx < 0 {
		return false
	}
	rest := body[idx+len("/Page"):]
	return len(rest) == 0 || !bytes.HasPrefix(rest, []byte("s"))
}

var contentsRefPattern = regexp.MustCompile(`/Contents\s+(\d+)\s+(\d+)\s+R`)
var contentsArrayPattern = regexp.MustCompile(`/Contents\s*\[(.*?)\]`)
var refPattern = regexp.MustCompile(`(\d+)\s+(\d+)\s+R`)

func pageContentBytes(pageDict []byte, byNum map[int]pdfObject) ([]byte, error) {
	if m := contentsArrayPattern.FindSubmatch(pageDict); m != nil {
		var buf bytes.Buffer
		for _, ref := range refPattern.FindAllSubmatch(m[1], -1) {
			num, _ := strconv.Atoi(string(ref[1]))
			if obj, ok := byNum[num]; ok {
				stream, err := decodeStream(obj.body)
				if err == nil {
					buf.Write(stream)
					buf.WriteByte('\n')
				}
			}
		}
		return buf.Bytes(), nil
	}
	if m := contentsRefPattern.FindSubmatch(pageDict); m != nil {
		num, _ := strconv.Atoi(string(m[1]))
		obj, ok := byNum[num]
		if !ok {
			return nil, fmt.Errorf("Contents object %d not found", num)
		}
		return decodeStream(obj.body)
	}
	return nil, fmt.Errorf("page has no /Contents")
}

var streamPattern = regexp.MustCompile(`(?s)stream\r?\n(.*?)endstream`)

func decodeStream(objBody []byte) ([]byte, error) {
	m := streamPattern.FindSubmatch(objBody)
	if m == nil {
		return nil, fmt.Errorf("no stream found")
	}
	raw := m[1]
	if bytes.Contains(objBody[:streamKeywordIndex(objBody)], []byte("FlateDecode")) {
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return raw, nil // some producers write corrupt/absent zlib headers; fall back to raw
		}
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return raw, nil
		}
		return decoded, nil
	}
	return raw, nil
}

func streamKeywordIndex(objBody []byte) int {
	if i := bytes.Index(objBody, []byte("stream")); i >= 0 {
		return i
	}
	return len(objBody)
}

// renderContentStream tokenizes a decoded page content stream and
// reconstructs its text, one logical line per text-positioning operator
// (Td, TD, T*, ' or "), matching how these receipt layouts place one
// semantic field per PDF text line.
func renderContentStream(content []byte, toUnicode map[uint16]string) string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
		} else if len(lines) > 0 {
			lines = append(lines, "")
		}
	}

	tok := newContentTokenizer(content)
	for {
		t, ok := tok.next()
		if !ok {
			break
		}
		switch t.kind {
		case tokOperator:
			switch t.text {
			case "Td", "TD", "T*", "'", `"`:
				flush()
			case "Tj":
				if len(t.operands) == 1 {
					cur.WriteString(decodeShowString(t.operands[0], toUnicode))
				}
			case "TJ":
				for _, part := range t.arrayOperands {
					if part.isString {
						cur.WriteString(decodeShowString(part.str, toUnicode))
					}
				}
			}
		}
	}
	flush()
	return strings.Join(lines, "\n")
}

// decodeShowString converts the raw bytes of a Tj/TJ string operand into
// text. Literal and hex string operands are treated alike: when a ToUnicode
// table is present and the operand has an even length, its bytes are read
// two at a time as CID codes and mapped through that table, which is how
// this format's CJK name fields are encoded; if the length is odd or any
// code is missing from the table, the raw bytes are returned as they are.
func decodeShowString(raw []byte, toUnicode map[uint16]string) string {
	if len(toUnicode) == 0 || len(raw)%2 != 0 {
		return string(raw)
	}
	var sb strings.Builder
	allMapped := true
	for i := 0; i+1 < len(raw); i += 2 {
		code := uint16(raw[i])<<8 | uint16(raw[i+1])
		if mapped, ok := toUnicode[code]; ok {
			sb.WriteString(mapped)
		} else {
			allMapped = false
			break
		}
	}
	if allMapped {
		return sb.String()
	}
	return string(raw)
}

// buildGlobalToUnicodeMap merges every /ToUnicode CMap stream found
// anywhere in the document into one code->text table. Associating the
// correct CMap with the correct font resource per text run would require
// walking the page's /Resources /Font dictionary and the current Tf
// operator; these receipts have a small, fixed font set per page, so a
// merged table is a deliberate simplification that avoids that bookkeeping
// at the cost of precision on documents with colliding CID codes across
// distinct fonts.
func buildGlobalToUnicodeMap(objs []pdfObject, byNum map[int]pdfObject) map[uint16]string {
	result := make(map[uint16]string)
	toUnicodeRefPattern := regexp.MustCompile(`/ToUnicode\s+(\d+)\s+(\d+)\s+R`)
	for _, o := range objs {
		m := toUnicodeRefPattern.FindSubmatch(o.body)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(string(m[1]))
		cmapObj, ok := byNum[num]
		if !ok {
			continue
		}
		stream, err := decodeStream(cmapObj.body)
		if err != nil {
			continue
		}
		parseToUnicodeCMap(stream, result)
	}
	return result
}

var bfCharPattern = regexp.MustCompile(`(?s)beginbfchar(.*?)endbfchar`)
var bfRangePattern = regexp.MustCompile(`(?s)beginbfrange(.*?)endbfrange`)
var hexPairPattern = regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*<([0-9A-Fa-f]+)>`)

func parseToUnicodeCMap(cmap []byte, out map[uint16]string) {
	for _, block := range bfCharPattern.FindAllSubmatch(cmap, -1) {
		for _, pair := range hexPairPattern.FindAllSubmatch(block[1], -1) {
			code, ok1 := hexToUint16(pair[1])
			text, ok2 := hexToUTF16Text(pair[2])
			if ok1 && ok2 {
				out[code] = text
			}
		}
	}
	for _, block := range bfRangePattern.FindAllSubmatch(cmap, -1) {
		triples := regexp.MustCompile(`<([0-9A-Fa-f]+)>\s*<([0-9A-Fa-f]+)>\s*<([0-9A-Fa-f]+)>`).FindAllSubmatch(block[1], -1)
		for _, t := range triples {
			lo, ok1 := hexToUint16(t[1])
			hi, ok2 := hexToUint16(t[2])
			baseText, ok3 := hexToUTF16Text(t[3])
			if !ok1 || !ok2 || !ok3 || len(baseText) == 0 {
				continue
			}
			baseRunes := []rune(baseText)
			base := baseRunes[len(baseRunes)-1]
			for code := lo; code <= hi && code >= lo; code++ {
				r := base + rune(code-lo)
				out[code] = string(r)
				if code == 0xFFFF {
					break
				}
			}
		}
	}
}

func hexToUint16(b []byte) (uint16, bool) {
	n, err := strconv.ParseUint(string(b), 16, 32)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

func hexToUTF16Text(b []byte) (string, bool) {
	if len(b)%4 != 0 {
		return "", false
	}
	var units []uint16
	for i := 0; i+3 < len(b); i += 4 {
		n, err := strconv.ParseUint(string(b[i:i+4]), 16, 32)
		if err != nil {
			return "", false
		}
		units = append(units, uint16(n))
	}
	runes := utf16Decode(units)
	return string(runes), true
}

func utf16Decode(units []uint16) []rune {
	var out []rune
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			u2 := units[i+1]
			if u2 >= 0xDC00 && u2 <= 0xDFFF {
				r := ((rune(u) - 0xD800) << 10) + (rune(u2) - 0xDC00) + 0x10000
				out = append(out, r)
				i++
				continue
			}
		}
		out = append(out, rune(u))
	}
	return out
}
