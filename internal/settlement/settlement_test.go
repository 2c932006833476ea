package settlement

import (
	"strings"
	"testing"
)

func TestDivideBy100(t *testing.T) {
	cases := []struct{ in, want string }{
		{"720", "7.20"},
		{"5", "0.05"},
		{"1000000", "10000.00"},
	}
	for _, c := range cases {
		if got := divideBy100(c.in); got != c.want {
			t.Errorf("divideBy100(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestCommon32_FullWidthHex(t *testing.T) {
	id := "0x" + strings.Repeat("00", 31) + "3a"
	got := common32(id)
	if len(got) != 32 {
		t.Fatalf("len = %d, want 32", len(got))
	}
	if got[31] != 0x3a {
		t.Fatalf("got[31] = %x, want 0x3a", got[31])
	}
}

func TestCommon32_ShortValueRightAligned(t *testing.T) {
	got := common32("0x01")
	if len(got) != 32 {
		t.Fatalf("len = %d, want 32", len(got))
	}
	for i := 0; i < 31; i++ {
		if got[i] != 0 {
			t.Fatalf("expected leading zero padding, got %x at index %d", got[i], i)
		}
	}
	if got[31] != 0x01 {
		t.Fatalf("got[31] = %x, want 0x01", got[31])
	}
}

func TestInFlightSet_PreventsDoubleAdd(t *testing.T) {
	s := newInFlightSet()
	if !s.tryAdd("trade-1") {
		t.Fatal("first tryAdd should succeed")
	}
	if s.tryAdd("trade-1") {
		t.Fatal("second tryAdd for the same trade should fail while in flight")
	}
	s.remove("trade-1")
	if !s.tryAdd("trade-1") {
		t.Fatal("tryAdd should succeed again after remove")
	}
}

func TestInputCache_PutGetDelete(t *testing.T) {
	c := newInputCache()
	if _, ok := c.get("trade-1"); ok {
		t.Fatal("expected no entry before put")
	}
	c.put("trade-1", proverInput{receiptData: []byte("pdf")})
	in, ok := c.get("trade-1")
	if !ok || string(in.receiptData) != "pdf" {
		t.Fatal("expected cached entry to round-trip")
	}
	c.delete("trade-1")
	if _, ok := c.get("trade-1"); ok {
		t.Fatal("expected no entry after delete")
	}
}
