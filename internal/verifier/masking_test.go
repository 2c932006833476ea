package verifier

import "testing"

func TestMaskAccountID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "alice@example.com", "ali***@example.com"},
		{"short email local", "ab@example.com", "ab***@example.com"},
		{"eleven digit phone", "13812345678", "138******78"},
		{"dashed id", "1234567-890", "12345*****90"},
		{"generic short", "ab", "ab***"},
		{"generic long", "account123456", "acc***"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MaskAccountID(tc.in)
			if got != tc.want {
				t.Errorf("MaskAccountID(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeAccountName(t *testing.T) {
	if got := NormalizeAccountName("zhang san"); got != "ZHANG SAN" {
		t.Errorf("ascii name not uppercased: got %q", got)
	}
	if got := NormalizeAccountName("张三"); got != "张三" {
		t.Errorf("non-ascii name should pass through unchanged, got %q", got)
	}
}
