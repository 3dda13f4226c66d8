package logger

import "testing"

func TestMaskIP(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "ipv4", in: "203.0.113.9", want: "203.0.*.*"},
		{name: "ipv6", in: "2001:db8:85a3:8d3:1319:8a2e:370:7348", want: "2001:db8:85a3:8d3:*:*:*:*"},
		{name: "empty", in: "", want: ""},
		{name: "garbage", in: "not-an-address", want: "***"},
		{name: "short ipv6", in: "::1", want: "***"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskIP(tc.in); got != tc.want {
				t.Fatalf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMaskString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short stays opaque", in: "abcd", want: "***"},
		{name: "account id keeps edges", in: "acct-12345", want: "ac***45"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskString(tc.in); got != tc.want {
				t.Fatalf("MaskString(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
