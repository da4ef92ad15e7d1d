package parser

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"empty", "", 5, ""},
		{"zero max", "hello", 0, ""},
		// é is 2 bytes; cutting at 3 would split the second é
		{"multibyte boundary", "ééé", 3, "é"},
		{"multibyte whole runes", "ééé", 4, "éé"},
		// 4-byte emoji must not be split anywhere
		{"emoji", "a😀b", 2, "a"},
		{"emoji kept", "a😀b", 5, "a😀"},
		{"cjk", "日本語", 7, "日本"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.in, tc.max)
			if got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
			// truncating an already-truncated string is a no-op
			if again := Truncate(got, tc.max); again != got {
				t.Errorf("Truncate not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestTruncateEllipsis(t *testing.T) {
	if got := truncateEllipsis("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateEllipsis("hello world", 5); got != "hello..." {
		t.Errorf("got %q", got)
	}
}
