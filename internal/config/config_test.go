package config

import "testing"

func TestExpandHome(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"~/logs", "/home/u/logs"},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~", "~"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := expandHome(tc.in, "/home/u"); got != tc.want {
			t.Errorf("expandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
