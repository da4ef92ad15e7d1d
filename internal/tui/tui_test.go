package tui

import "testing"

func TestResumeCommand(t *testing.T) {
	tests := []struct {
		source, id, want string
	}{
		{"claude", "019bf9a3-d433-7fc1-8214-b82613804964", "claude --resume 019bf9a3-d433-7fc1-8214-b82613804964"},
		{"codex", "019bf9a3-d433-7fc1-8214-b82613804964", "codex resume 019bf9a3-d433-7fc1-8214-b82613804964"},
		{"opencode", "ses_abc123", "opencode --session ses_abc123"},
		{"unknown", "id", "id"},
	}
	for _, tc := range tests {
		if got := resumeCommand(tc.source, tc.id); got != tc.want {
			t.Errorf("resumeCommand(%q, %q) = %q, want %q", tc.source, tc.id, got, tc.want)
		}
	}
}
