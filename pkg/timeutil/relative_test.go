package timeutil

import (
	"testing"
	"time"
)

func TestRelativeTo(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"now", now, "just now"},
		{"sub-second", now.Add(-300 * time.Millisecond), "just now"},
		{"one second", now.Add(-time.Second), "1 second ago"},
		{"seconds", now.Add(-45 * time.Second), "45 seconds ago"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"one hour", now.Add(-time.Hour), "1 hour ago"},
		{"days", now.Add(-72 * time.Hour), "3 days ago"},
		{"future", now.Add(2 * time.Hour), "in 2 hours"},
		{"future minute", now.Add(time.Minute), "in 1 minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTo(tt.t, now); got != tt.want {
				t.Errorf("RelativeTo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelative(t *testing.T) {
	t.Parallel()
	if got := Relative(time.Now().Add(-10 * time.Minute)); got != "10 minutes ago" {
		t.Errorf("Relative() = %q", got)
	}
}
