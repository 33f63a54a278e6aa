package cache

import (
	"testing"
	"time"
)

func TestEntry_IsLive(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newEntry("google.com", "172.217.14.7", now, time.Second)

	tests := []struct {
		name string
		at   time.Time
		live bool
	}{
		{"at creation", now, true},
		{"just before expiry", now.Add(time.Second - time.Nanosecond), true},
		{"at expiry", now.Add(time.Second), false},
		{"after expiry", now.Add(2 * time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.IsLive(tt.at); got != tt.live {
				t.Fatalf("IsLive(%v) = %v, want %v", tt.at, got, tt.live)
			}
		})
	}
}
