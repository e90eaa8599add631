package rolecreds_test

import (
	"testing"
	"time"

	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
)

func Test_ReloadBeforeExpiry_with(t *testing.T) {
	ttests := map[string]struct {
		expiresIn    time.Duration
		reloadBefore int
		expect       bool
	}{
		"enough time before reload required": {
			305 * time.Second, 300, false,
		},
		"needs to refresh": {
			299 * time.Second, 300, true,
		},
		"exactly on the boundary counts as stale": {
			300 * time.Second, 300, true,
		},
		"already expired": {
			-15 * time.Minute, 300, true,
		},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			expiry := time.Now().Add(tt.expiresIn)
			if got := rolecreds.ReloadBeforeExpiry(expiry, tt.reloadBefore); got != tt.expect {
				t.Errorf("expected %v, got: %v", tt.expect, got)
			}
		})
	}
}
