package model

import "testing"

func TestEnvironmentStatusTerminal(t *testing.T) {
	tests := []struct {
		status   EnvironmentStatus
		terminal bool
	}{
		{EnvironmentCreating, false},
		{EnvironmentProvisioning, false},
		{EnvironmentReady, true},
		{EnvironmentFailed, true},
		{EnvironmentCancelled, true},
		{EnvironmentDeleting, false},
	}

	for _, test := range tests {
		if got := test.status.Terminal(); got != test.terminal {
			t.Errorf("Terminal(%s) = %t, expected %t", test.status, got, test.terminal)
		}
	}
}
