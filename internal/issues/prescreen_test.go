package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreScreen_MissingPersona(t *testing.T) {
	got := PreScreen("Users should be able to reset their password")

	require.Len(t, got, 1)
	assert.Equal(t, AmbiguousInput, got[0].Category)
	assert.Equal(t, SourcePreScreen, got[0].Source)
	assert.Contains(t, got[0].Detail, "missing persona")
	assert.Contains(t, got[0].Detail, "Users should be able to reset their password")
	assert.NotContains(t, got[0].Detail, "end user should")
}

func TestPreScreen(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     int
	}{
		{"named persona", "Admins should be able to deactivate a user account.", 0},
		{"as persona", "As admin, I can deactivate a user account.", 0},
		{"the user", "The user must be able to export a report.", 1},
		{"end users", "End users can download invoices.", 1},
		{"everyone", "Everyone will see the banner.", 1},
		{"list items", "- R1: Users can sign in\n2. Customers can sign out\n3) They should receive a receipt", 2},
		{"two sentences one line", "Billing managers can issue refunds. Users can request refunds.", 1},
		{"duplicate", "Users can log in.\nUsers can log in.", 1},
		{"system requirement", "The system should retain audit logs for 90 days.", 0},
		{"system lets users", "The system should let users reset their password.", 1},
		{"allow users to", "The portal must allow end users to download invoices.", 1},
		{"enables a named persona", "The console enables administrators to lock accounts.", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, PreScreen(tt.document), tt.want)
		})
	}
}
