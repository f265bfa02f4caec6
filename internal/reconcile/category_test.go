package reconcile

import "testing"

func TestIsOutOfOffice(t *testing.T) {
	tests := []struct {
		category string
		expected bool
	}{
		{"", false},
		{"Interested", false},
		{"Not Interested", false},
		{"Out of Office", true},
		{"out of office", true},
		{"OOO", true},
		{"ooo until monday", true},
		{"Auto-reply: Out Of Office", true},
		{"Meeting Request", false},
	}

	for _, tc := range tests {
		result := IsOutOfOffice(tc.category)
		if result != tc.expected {
			t.Errorf("IsOutOfOffice(%q) = %v, expected %v", tc.category, result, tc.expected)
		}
	}
}
