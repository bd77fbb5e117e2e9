package services

import "testing"

func TestSanitizeText(t *testing.T) {
	ts := NewTextSanitizer()

	testCases := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"Jean\x00 Dupont\x07", "Jean Dupont"},
		{"ligne 1\n\n\tligne 2", "ligne 1 ligne 2"},
		{"zero\u200bwidth\ufeff", "zerowidth"},
	}

	for _, tc := range testCases {
		if got := ts.SanitizeText(tc.input); got != tc.expected {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestPreview(t *testing.T) {
	ts := NewTextSanitizer()

	testCases := []struct {
		input    string
		max      int
		expected string
	}{
		{"Hello World", 5, "Hello..."},
		{"Short", 10, "Short"},
		{"Éléphant", 3, "Élé..."},
		{"", 5, ""},
		{"Unlimited", 0, "Unlimited"},
	}

	for _, tc := range testCases {
		if got := ts.Preview(tc.input, tc.max); got != tc.expected {
			t.Errorf("Preview(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.expected)
		}
	}
}
