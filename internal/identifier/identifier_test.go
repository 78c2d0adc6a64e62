package identifier

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Emails are returned untouched, even ugly ones.
		{"jane.doe@example.com", "jane.doe@example.com"},
		{"Jane+Filter@Example.COM", "Jane+Filter@Example.COM"},

		// Textual identifiers (carrier short codes etc.) are untouched.
		{"Amazon", "Amazon"},
		{"googleplay", "googleplay"},
		{"_service", "_service"},

		// Phone numbers lose their formatting.
		{"5551234567", "5551234567"},
		{"(555) 123-4567", "5551234567"},
		{"555.123.4567", "5551234567"},

		// More than 10 digits keeps exactly the last 10.
		{"+15551234567", "5551234567"},
		{"+1 (555) 123-4567", "5551234567"},
		{"0115551234567", "5551234567"},

		// Short codes made of digits stay as digits.
		{"86753", "86753"},

		{"", ""},
	}

	for _, test := range tests {
		if got := Normalize(test.input); got != test.expected {
			t.Errorf("Normalize(%q) = %q, want %q", test.input, got, test.expected)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+15551234567", "jane@example.com", "Amazon", "(555) 123-4567"}
	for _, input := range inputs {
		once := Normalize(input)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize is not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}
