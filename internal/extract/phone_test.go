package extract

import "testing"

func newNormalizer(t *testing.T) *PhoneNormalizer {
	t.Helper()
	n, err := NewPhoneNormalizer("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return n
}

func TestNormalize(t *testing.T) {
	n := newNormalizer(t)

	cases := []struct {
		raw  string
		want string
	}{
		{"+1 (512) 555-0123", "+15125550123"},
		{"00441234567890", "+441234567890"},
		{"(0512) 555 0123", "05125550123"},
		{"123456", "123456"},
		{"12345", ""},
		{"1234567890123456", ""},
		{"", ""},
		{"no digits here", ""},
		{"call +44 20 7946 0958 now", "+442079460958"},
	}

	for _, tc := range cases {
		if got := n.Normalize(tc.raw); got != tc.want {
			t.Fatalf("Normalize(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestNormalize_DigitBoundaries(t *testing.T) {
	n := newNormalizer(t)

	if got := n.Normalize("12345"); got != "" {
		t.Fatalf("expected 5 digits rejected, got %q", got)
	}
	if got := n.Normalize("123456"); got != "123456" {
		t.Fatalf("expected 6 digits accepted, got %q", got)
	}
	if got := n.Normalize("123456789012345"); got != "123456789012345" {
		t.Fatalf("expected 15 digits accepted, got %q", got)
	}
	if got := n.Normalize("1234567890123456"); got != "" {
		t.Fatalf("expected 16 digits rejected, got %q", got)
	}
}

func TestNewPhoneNormalizer_InvalidPattern(t *testing.T) {
	if _, err := NewPhoneNormalizer("["); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}
