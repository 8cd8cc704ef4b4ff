package phone

import "testing"

func TestNormalize(t *testing.T) {
	for _, raw := range []string{"9876543210", "+91 98765 43210", "+91-98765-43210"} {
		got, err := Normalize(raw, "IN")
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if got != "+919876543210" {
			t.Fatalf("normalize %q: expected +919876543210, got %s", raw, got)
		}
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "12", "not a number"} {
		if _, err := Normalize(raw, ""); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
