package analytics

import (
	"testing"

	"github.com/admetrica/creativescope/internal/models"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("data:image/png;base64,abc", "runners aged 25-40", models.ObjectiveConversion)
	b := Fingerprint("data:image/png;base64,abc", "runners aged 25-40", models.ObjectiveConversion)
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("got fingerprint length %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("img", "targeting text here", models.ObjectiveConversion)

	cases := []struct {
		name string
		got  string
	}{
		{"image", Fingerprint("img2", "targeting text here", models.ObjectiveConversion)},
		{"targeting", Fingerprint("img", "different targeting", models.ObjectiveConversion)},
		{"objective", Fingerprint("img", "targeting text here", models.ObjectiveAwareness)},
	}
	for _, tc := range cases {
		if tc.got == base {
			t.Fatalf("changing %s did not change the fingerprint", tc.name)
		}
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	// Length prefixing: moving a byte across the field boundary must change
	// the fingerprint.
	a := Fingerprint("ab", "c", models.ObjectiveConversion)
	b := Fingerprint("a", "bc", models.ObjectiveConversion)
	if a == b {
		t.Fatal("field boundary shift produced identical fingerprints")
	}
}
