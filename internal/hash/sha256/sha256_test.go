package sha256

import (
	"strings"
	"testing"
)

func TestHasherHash(t *testing.T) {
	t.Parallel()

	h := New()
	tests := []struct {
		in   string
		want string
	}{
		{in: "hello world", want: "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{in: "", want: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, tt := range tests {
		got, err := h.Hash([]byte(tt.in))
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("Hash(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestHasherDistinguishesBodies(t *testing.T) {
	t.Parallel()

	h := New()
	a, _ := h.Hash([]byte("<html>a</html>"))
	b, _ := h.Hash([]byte("<html>b</html>"))
	if a == b {
		t.Fatal("expected different digests for different bodies")
	}
	if !strings.HasPrefix(a, Prefix) {
		t.Fatalf("expected %q prefix, got %s", Prefix, a)
	}
}
