package slug

import (
	"strings"
	"testing"
)

func TestMake(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Ahmedabad HQ":     "ahmedabad-hq",
		"  --Pune__2--  ":  "pune-2",
		"user@example.com": "user-example-com",
		"Zürich":           "z-rich",
		"!!!":              "unnamed",
	}
	for in, want := range cases {
		if got := Make(in); got != want {
			t.Fatalf("Make(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Make(strings.Repeat("ab-", 40)); len(got) > 64 || strings.HasSuffix(got, "-") {
		t.Fatalf("long input not trimmed: %q", got)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"hq", "ahmedabad-1"} {
		if !Valid(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "HQ", "a--b", "-a", "a b"} {
		if Valid(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}
