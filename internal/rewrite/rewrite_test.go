package rewrite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSdRuleApply(t *testing.T) {
	for _, tc := range []struct {
		name  string
		rule  SdRule
		input string
		want  string
	}{
		{
			name:  "remaster suffix stripped",
			rule:  SdRule{Find: `^(.*) - \d{4} Remaster$`, Replace: "$1"},
			input: "Hey Jude - 2015 Remaster",
			want:  "Hey Jude",
		},
		{
			name:  "no match leaves input alone",
			rule:  SdRule{Find: `^(.*) - \d{4} Remaster$`, Replace: "$1"},
			input: "Hey Jude",
			want:  "Hey Jude",
		},
		{
			name:  "ft to feat",
			rule:  SdRule{Find: `^(.+) ft\. (.+)$`, Replace: "$1 feat. $2"},
			input: "Artist ft. Guest",
			want:  "Artist feat. Guest",
		},
		{
			name:  "named capture groups",
			rule:  SdRule{Find: `(?P<artist>.+) - (?P<song>.+)`, Replace: "${song} by ${artist}"},
			input: "Queen - Bohemian Rhapsody",
			want:  "Bohemian Rhapsody by Queen",
		},
		{
			name:  "escaped dollar sign preserved",
			rule:  SdRule{Find: `^(.+)$`, Replace: `\$$1`},
			input: "5",
			want:  "$5",
		},
		{
			name:  "dollar-dollar escape preserved",
			rule:  SdRule{Find: `^(.+)$`, Replace: `$$$1`},
			input: "5",
			want:  "$5",
		},
		{
			name:  "escaped braces preserved",
			rule:  SdRule{Find: `^(.+)$`, Replace: `\{$1\}`},
			input: "x",
			want:  "{x}",
		},
		{
			name:  "escaped backslash preserved",
			rule:  SdRule{Find: `^(.+)$`, Replace: `\\$1`},
			input: "x",
			want:  `\x`,
		},
		{
			name:  "whole string replaced even when match is partial",
			rule:  SdRule{Find: `ft\.`, Replace: "REPLACED"},
			input: "Vulfpeck ft. Antwaun Stanley",
			want:  "REPLACED",
		},
		{
			name:  "case insensitive flag",
			rule:  SdRule{Find: `^hey jude$`, Replace: "matched", Flags: "i"},
			input: "Hey Jude",
			want:  "matched",
		},
		{
			name:  "explicit case sensitive flag keeps case significant",
			rule:  SdRule{Find: `^hey jude$`, Replace: "matched", Flags: "c"},
			input: "Hey Jude",
			want:  "Hey Jude", // no match, so unchanged
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.rule.Apply(tc.input)
			if err != nil {
				t.Fatalf("Apply(%q) returned error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("Apply(%q) = %q; want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSdRuleApplyDeterministic(t *testing.T) {
	r := SdRule{Find: `^(.*) - \d{4} Remaster$`, Replace: "$1"}
	const input = "Hey Jude - 2015 Remaster"
	first, err := r.Apply(input)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		got, err := r.Apply(input)
		if err != nil {
			t.Fatal(err)
		}
		if got != first {
			t.Errorf("Apply is not deterministic: got %q, first was %q", got, first)
		}
	}
}

func TestSdRuleInvalidRegex(t *testing.T) {
	r := SdRule{Find: `(unterminated`, Replace: "x"}
	if _, err := r.Apply("anything"); err == nil {
		t.Error("Apply with invalid regex succeeded; want error")
	}
	var re *RegexError
	_, err := r.Apply("anything")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errorsAs(err, &re) {
		t.Errorf("error %v is not a *RegexError", err)
	}
}

func errorsAs(err error, target **RegexError) bool {
	if re, ok := err.(*RegexError); ok {
		*target = re
		return true
	}
	return false
}

func TestSdRuleMatchesVsWouldModify(t *testing.T) {
	// A catch-all ".*" -> "Target" rule matches any input, but if the input
	// is already "Target" applying it is a no-op.
	r := SdRule{Find: `.*`, Replace: "Target"}

	matches, err := r.Matches("Target")
	if err != nil {
		t.Fatal(err)
	}
	if !matches {
		t.Error("Matches(\"Target\") = false; want true")
	}

	modified, err := r.WouldModify("Target")
	if err != nil {
		t.Fatal(err)
	}
	if modified {
		t.Error("WouldModify(\"Target\") = true; want false (already equal)")
	}

	modified, err = r.WouldModify("Other")
	if err != nil {
		t.Fatal(err)
	}
	if !modified {
		t.Error("WouldModify(\"Other\") = false; want true")
	}
}

func TestExpandCaptureGroupOrdering(t *testing.T) {
	// Regression test: masking must run \\ before \$ / $$ before \{ / \}, in
	// that exact order, or a replacement like \\${1} would be mis-expanded.
	r := SdRule{Find: `^(.+)$`, Replace: `\\` + "${1}"}
	got, err := r.Apply("x")
	if err != nil {
		t.Fatal(err)
	}
	want := `\x`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply mismatch (-want +got):\n%s", diff)
	}
}
