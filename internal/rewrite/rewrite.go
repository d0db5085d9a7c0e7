// Package rewrite implements whole-string regex transformation of scrobble
// metadata fields.
//
// A rule matches somewhere in an input string but, when applied, replaces
// the entire string rather than the matched substring. Callers that want a
// partial edit anchor their pattern with "^(.*)pattern(.*)$" and reference
// "$1...$2" in the replacement.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// SdRule is a single find-and-replace transformation ("sd" for the stream
// editor tools this behavior is modeled on).
type SdRule struct {
	Find    string // regex pattern
	Replace string // replacement template; supports $0..$n, ${0}..${n}, ${name}, and escapes
	Flags   string // any of "imsce"; see compile
}

// compile builds the regexp for r, honoring Flags:
//   - i: case-insensitive
//   - m: multi-line (default on)
//   - s: dot matches newline and disables multi-line unless 'm' is also set
//   - c: explicit case-sensitive
//   - e: single-line (disables multi-line)
func (r SdRule) compile() (*regexp.Regexp, error) {
	var inline strings.Builder
	inline.WriteString("(?")
	multiLine := true
	caseSensitive := false
	for _, c := range r.Flags {
		switch c {
		case 'i':
			if !caseSensitive {
				inline.WriteByte('i')
			}
		case 'c':
			// explicit case-sensitive; nothing to add, just skip a later 'i'
			caseSensitive = true
		case 'm':
			// default already
		case 'e':
			multiLine = false
		case 's':
			inline.WriteByte('s')
			if !strings.ContainsRune(r.Flags, 'm') {
				multiLine = false
			}
		}
	}
	if multiLine {
		inline.WriteByte('m')
	}
	inline.WriteByte(')')
	flags := inline.String()
	if flags == "(?)" {
		flags = ""
	}
	re, err := regexp.Compile(flags + r.Find)
	if err != nil {
		return nil, &RegexError{Pattern: r.Find, Err: err}
	}
	return re, nil
}

// RegexError is returned when a rule's Find pattern fails to compile.
type RegexError struct {
	Pattern string
	Err     error
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *RegexError) Unwrap() error { return e.Err }

// Matches reports whether r's pattern matches anywhere in input, independent
// of whether applying the rule would change input.
func (r SdRule) Matches(input string) (bool, error) {
	re, err := r.compile()
	if err != nil {
		return false, err
	}
	return re.MatchString(input), nil
}

// Apply transforms input according to r. If the pattern does not match,
// input is returned unchanged. If it matches, the entire input is replaced
// by expanding r.Replace against the match's capture groups.
func (r SdRule) Apply(input string) (string, error) {
	re, err := r.compile()
	if err != nil {
		return "", err
	}
	ms := re.FindStringSubmatchIndex(input)
	if ms == nil {
		return input, nil
	}
	return expand(re, r.Replace, input, ms), nil
}

// WouldModify reports whether applying r to input would change it.
func (r SdRule) WouldModify(input string) (bool, error) {
	out, err := r.Apply(input)
	if err != nil {
		return false, err
	}
	return out != input, nil
}

// placeholders mask literal escapes while we substitute capture groups, so
// that e.g. a literal "$1" typed by a rule author doesn't get expanded.
const (
	phBackslash = "\x00ESC_BACKSLASH\x00"
	phDollar    = "\x00ESC_DOLLAR\x00"
	phLBrace    = "\x00ESC_LBRACE\x00"
	phRBrace    = "\x00ESC_RBRACE\x00"
)

// expand builds the replacement string for a successful match, per the
// escaping and capture-group rules described in the package doc.
func expand(re *regexp.Regexp, replace, input string, ms []int) string {
	// 1. Mask literal escapes, in this exact order: \\ first, then \$ / $$,
	// then \{ and \}.
	out := replace
	out = strings.ReplaceAll(out, `\\`, phBackslash)
	out = strings.ReplaceAll(out, `\$`, phDollar)
	out = strings.ReplaceAll(out, `$$`, phDollar)
	out = strings.ReplaceAll(out, `\{`, phLBrace)
	out = strings.ReplaceAll(out, `\}`, phRBrace)

	// 2. Substitute ${0}..${n} and $0..$n for numbered capture groups.
	groupCount := len(ms) / 2
	for i := 0; i < groupCount; i++ {
		var val string
		if ms[2*i] >= 0 {
			val = input[ms[2*i]:ms[2*i+1]]
		}
		out = strings.ReplaceAll(out, fmt.Sprintf("${%d}", i), val)
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), val)
	}

	// 3. Substitute ${name} for named capture groups.
	for _, name := range re.SubexpNames() {
		if name == "" {
			continue
		}
		idx := re.SubexpIndex(name)
		var val string
		if idx >= 0 && 2*idx+1 < len(ms) && ms[2*idx] >= 0 {
			val = input[ms[2*idx]:ms[2*idx+1]]
		}
		out = strings.ReplaceAll(out, "${"+name+"}", val)
	}

	// 4. Restore literal escapes.
	out = strings.ReplaceAll(out, phDollar, "$")
	out = strings.ReplaceAll(out, phLBrace, "{")
	out = strings.ReplaceAll(out, phRBrace, "}")
	out = strings.ReplaceAll(out, phBackslash, `\`)
	return out
}
