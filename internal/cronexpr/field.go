// Package cronexpr interprets the cron dialect used by agent jobs: 5-field
// expressions whose fields may be "*", "a", "a-b", "a,b,c" or "*/n".
//
// Expansion here is deliberately permissive. Out-of-range literals pass
// through unfiltered and unparseable tokens are skipped; nothing in this
// package returns an error for a malformed expression.
package cronexpr

import (
	"slices"
	"strings"
)

// Field bounds for the five positions of an expression.
const (
	MinuteMin, MinuteMax = 0, 59
	HourMin, HourMax     = 0, 23
	DomMin, DomMax       = 1, 31
	MonthMin, MonthMax   = 1, 12
	// Day-of-week accepts 7 as a second spelling of Sunday.
	DowMin, DowMax = 0, 7
)

// ExpandField returns the sorted, de-duplicated set of integers matched by
// one cron field within [min, max].
//
//   - "*"      every integer in [min, max]
//   - "a"      the literal a, even when outside [min, max]
//   - "a-b"    every integer in [a, b]; empty when a > b
//   - "*/n"    min, min+n, ... while <= max
//   - "a/n"    a, a+n, ... while <= max
//   - "a-b/n"  a, a+n, ... while <= b
//
// Comma-separated parts are resolved independently and unioned.
func ExpandField(field string, min, max int) []int {
	var out []int
	for _, part := range strings.Split(field, ",") {
		out = append(out, expandPart(strings.TrimSpace(part), min, max)...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func expandPart(part string, min, max int) []int {
	if rng, stepStr, ok := strings.Cut(part, "/"); ok {
		step, ok := parseNum(stepStr)
		if !ok || step <= 0 {
			return nil
		}
		start, end := min, max
		if rng != "*" {
			if a, b, isRange := strings.Cut(rng, "-"); isRange {
				lo, okA := parseNum(a)
				hi, okB := parseNum(b)
				if !okA || !okB {
					return nil
				}
				start, end = lo, hi
			} else {
				lo, ok := parseNum(rng)
				if !ok {
					return nil
				}
				start = lo
			}
		}
		return stepRange(start, end, step)
	}

	if a, b, ok := strings.Cut(part, "-"); ok {
		lo, okA := parseNum(a)
		hi, okB := parseNum(b)
		if !okA || !okB {
			return nil
		}
		return stepRange(lo, hi, 1)
	}

	if part == "*" {
		return stepRange(min, max, 1)
	}

	if v, ok := parseNum(part); ok {
		return []int{v}
	}
	return nil
}

// maxFieldSpan bounds how many values one part may produce so that a
// garbage range such as "0-999999999" cannot exhaust memory.
const maxFieldSpan = 1 << 12

func stepRange(start, end, step int) []int {
	if start > end {
		return nil
	}
	if end-start > maxFieldSpan {
		end = start + maxFieldSpan
	}
	out := make([]int, 0, (end-start)/step+1)
	for v := start; v <= end; v += step {
		out = append(out, v)
	}
	return out
}

// parseNum reads the leading decimal integer of s, ignoring anything after
// it ("5x" is 5). It reports false when s does not start with a digit.
func parseNum(s string) (int, bool) {
	s = strings.TrimSpace(s)
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
		if digits > 9 {
			break
		}
	}
	return n, digits > 0
}

// Fields splits an expression on whitespace and reports whether it has the
// five positions this package needs. Extra trailing fields are ignored.
func Fields(expr string) ([]string, bool) {
	f := strings.Fields(expr)
	if len(f) < 5 {
		return f, false
	}
	return f[:5], true
}
