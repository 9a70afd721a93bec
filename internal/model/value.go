package model

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var valueFoldCaser = cases.Fold()

// numericValue matches values that are one number: optional sign and
// currency symbol, thousands separators, decimals, and an optional
// trailing unit ("sq ft", "months", "%"). Values with more than one digit
// group, like dates and phone numbers, do not match and compare as text.
var numericValue = regexp.MustCompile(`^[-+]?[$€£]?\s?\d+(?:,\d{3})*(?:\.\d+)?(?:\s*(?:%|[A-Za-z][A-Za-z .]*))?$`)

// ParseNumeric extracts the numeric value from a raw string, tolerating
// currency symbols, thousands separators, and a trailing unit. Returns
// false for anything that is not a single number, including structured
// values such as dates and phone numbers.
func ParseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if !numericValue.MatchString(s) {
		return 0, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		case r == ',' || r == '+' || r == '$' || r == '€' || r == '£' || r == ' ':
			// separators and currency symbols are dropped
		default:
			// start of the unit suffix
			f, err := strconv.ParseFloat(b.String(), 64)
			return f, err == nil
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	return f, err == nil
}

// EquivalentText reports whether two text values are the same after case
// folding and whitespace collapsing.
func EquivalentText(a, b string) bool {
	return collapseSpace(valueFoldCaser.String(a)) == collapseSpace(valueFoldCaser.String(b))
}

// EquivalentValue reports whether a new value is within tolerance of the
// current one: numeric values compare by absolute difference after unit
// normalization, everything else by normalized text equality.
func EquivalentValue(current, next string, tolerance float64) bool {
	cf, cok := ParseNumeric(current)
	nf, nok := ParseNumeric(next)
	if cok && nok {
		diff := cf - nf
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}
	return EquivalentText(current, next)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
