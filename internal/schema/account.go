package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// AccountKey is the canonical identifier of a judicial escrow account.
type AccountKey string

var (
	// floatRendering matches integers that passed through a spreadsheet as
	// floating point: "123.0", "123,00". "1.000" is a grouped 1000, not a
	// float rendering of 1.
	floatRendering = regexp.MustCompile(`^([0-9]+)(?:\.0|,00)$`)
	keySeparators  = strings.NewReplacer(" ", "", "\u00a0", "", "\t", "", ".", "", "-", "", "/", "", "_", "")
	validKey       = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// CanonicalAccountKey normalises a raw account identifier so that spellings
// of the same account compare equal:
//
//  1. trim surrounding whitespace
//  2. reduce float renderings of integers ("123.0", "123,00") to the integer
//  3. drop the separators space . - / _
//  4. upper-case
//  5. strip leading zeros ("000" becomes "0")
//
// The result must be non-empty and contain only A-Z and 0-9.
//
//	"00123", " 123 ", "123.0", "0-0123" -> "123"
func CanonicalAccountKey(raw string) (AccountKey, error) {
	s := strings.TrimSpace(strings.Trim(raw, "\u00a0"))
	if m := floatRendering.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.ToUpper(keySeparators.Replace(s))
	if s == "" {
		return "", fmt.Errorf("account key %q is empty", raw)
	}
	if !validKey.MatchString(s) {
		return "", fmt.Errorf("account key %q contains unsupported characters", raw)
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	return AccountKey(s), nil
}
