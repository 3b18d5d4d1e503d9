// Package period recognises monthly balance headers such as "Saldo JANEIRO23"
// and turns them into a canonical year-month.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"escrowetl/internal/textnorm"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// String renders the canonical "YYYY-MM" form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before orders periods chronologically.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Parse reads the canonical "YYYY-MM" form.
func Parse(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("period: parse %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// months maps folded Portuguese and English month names, full and
// abbreviated, to their number.
var months = map[string]time.Month{
	"janeiro": time.January, "jan": time.January, "january": time.January,
	"fevereiro": time.February, "fev": time.February, "february": time.February, "feb": time.February,
	"marco": time.March, "mar": time.March, "march": time.March,
	"abril": time.April, "abr": time.April, "april": time.April, "apr": time.April,
	"maio": time.May, "mai": time.May, "may": time.May,
	"junho": time.June, "jun": time.June, "june": time.June,
	"julho": time.July, "jul": time.July, "july": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"setembro": time.September, "set": time.September, "september": time.September, "sep": time.September, "sept": time.September,
	"outubro": time.October, "out": time.October, "october": time.October, "oct": time.October,
	"novembro": time.November, "nov": time.November, "november": time.November,
	"dezembro": time.December, "dez": time.December, "december": time.December, "dec": time.December,
}

// headerRE runs against textnorm.Fold output, so separators such as "/",
// "-" and "_" have already collapsed to a single space.
var headerRE = regexp.MustCompile(`^(?:saldo|balance)(?: (?:de|of) )? ?([a-z]+) ?([0-9]{2}|[0-9]{4})$`)

// MonthName reports the month for a folded or raw month name.
func MonthName(name string) (time.Month, bool) {
	m, ok := months[textnorm.Compact(name)]
	return m, ok
}

// ParseHeader reports whether header names a monthly balance column and, if
// so, which month. Two-digit years are read as 20YY.
//
//	"Saldo JANEIRO23"   -> 2023-01
//	"Saldo MARÇO/2024"  -> 2024-03
//	"balance dec 22"    -> 2022-12
func ParseHeader(header string) (Period, bool) {
	m := headerRE.FindStringSubmatch(textnorm.Fold(header))
	if m == nil {
		return Period{}, false
	}
	month, ok := months[m[1]]
	if !ok {
		return Period{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return Period{}, false
	}
	if len(m[2]) == 2 {
		year += 2000
	}
	return Period{Year: year, Month: month}, true
}

// MarshalText renders the canonical form.
func (p Period) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText reads the canonical form.
func (p *Period) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
