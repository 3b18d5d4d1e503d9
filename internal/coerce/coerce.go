// Package coerce converts raw spreadsheet and CSV cell text into typed values:
// currency amounts, calendar dates, and small integers.
//
// All functions report ok=false instead of returning errors; callers decide
// whether an unparsable cell is fatal, a warning, or simply missing.
package coerce

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// AmountScale is the number of fractional digits kept for monetary values.
const AmountScale = 2

var (
	currencyStripper = strings.NewReplacer(
		"R$", "", "r$", "", "BRL", "", "brl", "", "$", "",
		" ", "", "\u00a0", "", "\t", "",
	)
	plainNumber    = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	machineNumber  = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
	// one to three leading digits, not a bare zero, then one dot group
	thousandsGroup = regexp.MustCompile(`^[1-9][0-9]{0,2}\.[0-9]{3}$`)
)

// Notation says how a lone '.' in an amount is read.
type Notation int

const (
	// Text is a value typed or exported as text. A lone '.' followed by
	// exactly three digits groups thousands ("R$ 12.500" is 12500), and any
	// '.' groups thousands when a currency marker is present.
	Text Notation = iota
	// Machine is a raw spreadsheet number such as "1234.5" or "1.5E+2"; '.'
	// is always the decimal point.
	Machine
)

// NotationOf picks Machine for cells of a spreadsheet whose raw value has
// the shape of a machine-rendered number, and Text for everything else.
func NotationOf(raw string, spreadsheet bool) Notation {
	if spreadsheet && machineNumber.MatchString(strings.TrimSpace(raw)) {
		return Machine
	}
	return Text
}

// Amount is a monetary value rounded to AmountScale.
type Amount struct {
	Value decimal.Decimal
	// Rounded is set when the input carried nonzero digits beyond
	// AmountScale that rounding dropped.
	Rounded bool
}

// Decimal parses a text amount and rounds it to AmountScale. See ParseAmount.
func Decimal(raw string) (decimal.Decimal, bool) {
	a, ok := ParseAmount(raw, Text)
	return a.Value, ok
}

// ParseAmount parses a monetary amount in either Brazilian ("R$ 1.234,56")
// or international ("1,234.56", "1234.56") notation.
//
// Separator rules:
//   - both '.' and ',' present: the rightmost one is the decimal separator
//   - only ',' present: decimal separator when it occurs once, thousands otherwise
//   - only '.' present, more than once: thousands
//   - a single '.': see Notation
//
// Parentheses and a leading or trailing '-' mark negatives.
func ParseAmount(raw string, n Notation) (Amount, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Amount{}, false
	}
	upper := strings.ToUpper(s)
	marker := strings.Contains(upper, "R$") || strings.Contains(upper, "BRL")

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = currencyStripper.Replace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		neg = !neg
		s = s[:len(s)-1]
	}
	if s == "" {
		return Amount{}, false
	}

	var (
		d   decimal.Decimal
		err error
	)
	if strings.ContainsAny(s, "eE") {
		// Raw spreadsheet values occasionally use scientific notation.
		d, err = decimal.NewFromString(s)
		if err != nil {
			return Amount{}, false
		}
	} else {
		s = normalizeSeparators(s, n == Text, marker)
		if !plainNumber.MatchString(s) {
			return Amount{}, false
		}
		d, err = decimal.NewFromString(s)
		if err != nil {
			return Amount{}, false
		}
	}
	if neg {
		d = d.Neg()
	}
	r := d.Round(AmountScale)
	return Amount{Value: r, Rounded: !r.Equal(d)}, true
}

func normalizeSeparators(s string, text, marker bool) string {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		if text && (marker || thousandsGroup.MatchString(s)) {
			return strings.Replace(s, ".", "", 1)
		}
	}
	return s
}

// DateLayouts lists the accepted textual date layouts in priority order; the
// first layout that parses wins. Day-first forms follow the Brazilian
// convention used by the source systems and accept unpadded day and month
// ("5/3/2023").
var DateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2.1.2006",
	"2006/01/02",
	"20060102",
}

// Date parses raw against DateLayouts and returns the calendar date at
// midnight UTC.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}
	return time.Time{}, false
}

// maxSerial is the spreadsheet serial for 9999-12-31.
const maxSerial = 2958465

// SerialDate interprets raw as a spreadsheet serial date (1900 date system),
// which is what raw cell values of date-formatted cells contain.
func SerialDate(raw string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 1 || f > maxSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return dateOnly(t), true
}

// Int parses a non-negative whole number. Spreadsheet renderings such as
// "3.0" or "3,00" are accepted.
func Int(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	d, ok := Decimal(s)
	if !ok || !d.IsInteger() || d.IsNegative() {
		return 0, false
	}
	return int(d.IntPart()), true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
