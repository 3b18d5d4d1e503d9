package schema

// Canonical names of the fixed fields an extractor resolves. Balance period
// columns keep their original header text.
const (
	FieldAccount        = "account"
	FieldInstallment    = "installment"
	FieldRedemptionDate = "redemption_date"
	FieldCompetenceDate = "competence_date"
	FieldValue          = "value"
	FieldAgreement      = "agreement_code"
)

// Header is an ordered, immutable list of column names shared by every row of
// a Table.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader copies names. When a name repeats, lookups resolve to its first
// position.
func NewHeader(names []string) *Header {
	h := &Header{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range h.names {
		if _, dup := h.index[n]; !dup {
			h.index[n] = i
		}
	}
	return h
}

// Names returns a copy of the column names in order.
func (h *Header) Names() []string { return append([]string(nil), h.names...) }

// Len is the number of columns.
func (h *Header) Len() int { return len(h.names) }

// Index returns the position of name, or -1.
func (h *Header) Index(name string) int {
	if i, ok := h.index[name]; ok {
		return i
	}
	return -1
}

// RawRow is an ordered mapping from column name to cell value. Values are
// string, int, decimal.Decimal, time.Time, or nil for a missing cell; the
// account column holds an AccountKey.
type RawRow struct {
	line   int
	header *Header
	values []any
}

// NewRawRow binds values to header. Short value slices are padded with nil;
// extra values are dropped. The slice is copied.
func NewRawRow(h *Header, line int, values []any) RawRow {
	vals := make([]any, h.Len())
	copy(vals, values)
	return RawRow{line: line, header: h, values: vals}
}

// Line is the 1-based source line or spreadsheet row.
func (r RawRow) Line() int { return r.line }

// Get returns the value of column name; nil when absent or missing.
func (r RawRow) Get(name string) any {
	if r.header == nil {
		return nil
	}
	i := r.header.Index(name)
	if i < 0 {
		return nil
	}
	return r.values[i]
}

// Columns returns the column names in order.
func (r RawRow) Columns() []string {
	if r.header == nil {
		return nil
	}
	return r.header.Names()
}

// Values returns a copy of the values in column order.
func (r RawRow) Values() []any { return append([]any(nil), r.values...) }

// Table is one extracted input file.
type Table struct {
	Role Role
	// Source is the file name the table was read from.
	Source string
	// Fingerprint is the xxh3 hash of the raw file bytes.
	Fingerprint string
	Header      *Header
	// PeriodColumns lists balance period headers in file order.
	PeriodColumns []string
	Rows          []RawRow
	Warnings      []Warning
}

// Columns returns the resolved column names in file order.
func (t *Table) Columns() []string {
	if t == nil || t.Header == nil {
		return nil
	}
	return t.Header.Names()
}
