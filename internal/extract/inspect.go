package extract

import (
	"context"
	"path/filepath"
	"strings"

	"escrowetl/internal/datasource"
	"escrowetl/internal/schema"
)

// sampleRows is how many data rows Inspect returns.
const sampleRows = 3

// FileInfo describes an input file without converting its cells.
type FileInfo struct {
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	Extension   string   `json:"extension"`
	Format      Format   `json:"format,omitempty"`
	Supported   bool     `json:"supported"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Sheet       string   `json:"sheet,omitempty"`
	Headers     []string `json:"headers,omitempty"`

	// Fields maps each resolved field to the header it was read from.
	Fields        map[string]string `json:"fields,omitempty"`
	PeriodColumns []string          `json:"period_columns,omitempty"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	Rows          int               `json:"rows"`
	Samples       [][]string        `json:"samples,omitempty"`
	Warnings      []schema.Warning  `json:"warnings,omitempty"`
}

// Inspect reports what Extract would see in src for role. An unsupported
// extension is not an error: the result has Supported=false.
func (e *Extractor) Inspect(ctx context.Context, src datasource.Source, role schema.Role) (*FileInfo, error) {
	info := &FileInfo{
		Name:      src.Name(),
		Extension: strings.ToLower(filepath.Ext(src.Name())),
	}
	format, ok := FormatOf(src.Name())
	if !ok {
		return info, nil
	}
	info.Format = format
	info.Supported = true

	in, err := e.load(ctx, src, "inspect "+string(role))
	if err != nil {
		return nil, err
	}
	g := in.grid
	info.Size = in.size
	info.Fingerprint = in.fingerprint
	info.Sheet = g.Sheet
	info.Headers = g.Header
	info.Rows = len(g.Rows)

	l := resolve(role, g.Header)
	info.Fields = l.fields
	info.PeriodColumns = l.periods
	info.MissingFields = l.missing
	info.Warnings = l.warnings

	for _, r := range g.Rows {
		if len(info.Samples) == sampleRows {
			break
		}
		if blank(r.Cells) {
			continue
		}
		info.Samples = append(info.Samples, r.Cells)
	}
	return info, nil
}
