// This file adds a lightweight linter for App values. It performs static
// checks over a decoded config and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.

package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not block
	// execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "database.port",
// "tables.accounts"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// maxBatchSize keeps multi-row INSERTs under the SQLite and MySQL
// placeholder limits for the widest table.
const maxBatchSize = 4000

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateApp performs static validation of an App. It does not mutate the
// config; callers decide whether warnings are fatal.
func ValidateApp(a App) []Issue {
	var issues []Issue

	if strings.TrimSpace(a.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  fmt.Sprintf("job is empty; metrics will be labeled %q", DefaultJob),
		})
	}
	issues = append(issues, validateDatabase(a.Database)...)
	issues = append(issues, validateTables(a.Tables)...)
	issues = append(issues, validateRuntime(a.Runtime)...)
	issues = append(issues, validateExtract(a.Extract)...)
	issues = append(issues, validateMetrics(a.Metrics)...)

	return issues
}

func validateDatabase(s BackendSpec) []Issue {
	var issues []Issue

	engine, err := ParseEngine(s.Type)
	if err != nil {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "database.type",
			Message:  err.Error(),
		})
	}

	if engine == EngineSQLite {
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "database.path",
				Message:  "sqlite backend requires a non-empty path",
			})
		}
		if s.Host != "" || s.Port != 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "database.host",
				Message:  "host/port are ignored for the sqlite backend",
			})
		}
		return issues
	}

	if s.Port < 0 || s.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "database.port",
			Message:  fmt.Sprintf("port %d out of range", s.Port),
		})
	}
	if strings.TrimSpace(s.Host) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "database.host",
			Message:  fmt.Sprintf("host is empty; %q will be used", DefaultHost),
		})
	}
	if s.Password == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "database.password",
			Message:  fmt.Sprintf("password is empty; set it in the file or via %s", EnvDBPassword),
		})
	}
	if s.Path != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "database.path",
			Message:  fmt.Sprintf("path is ignored for the %s backend", engine),
		})
	}
	return issues
}

func validateTables(t Tables) []Issue {
	var issues []Issue

	named := []struct {
		path, name string
	}{
		{"tables.accounts", t.Accounts},
		{"tables.balances", t.Balances},
		{"tables.redemptions", t.Redemptions},
	}
	seen := make(map[string]string, len(named))
	for _, n := range named {
		if !tableNameRE.MatchString(n.name) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     n.path,
				Message:  fmt.Sprintf("table name %q must be an identifier, optionally schema-qualified", n.name),
			})
			continue
		}
		key := strings.ToLower(n.name)
		if prev, dup := seen[key]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     n.path,
				Message:  fmt.Sprintf("table name %q is already used by %s", n.name, prev),
			})
			continue
		}
		seen[key] = n.path
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must be > 0",
		})
	} else if r.BatchSize > maxBatchSize {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size %d exceeds %d; multi-row inserts may hit driver placeholder limits", r.BatchSize, maxBatchSize),
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must be >= 0",
		})
	}
	return issues
}

func validateExtract(e ExtractConfig) []Issue {
	var issues []Issue

	if n := utf8.RuneCountInString(e.Delimiter); n > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "extract.delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", e.Delimiter),
		})
	}
	if e.MaxFileSizeMB < 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "extract.max_file_size_mb",
			Message:  "negative max_file_size_mb disables the input size limit",
		})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case MetricsNone:
		if m.PushgatewayURL != "" || m.DatadogAddr != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.backend",
				Message:  "metrics endpoints are set but no backend is selected",
			})
		}
	case MetricsPrometheus:
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires a pushgateway_url",
			})
		}
	case MetricsDatadog:
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires a datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q (want %q or %q)", m.Backend, MetricsPrometheus, MetricsDatadog),
		})
	}
	for i, tag := range m.Tags {
		if !strings.Contains(tag, ":") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("metrics.tags[%d]", i),
				Message:  fmt.Sprintf("tag %q is not in key:value form", tag),
			})
		}
	}
	return issues
}
