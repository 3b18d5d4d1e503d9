// Package config defines the serializable configuration of the escrow ETL:
// the storage backend, target table names, batching, and extraction knobs.
//
// Files are JSON or YAML, chosen by extension. Values absent from a file keep
// the defaults from Default, and environment variables (see ApplyEnv) are
// applied on top.
//
// Example (JSON):
//
//	{
//	  "job": "escrow",
//	  "database": { "type": "postgres", "host": "db", "database": "etl_database" },
//	  "tables":   { "accounts": "dim_account", "balances": "fact_balance", "redemptions": "fact_redemption" },
//	  "runtime":  { "batch_size": 500 },
//	  "extract":  { "delimiter": ";" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSQLitePath is where the embedded database lives unless configured.
	DefaultSQLitePath = "./output/contas_judiciais.db"
	// DefaultHost is used for networked backends without a host.
	DefaultHost = "localhost"
	// DefaultDatabase is used for networked backends without a database name.
	DefaultDatabase = "etl_database"
	// DefaultJob labels metrics when the config names no job.
	DefaultJob = "escrowetl"
)

// App is the top-level configuration document.
type App struct {
	// Job labels metrics and log lines for this deployment.
	Job      string        `json:"job" yaml:"job"`
	Database BackendSpec   `json:"database" yaml:"database"`
	Tables   Tables        `json:"tables" yaml:"tables"`
	Runtime  RuntimeConfig `json:"runtime" yaml:"runtime"`
	Extract  ExtractConfig `json:"extract" yaml:"extract"`
	Metrics  MetricsConfig `json:"metrics" yaml:"metrics"`
}

// Tables names the three star-schema tables. Names may be schema-qualified
// ("reporting.dim_account") on engines that support schemas.
type Tables struct {
	Accounts    string `json:"accounts" yaml:"accounts"`
	Balances    string `json:"balances" yaml:"balances"`
	Redemptions string `json:"redemptions" yaml:"redemptions"`
}

// RuntimeConfig controls batching during load.
type RuntimeConfig struct {
	// BatchSize is the number of rows per bulk insert call.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// ChannelBuffer bounds the row channel feeding the batch loader.
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// ExtractConfig tunes input parsing.
type ExtractConfig struct {
	// Delimiter forces the CSV field separator; empty means sniff it.
	Delimiter string `json:"delimiter" yaml:"delimiter"`
	// Sheet selects the spreadsheet sheet by name; empty means the first one.
	Sheet string `json:"sheet" yaml:"sheet"`
	// MaxFileSizeMB rejects larger inputs. Zero means the default of 150;
	// a negative value disables the limit.
	MaxFileSizeMB int `json:"max_file_size_mb" yaml:"max_file_size_mb"`
}

// Metrics backends.
const (
	MetricsNone       = ""
	MetricsPrometheus = "prometheus"
	MetricsDatadog    = "datadog"
)

// MetricsConfig selects where run metrics go. An empty backend disables them.
type MetricsConfig struct {
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// PushgatewayURL is required for the prometheus backend.
	PushgatewayURL string `json:"pushgateway_url,omitempty" yaml:"pushgateway_url,omitempty"`
	// DatadogAddr is the DogStatsD address for the datadog backend.
	DatadogAddr string   `json:"datadog_addr,omitempty" yaml:"datadog_addr,omitempty"`
	Namespace   string   `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() App {
	return App{
		Job:      DefaultJob,
		Database: BackendSpec{Type: string(EngineSQLite), Path: DefaultSQLitePath},
		Tables: Tables{
			Accounts:    "dim_account",
			Balances:    "fact_balance",
			Redemptions: "fact_redemption",
		},
		Runtime: RuntimeConfig{BatchSize: 500, ChannelBuffer: 1000},
		Extract: ExtractConfig{MaxFileSizeMB: 150},
	}
}

// WithDefaults fills zero values from Default.
func (a App) WithDefaults() App {
	d := Default()
	if strings.TrimSpace(a.Job) == "" {
		a.Job = d.Job
	}
	if strings.TrimSpace(a.Database.Type) == "" {
		a.Database = d.Database
	}
	if a.Tables.Accounts == "" {
		a.Tables.Accounts = d.Tables.Accounts
	}
	if a.Tables.Balances == "" {
		a.Tables.Balances = d.Tables.Balances
	}
	if a.Tables.Redemptions == "" {
		a.Tables.Redemptions = d.Tables.Redemptions
	}
	if a.Runtime.BatchSize == 0 {
		a.Runtime.BatchSize = d.Runtime.BatchSize
	}
	if a.Runtime.ChannelBuffer == 0 {
		a.Runtime.ChannelBuffer = d.Runtime.ChannelBuffer
	}
	if a.Extract.MaxFileSizeMB == 0 {
		a.Extract.MaxFileSizeMB = d.Extract.MaxFileSizeMB
	}
	return a
}

// Backend resolves the configured database into its variant.
func (a App) Backend() (Backend, error) {
	b, err := a.Database.Backend()
	if err != nil {
		return nil, fmt.Errorf("config: database: %w", err)
	}
	return b, nil
}

// MaxFileSize returns the byte limit for inputs, zero when unlimited.
// Call it on a value that went through WithDefaults.
func (a App) MaxFileSize() int64 {
	if a.Extract.MaxFileSizeMB <= 0 {
		return 0
	}
	return int64(a.Extract.MaxFileSizeMB) << 20
}

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

// Load reads a JSON or YAML config file. Fields the file omits take their
// values from Default.
func Load(path string) (App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return App{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	app, err := decode(data, formatOf(path))
	if err != nil {
		return App{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return app, nil
}

func decode(data []byte, f format) (App, error) {
	var app App
	switch f {
	case formatYAML:
		if err := yaml.Unmarshal(data, &app); err != nil {
			return App{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&app); err != nil {
			return App{}, err
		}
	}
	return app.WithDefaults(), nil
}

// Save writes app to path as JSON or YAML, creating parent directories. The
// file is private to the owner because it may hold a database password.
func Save(path string, app App) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case formatYAML:
		data, err = yaml.Marshal(app)
	default:
		data, err = json.MarshalIndent(app, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
