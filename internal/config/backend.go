package config

import (
	"fmt"
	"strings"
)

// Engine identifies a storage engine. The set is closed; storage backends
// register themselves under one of these values.
type Engine string

const (
	EngineSQLite    Engine = "sqlite"
	EnginePostgres  Engine = "postgres"
	EngineMySQL     Engine = "mysql"
	EngineSQLServer Engine = "sqlserver"
)

// Engines lists every supported engine in a stable order.
var Engines = []Engine{EngineSQLite, EnginePostgres, EngineMySQL, EngineSQLServer}

// DefaultPort returns the conventional port of a networked engine.
func (e Engine) DefaultPort() int {
	switch e {
	case EnginePostgres:
		return 5432
	case EngineMySQL:
		return 3306
	case EngineSQLServer:
		return 1433
	}
	return 0
}

// DefaultUser returns the conventional administrative user of an engine.
func (e Engine) DefaultUser() string {
	switch e {
	case EnginePostgres:
		return "postgres"
	case EngineMySQL:
		return "root"
	case EngineSQLServer:
		return "sa"
	}
	return ""
}

// ParseEngine accepts the canonical names plus common aliases.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3", "embedded":
		return EngineSQLite, nil
	case "postgres", "postgresql", "pg":
		return EnginePostgres, nil
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "sqlserver", "mssql":
		return EngineSQLServer, nil
	}
	return "", fmt.Errorf("unknown database type %q (want one of sqlite, postgres, mysql, sqlserver)", s)
}

// Backend is the closed set of storage targets: EmbeddedFile or Networked.
type Backend interface {
	Engine() Engine
	// Describe renders the target without credentials.
	Describe() string
	isBackend()
}

// EmbeddedFile is a file-based SQLite database.
type EmbeddedFile struct {
	Path string
}

func (EmbeddedFile) Engine() Engine     { return EngineSQLite }
func (b EmbeddedFile) Describe() string { return "sqlite:" + b.Path }
func (EmbeddedFile) isBackend()         {}
func (b EmbeddedFile) String() string   { return b.Describe() }

// Networked is a server RDBMS reached over TCP.
type Networked struct {
	Kind     Engine
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Params are passed through to the driver DSN, e.g. sslmode=disable.
	Params map[string]string
}

func (b Networked) Engine() Engine { return b.Kind }
func (Networked) isBackend()       {}

func (b Networked) Describe() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", b.Kind, b.Username, b.Host, b.Port, b.Database)
}

// String never includes the password.
func (b Networked) String() string { return b.Describe() }

// BackendSpec is the serialized, tagged form of a Backend as it appears in
// config files:
//
//	{"type": "sqlite", "path": "./output/contas_judiciais.db"}
//	{"type": "postgres", "host": "db", "port": 5432, "database": "etl_database",
//	 "username": "postgres", "password": "..."}
type BackendSpec struct {
	Type     string            `json:"type" yaml:"type"`
	Path     string            `json:"path,omitempty" yaml:"path,omitempty"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty"`
	Database string            `json:"database,omitempty" yaml:"database,omitempty"`
	Username string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Backend converts s into its variant, filling engine defaults for
// host, port, database and username.
func (s BackendSpec) Backend() (Backend, error) {
	engine, err := ParseEngine(s.Type)
	if err != nil {
		return nil, err
	}
	if engine == EngineSQLite {
		path := strings.TrimSpace(s.Path)
		if path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return EmbeddedFile{Path: path}, nil
	}

	n := Networked{
		Kind:     engine,
		Host:     strings.TrimSpace(s.Host),
		Port:     s.Port,
		Database: strings.TrimSpace(s.Database),
		Username: strings.TrimSpace(s.Username),
		Password: s.Password,
		Params:   s.Params,
	}
	if n.Host == "" {
		n.Host = DefaultHost
	}
	if n.Port == 0 {
		n.Port = engine.DefaultPort()
	}
	if n.Database == "" {
		n.Database = DefaultDatabase
	}
	if n.Username == "" {
		n.Username = engine.DefaultUser()
	}
	if n.Port < 1 || n.Port > 65535 {
		return nil, fmt.Errorf("%s backend: port %d out of range", engine, n.Port)
	}
	return n, nil
}

// SpecOf is the inverse of BackendSpec.Backend.
func SpecOf(b Backend) BackendSpec {
	switch v := b.(type) {
	case EmbeddedFile:
		return BackendSpec{Type: string(EngineSQLite), Path: v.Path}
	case Networked:
		return BackendSpec{
			Type:     string(v.Kind),
			Host:     v.Host,
			Port:     v.Port,
			Database: v.Database,
			Username: v.Username,
			Password: v.Password,
			Params:   v.Params,
		}
	}
	return BackendSpec{}
}
