package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables that override file values.
const (
	EnvDBType     = "ETL_DB_TYPE"
	EnvDBPath     = "ETL_DB_PATH"
	EnvDBHost     = "ETL_DB_HOST"
	EnvDBPort     = "ETL_DB_PORT"
	EnvDBName     = "ETL_DB_NAME"
	EnvDBUser     = "ETL_DB_USER"
	EnvDBPassword = "ETL_DB_PASSWORD"
	EnvBatchSize  = "ETL_BATCH_SIZE"

	EnvMetricsBackend = "ETL_METRICS_BACKEND"
	EnvPushgatewayURL = "ETL_PUSHGATEWAY_URL"
	EnvDatadogAddr    = "ETL_DATADOG_ADDR"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overlays environment overrides on app. Pass nil to read the
// process environment.
func ApplyEnv(app App, lookup LookupFunc) (App, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str(EnvDBType, &app.Database.Type)
	str(EnvDBPath, &app.Database.Path)
	str(EnvDBHost, &app.Database.Host)
	str(EnvDBName, &app.Database.Database)
	str(EnvDBUser, &app.Database.Username)
	str(EnvDBPassword, &app.Database.Password)
	str(EnvMetricsBackend, &app.Metrics.Backend)
	str(EnvPushgatewayURL, &app.Metrics.PushgatewayURL)
	str(EnvDatadogAddr, &app.Metrics.DatadogAddr)
	if err := num(EnvDBPort, &app.Database.Port); err != nil {
		return app, err
	}
	if err := num(EnvBatchSize, &app.Runtime.BatchSize); err != nil {
		return app, err
	}
	return app, nil
}
