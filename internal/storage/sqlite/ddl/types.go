package ddl

import gddl "escrowetl/internal/ddl"

// MapType maps a logical kind to a SQLite column type.
//
// Decimals and dates are stored as TEXT ("1000.50", "2023-01-31") so values
// round-trip exactly; SQLite's NUMERIC affinity would turn them into floats.
func MapType(kind gddl.Kind) string {
	switch kind {
	case gddl.KindInt, gddl.KindBigInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}
