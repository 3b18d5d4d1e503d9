package ddl

import gddl "escrowetl/internal/ddl"

// MapType maps a logical kind to a PostgreSQL type.
//
//	bigint  -> BIGINT
//	int     -> INTEGER
//	date    -> DATE
//	decimal -> NUMERIC(18,2)
//	key     -> VARCHAR(64)
//	other   -> TEXT
func MapType(kind gddl.Kind) string {
	switch kind {
	case gddl.KindBigInt:
		return "BIGINT"
	case gddl.KindInt:
		return "INTEGER"
	case gddl.KindDate:
		return "DATE"
	case gddl.KindDecimal:
		return "NUMERIC(18,2)"
	case gddl.KindKey:
		return "VARCHAR(64)"
	default:
		return "TEXT"
	}
}
