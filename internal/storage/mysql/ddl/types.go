package ddl

import gddl "escrowetl/internal/ddl"

// MapType maps a logical kind to a MySQL type.
func MapType(kind gddl.Kind) string {
	switch kind {
	case gddl.KindBigInt:
		return "BIGINT"
	case gddl.KindInt:
		return "INT"
	case gddl.KindDate:
		return "DATE"
	case gddl.KindDecimal:
		return "DECIMAL(18,2)"
	case gddl.KindKey:
		return "VARCHAR(64)"
	default:
		return "VARCHAR(255)"
	}
}
