package ddl

// Kind is a logical column type. Each backend maps it to a concrete SQL type
// with its own MapType.
type Kind string

const (
	KindBigInt  Kind = "bigint"
	KindInt     Kind = "int"
	KindDate    Kind = "date"
	KindDecimal Kind = "decimal"
	KindText    Kind = "text"
	// KindKey is a short indexed string such as an account key or run id.
	KindKey Kind = "key"
)

// ColumnDef describes a single column.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - Kind: logical type, resolved through a backend's MapType
//   - SQLType: concrete SQL type; when set it wins over Kind
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression
type ColumnDef struct {
	Name       string
	Kind       Kind
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// ForeignKey references columns of another table in the same schema.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// TableDef holds the fully-qualified table name (FQN, dotted form such as
// "schema.table"), the ordered columns, and table-level constraints.
type TableDef struct {
	FQN         string
	Columns     []ColumnDef
	Unique      [][]string
	ForeignKeys []ForeignKey
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// WithTypes returns a copy of t whose columns without SQLType get
// mapType(Kind).
func (t TableDef) WithTypes(mapType func(Kind) string) TableDef {
	cols := make([]ColumnDef, len(t.Columns))
	copy(cols, t.Columns)
	for i := range cols {
		if cols[i].SQLType == "" && cols[i].Kind != "" {
			cols[i].SQLType = mapType(cols[i].Kind)
		}
	}
	t.Columns = cols
	return t
}
