package ddl

import (
	"testing"

	gddl "escrowetl/internal/ddl"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := gddl.TableDef{
		FQN: "reporting.dim_account",
		Columns: []gddl.ColumnDef{
			{Name: "run_id", Kind: gddl.KindKey, PrimaryKey: true},
			{Name: "account_id", Kind: gddl.KindBigInt, PrimaryKey: true},
			{Name: "account_key", Kind: gddl.KindKey},
		},
		Unique: [][]string{{"run_id", "account_key"}},
	}
	got, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"reporting\".\"dim_account\" (\n" +
		"  \"run_id\" VARCHAR(64) NOT NULL,\n" +
		"  \"account_id\" BIGINT NOT NULL,\n" +
		"  \"account_key\" VARCHAR(64) NOT NULL,\n" +
		"  PRIMARY KEY (\"run_id\", \"account_id\"),\n" +
		"  UNIQUE (\"run_id\", \"account_key\")\n" +
		");"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestMapTypeAndSplit(t *testing.T) {
	t.Parallel()

	cases := map[gddl.Kind]string{
		gddl.KindBigInt:  "BIGINT",
		gddl.KindInt:     "INTEGER",
		gddl.KindDate:    "DATE",
		gddl.KindDecimal: "NUMERIC(18,2)",
		gddl.KindKey:     "VARCHAR(64)",
		gddl.KindText:    "TEXT",
	}
	for k, want := range cases {
		if got := MapType(k); got != want {
			t.Fatalf("MapType(%q) = %q, want %q", k, got, want)
		}
	}

	if s, tb := SplitFQN("fact_balance"); s != "public" || tb != "fact_balance" {
		t.Fatalf("SplitFQN = %q, %q", s, tb)
	}
	if s, tb := SplitFQN("etl.fact_balance"); s != "etl" || tb != "fact_balance" {
		t.Fatalf("SplitFQN = %q, %q", s, tb)
	}
}
