package ddl

import (
	"testing"

	gddl "escrowetl/internal/ddl"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := gddl.TableDef{
		FQN: "dbo.fact_redemption",
		Columns: []gddl.ColumnDef{
			{Name: "run_id", Kind: gddl.KindKey, PrimaryKey: true},
			{Name: "redemption_seq", Kind: gddl.KindBigInt, PrimaryKey: true},
			{Name: "value_amount", Kind: gddl.KindDecimal},
			{Name: "agreement_code", Kind: gddl.KindText, Nullable: true},
		},
		ForeignKeys: []gddl.ForeignKey{{Columns: []string{"run_id"}, RefTable: "dbo.runs", RefColumns: []string{"run_id"}}},
	}
	got, err := BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'[dbo].[fact_redemption]', N'U') IS NULL\nBEGIN\n" +
		"  CREATE TABLE [dbo].[fact_redemption] (\n" +
		"    [run_id] NVARCHAR(64) NOT NULL,\n" +
		"    [redemption_seq] BIGINT NOT NULL,\n" +
		"    [value_amount] DECIMAL(18,2) NOT NULL,\n" +
		"    [agreement_code] NVARCHAR(255),\n" +
		"    PRIMARY KEY ([run_id], [redemption_seq]),\n" +
		"    FOREIGN KEY ([run_id]) REFERENCES [dbo].[runs] ([run_id])\n" +
		"  );\nEND;"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestQuoting(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"Users", "[Users]"},
		{"dbo.Users", "[dbo].[Users]"},
		{"weird]id", "[weird]]id]"},
	}
	for _, c := range cases {
		if got := QuoteFQN(c.in); got != c.want {
			t.Fatalf("QuoteFQN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if s, tb := SplitFQN("fact"); s != "dbo" || tb != "fact" {
		t.Fatalf("SplitFQN = %q, %q", s, tb)
	}
	if MapType(gddl.KindDecimal) != "DECIMAL(18,2)" || MapType(gddl.KindText) != "NVARCHAR(255)" {
		t.Fatal("MapType mismatch")
	}
}
