package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"escrowetl/internal/config"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/period"
	"escrowetl/internal/schema"
	"escrowetl/internal/storage"
)

/*
Package-level test helpers (TB-aware)
*/

func dbPath(tb testing.TB) string {
	tb.Helper()
	return filepath.Join(tb.TempDir(), "output", "contas_judiciais.db")
}

func openRaw(tb testing.TB, path string) *sql.DB {
	tb.Helper()
	db, err := Open(context.Background(), path)
	if err != nil {
		tb.Fatalf("open %s: %v", path, err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db.SQL()
}

func count(tb testing.TB, db *sql.DB, table string) int {
	tb.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func load(tb testing.TB, path, runID string, out *schema.Output) (storage.LoadResult, error) {
	tb.Helper()
	app := config.Default()
	app.Runtime.BatchSize = 2
	return storage.NewLoader(app).Load(context.Background(), config.EmbeddedFile{Path: path}, runID, out)
}

func output() *schema.Output {
	d := decimal.RequireFromString
	jan := period.Period{Year: 2023, Month: time.January}
	feb := period.Period{Year: 2023, Month: time.February}
	day := time.Date(2023, time.February, 10, 0, 0, 0, 0, time.UTC)
	agreement := "REP-1"
	return &schema.Output{
		Accounts: []schema.DimAccount{
			{AccountID: 1, AccountKey: "123", FirstSeenSource: schema.RoleBalances},
			{AccountID: 2, AccountKey: "77", FirstSeenSource: schema.RoleRedemptions},
		},
		Balances: []schema.FactBalance{
			{AccountID: 1, InstallmentNumber: 1, Period: jan, BalanceAmount: d("1234.5")},
			{AccountID: 1, InstallmentNumber: 1, Period: feb, BalanceAmount: d("0.10")},
			{AccountID: 1, InstallmentNumber: 2, Period: jan, BalanceAmount: d("-3")},
		},
		Redemptions: []schema.FactRedemption{
			{AccountID: 1, InstallmentNumber: 1, RedemptionDate: day, CompetenceDate: day.AddDate(0, 0, -9), ValueAmount: d("10.5")},
			{AccountID: 2, InstallmentNumber: 1, RedemptionDate: day, CompetenceDate: day, ValueAmount: d("2"), AgreementCode: &agreement},
		},
	}
}

/*
Unit tests
*/

// TestLoad_RoundTrip checks that (account_key, period, balance_amount) read
// back equals what was loaded and that amounts and dates keep their text form.
func TestLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := dbPath(t)
	res, err := load(t, path, "run-1", output())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Accounts != 2 || res.Balances != 3 || res.Redemptions != 2 {
		t.Fatalf("result = %+v", res)
	}

	db := openRaw(t, path)
	rows, err := db.Query(`
		SELECT a.account_key, b.installment_number, b.period, b.balance_amount
		FROM fact_balance b
		JOIN dim_account a ON a.run_id = b.run_id AND a.account_id = b.account_id
		ORDER BY b.installment_number, b.period`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	type got struct {
		key     string
		inst    int
		period  string
		balance string
	}
	var all []got
	for rows.Next() {
		var g got
		if err := rows.Scan(&g.key, &g.inst, &g.period, &g.balance); err != nil {
			t.Fatalf("scan: %v", err)
		}
		all = append(all, g)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := []got{
		{"123", 1, "2023-01", "1234.50"},
		{"123", 1, "2023-02", "0.10"},
		{"123", 2, "2023-01", "-3.00"},
	}
	if len(all) != len(want) {
		t.Fatalf("rows = %+v, want %+v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, all[i], want[i])
		}
	}

	var seq int64
	var redeemed, competence, value string
	var agreement sql.NullString
	err = db.QueryRow(`SELECT redemption_seq, redemption_date, competence_date, value_amount, agreement_code
		FROM fact_redemption WHERE run_id = ? ORDER BY redemption_seq LIMIT 1`, "run-1").
		Scan(&seq, &redeemed, &competence, &value, &agreement)
	if err != nil {
		t.Fatalf("redemption: %v", err)
	}
	if seq != 1 || redeemed != "2023-02-10" || competence != "2023-02-01" || value != "10.50" || agreement.Valid {
		t.Fatalf("redemption = %d %s %s %s %v", seq, redeemed, competence, value, agreement)
	}
}

// TestLoad_SecondRunAppends runs twice into the same file: the schema is
// reused and each run keeps its own rows.
func TestLoad_SecondRunAppends(t *testing.T) {
	t.Parallel()

	path := dbPath(t)
	for _, run := range []string{"run-1", "run-2"} {
		if _, err := load(t, path, run, output()); err != nil {
			t.Fatalf("Load %s: %v", run, err)
		}
	}

	db := openRaw(t, path)
	if n := count(t, db, "dim_account"); n != 4 {
		t.Fatalf("dim_account rows = %d, want 4", n)
	}
	if n := count(t, db, "fact_balance"); n != 6 {
		t.Fatalf("fact_balance rows = %d, want 6", n)
	}
	var runs int
	if err := db.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM fact_redemption`).Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Fatalf("distinct runs = %d, want 2", runs)
	}
}

// TestLoad_DuplicateRunRollsBack reuses a run id: the primary key rejects the
// second load, which must leave the first run untouched.
func TestLoad_DuplicateRunRollsBack(t *testing.T) {
	t.Parallel()

	path := dbPath(t)
	if _, err := load(t, path, "run-1", output()); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	res, err := load(t, path, "run-1", output())
	if !etlerr.Is(err, etlerr.KindIntegrity) {
		t.Fatalf("err = %v, want IntegrityError", err)
	}
	if res.Total() != 0 {
		t.Fatalf("result = %+v, want zero", res)
	}

	db := openRaw(t, path)
	if n := count(t, db, "dim_account"); n != 2 {
		t.Fatalf("dim_account rows = %d, want 2", n)
	}
}

// TestLoad_ForeignKeyViolation loads a fact whose account is absent; nothing
// from the run may be committed.
func TestLoad_ForeignKeyViolation(t *testing.T) {
	t.Parallel()

	out := output()
	out.Balances[2].AccountID = 99

	path := dbPath(t)
	if _, err := load(t, path, "run-1", out); !etlerr.Is(err, etlerr.KindIntegrity) {
		t.Fatalf("err = %v, want IntegrityError", err)
	}
	db := openRaw(t, path)
	for _, table := range []string{"dim_account", "fact_balance", "fact_redemption"} {
		if n := count(t, db, table); n != 0 {
			t.Fatalf("%s rows = %d, want 0", table, n)
		}
	}
}

// TestLoad_IncompatibleTable pre-creates fact_balance with other columns.
func TestLoad_IncompatibleTable(t *testing.T) {
	t.Parallel()

	path := dbPath(t)
	db := openRaw(t, path)
	if _, err := db.Exec(`CREATE TABLE fact_balance (id INTEGER PRIMARY KEY, amount TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := load(t, path, "run-1", output())
	if !etlerr.Is(err, etlerr.KindSchema) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if n := count(t, db, "dim_account"); n != 0 {
		t.Fatalf("dim_account rows = %d, want 0", n)
	}
}

func TestTableColumns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	cols, err := db.TableColumns(ctx, "missing")
	if err != nil || cols != nil {
		t.Fatalf("absent table = %v, %v; want nil, nil", cols, err)
	}
	if err := db.Exec(ctx, `CREATE TABLE "t" ("A" INTEGER, "b" TEXT)`); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	cols, err = db.TableColumns(ctx, "main.t")
	if err != nil || len(cols) != 2 || cols[0] != "A" || cols[1] != "b" {
		t.Fatalf("columns = %v, %v", cols, err)
	}
}

func TestFactoryRejectsNetworkedBackend(t *testing.T) {
	t.Parallel()

	b := config.Networked{Kind: config.EngineSQLite, Host: "h", Port: 1}
	if _, err := storage.Open(context.Background(), b); err == nil {
		t.Fatal("expected error for a networked sqlite backend")
	}
}
