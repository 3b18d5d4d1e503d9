package transformer

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"escrowetl/internal/etlerr"
	"escrowetl/internal/period"
	"escrowetl/internal/schema"
)

// table builds a schema.Table whose rows start at line 2.
func table(role schema.Role, cols []string, periods []string, rows ...[]any) *schema.Table {
	h := schema.NewHeader(cols)
	t := &schema.Table{Role: role, Header: h, PeriodColumns: periods}
	for i, r := range rows {
		t.Rows = append(t.Rows, schema.NewRawRow(h, i+2, r))
	}
	return t
}

func key(s string) schema.AccountKey { return schema.AccountKey(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

var (
	balanceCols    = []string{schema.FieldAccount, schema.FieldInstallment, "Saldo JANEIRO23", "Saldo FEVEREIRO23"}
	balancePeriods = []string{"Saldo JANEIRO23", "Saldo FEVEREIRO23"}
	redemptionCols = []string{
		schema.FieldAccount, schema.FieldInstallment, schema.FieldRedemptionDate,
		schema.FieldValue, schema.FieldCompetenceDate, schema.FieldAgreement,
	}
)

func TestBuild_CanonicalScenario(t *testing.T) {
	t.Parallel()

	// "00123" and "123" canonicalize to the same key during extraction.
	bal := table(schema.RoleBalances, balanceCols, balancePeriods,
		[]any{key("123"), 1, dec("100.50"), dec("90.00")})
	red := table(schema.RoleRedemptions, redemptionCols, nil,
		[]any{key("123"), 1, day(2023, time.February, 10), dec("10.50")})

	out, err := Build(bal, red)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantAccounts := []schema.DimAccount{{AccountID: 1, AccountKey: "123", FirstSeenSource: schema.RoleBalances}}
	if !reflect.DeepEqual(out.Accounts, wantAccounts) {
		t.Fatalf("Accounts = %+v", out.Accounts)
	}
	if len(out.Balances) != 2 {
		t.Fatalf("Balances = %+v", out.Balances)
	}
	wantBal := []struct {
		p      period.Period
		amount string
	}{
		{period.Period{Year: 2023, Month: time.January}, "100.50"},
		{period.Period{Year: 2023, Month: time.February}, "90.00"},
	}
	for i, w := range wantBal {
		f := out.Balances[i]
		if f.AccountID != 1 || f.InstallmentNumber != 1 || f.Period != w.p || !f.BalanceAmount.Equal(dec(w.amount)) {
			t.Fatalf("Balances[%d] = %+v, want period %s amount %s", i, f, w.p, w.amount)
		}
	}
	if len(out.Redemptions) != 1 {
		t.Fatalf("Redemptions = %+v", out.Redemptions)
	}
	r := out.Redemptions[0]
	if r.AccountID != 1 || r.InstallmentNumber != 1 || !r.ValueAmount.Equal(dec("10.50")) {
		t.Fatalf("Redemption = %+v", r)
	}
	if !r.CompetenceDate.Equal(r.RedemptionDate) {
		t.Fatalf("competence should fall back to redemption date: %+v", r)
	}
	if r.AgreementCode != nil {
		t.Fatalf("AgreementCode = %q", *r.AgreementCode)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("Warnings = %v", out.Warnings)
	}
	if total := len(out.Accounts) + len(out.Balances) + len(out.Redemptions); total != 4 {
		t.Fatalf("total rows = %d, want 4", total)
	}
}

func TestBuild_BalanceFactCount(t *testing.T) {
	t.Parallel()

	bal := table(schema.RoleBalances, balanceCols, balancePeriods,
		[]any{key("1"), 1, dec("1"), dec("2")},
		[]any{key("2"), 1, nil, dec("3")},
		[]any{key("3"), 2, nil, nil},
		[]any{key("4"), nil, dec("9"), dec("9")},
	)
	out, err := Build(bal, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// 2 + 1 + 0 non-missing period cells; the row without installment is excluded.
	if len(out.Balances) != 3 {
		t.Fatalf("Balances = %d, want 3", len(out.Balances))
	}
	if len(out.Accounts) != 4 {
		t.Fatalf("Accounts = %d, want all four keys", len(out.Accounts))
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Line != 5 || out.Warnings[0].Column != schema.FieldInstallment {
		t.Fatalf("Warnings = %v", out.Warnings)
	}
}

func TestBuild_AccountOrderAndSources(t *testing.T) {
	t.Parallel()

	bal := table(schema.RoleBalances, balanceCols, balancePeriods,
		[]any{key("B"), 1, dec("1"), nil},
		[]any{key("A"), 1, dec("1"), nil},
		[]any{key("B"), 2, dec("1"), nil},
	)
	red := table(schema.RoleRedemptions, redemptionCols, nil,
		[]any{key("C"), 1, day(2023, 1, 5), dec("1")},
		[]any{key("A"), 1, day(2023, 1, 5), dec("1")},
		[]any{key("C"), 2, day(2023, 1, 6), dec("2")},
	)
	out, err := Build(bal, red)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []schema.DimAccount{
		{AccountID: 1, AccountKey: "B", FirstSeenSource: schema.RoleBalances},
		{AccountID: 2, AccountKey: "A", FirstSeenSource: schema.RoleBalances},
		{AccountID: 3, AccountKey: "C", FirstSeenSource: schema.RoleRedemptions},
	}
	if !reflect.DeepEqual(out.Accounts, want) {
		t.Fatalf("Accounts = %+v\nwant %+v", out.Accounts, want)
	}
	seen := map[schema.AccountKey]bool{}
	for _, a := range out.Accounts {
		if seen[a.AccountKey] {
			t.Fatalf("duplicate key %s", a.AccountKey)
		}
		seen[a.AccountKey] = true
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0].Message, "account C is not in the balances file") {
		t.Fatalf("want one reconciliation warning, got %v", out.Warnings)
	}
	if out.Redemptions[0].AccountID != 3 || out.Redemptions[2].AccountID != 3 {
		t.Fatalf("Redemptions = %+v", out.Redemptions)
	}
}

func TestBuild_DuplicateBalanceKeepsFirst(t *testing.T) {
	t.Parallel()

	bal := table(schema.RoleBalances, balanceCols, balancePeriods,
		[]any{key("1"), 1, dec("10"), nil},
		[]any{key("1"), 1, dec("99"), dec("20")},
	)
	out, err := Build(bal, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out.Balances) != 2 || !out.Balances[0].BalanceAmount.Equal(dec("10")) {
		t.Fatalf("Balances = %+v", out.Balances)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0].Message, "keeping line 2") || out.Warnings[0].Line != 3 {
		t.Fatalf("Warnings = %v", out.Warnings)
	}
}

func TestBuild_RedemptionExclusions(t *testing.T) {
	t.Parallel()

	bal := table(schema.RoleBalances, balanceCols, balancePeriods, []any{key("1"), 1, dec("1"), nil})
	red := table(schema.RoleRedemptions, redemptionCols, nil,
		[]any{key("1"), nil, day(2023, 1, 1), dec("1")},
		[]any{key("1"), 1, nil, dec("1")},
		[]any{key("1"), 1, day(2023, 1, 1), nil},
		[]any{key("1"), 3, day(2023, 3, 9), dec("5.555"), day(2023, 3, 1), "CONV001"},
	)
	out, err := Build(bal, red)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out.Redemptions) != 1 {
		t.Fatalf("Redemptions = %+v", out.Redemptions)
	}
	r := out.Redemptions[0]
	if r.InstallmentNumber != 3 || !r.CompetenceDate.Equal(day(2023, 3, 1)) || !r.ValueAmount.Equal(dec("5.56")) {
		t.Fatalf("Redemption = %+v", r)
	}
	if r.AgreementCode == nil || *r.AgreementCode != "CONV001" {
		t.Fatalf("AgreementCode = %v", r.AgreementCode)
	}
	wantCols := []string{schema.FieldInstallment, schema.FieldRedemptionDate, schema.FieldValue}
	if len(out.Warnings) != len(wantCols) {
		t.Fatalf("Warnings = %v", out.Warnings)
	}
	for i, w := range out.Warnings {
		if w.Column != wantCols[i] || w.Role != schema.RoleRedemptions {
			t.Fatalf("Warnings[%d] = %+v, want column %s", i, w, wantCols[i])
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	mk := func() (*schema.Table, *schema.Table) {
		bal := table(schema.RoleBalances, balanceCols, balancePeriods,
			[]any{key("9"), 1, dec("1"), dec("2")},
			[]any{key("7"), 1, dec("3"), nil},
		)
		red := table(schema.RoleRedemptions, redemptionCols, nil,
			[]any{key("8"), 1, day(2023, 2, 1), dec("4")},
			[]any{key("9"), 1, day(2023, 2, 2), dec("5")},
		)
		return bal, red
	}
	a1, b1 := mk()
	a2, b2 := mk()
	first, err := Build(a1, b1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Build(a2, b2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("outputs differ:\n%+v\n%+v", first, second)
	}
}

func TestBuild_NoAccounts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		bal  *schema.Table
		red  *schema.Table
	}{
		{"nil_tables", nil, nil},
		{"empty_tables", table(schema.RoleBalances, balanceCols, balancePeriods), table(schema.RoleRedemptions, redemptionCols, nil)},
		{"rows_without_keys", table(schema.RoleBalances, balanceCols, balancePeriods, []any{nil, 1, dec("1"), nil}), nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tc.bal, tc.red)
			if !etlerr.Is(err, etlerr.KindReconciliation) {
				t.Fatalf("err = %v, want ReconciliationError", err)
			}
		})
	}
}
