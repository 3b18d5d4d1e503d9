package extract

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"escrowetl/internal/datasource"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/schema"
)

const balancesCSV = "Conta Judicial;Parcela;Saldo JANEIRO23;Saldo FEVEREIRO23;Saldo MARÇO23\n" +
	"12345;1;R$ 1.000,50;R$ 1.100,75;R$ 1.200,00\n" +
	"12346;1;R$ 2.500,00;R$ 2.600,25;R$ 2.700,50\n" +
	"12347;2;R$ 500,75;R$ 550,80;R$ 600,90\n"

const redemptionsCSV = "Número da Conta Judicial;Número da Parcela;Número do Convênio de Repasse;DT_RSGT_DEP_JDCL;Competencia;Saldo Conta;Valor total resgatado\n" +
	"12345;1;CONV001;2023-01-15;15/01/2023;R$ 1.000,50;R$ 100,00\n" +
	"12346;1;CONV002;2023-02-20;20/02/2023;R$ 2.500,00;R$ 250,00\n" +
	"12347;2;;2023-03-10;;R$ 500,75;R$ 50,00\n"

func src(name, body string) datasource.Source {
	return datasource.Bytes{Filename: name, Data: []byte(body)}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestExtract_Balances(t *testing.T) {
	t.Parallel()

	tbl, err := New(Options{}).Extract(context.Background(), src("saldos.csv", balancesCSV), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got, want := strings.Join(tbl.PeriodColumns, "|"), "Saldo JANEIRO23|Saldo FEVEREIRO23|Saldo MARÇO23"; got != want {
		t.Fatalf("PeriodColumns = %q, want %q", got, want)
	}
	if got, want := strings.Join(tbl.Columns(), "|"), "account|installment|Saldo JANEIRO23|Saldo FEVEREIRO23|Saldo MARÇO23"; got != want {
		t.Fatalf("Columns = %q, want %q", got, want)
	}
	if len(tbl.Rows) != 3 || len(tbl.Warnings) != 0 {
		t.Fatalf("rows=%d warnings=%v", len(tbl.Rows), tbl.Warnings)
	}
	if len(tbl.Fingerprint) != 16 {
		t.Fatalf("Fingerprint = %q", tbl.Fingerprint)
	}

	r := tbl.Rows[0]
	if r.Line() != 2 {
		t.Fatalf("Line = %d", r.Line())
	}
	if got := r.Get(schema.FieldAccount); got != schema.AccountKey("12345") {
		t.Fatalf("account = %#v", got)
	}
	if got := r.Get(schema.FieldInstallment); got != 1 {
		t.Fatalf("installment = %#v", got)
	}
	if got := r.Get("Saldo JANEIRO23").(decimal.Decimal); !got.Equal(dec("1000.50")) {
		t.Fatalf("Saldo JANEIRO23 = %s", got)
	}
	if got := tbl.Rows[2].Get("Saldo MARÇO23").(decimal.Decimal); !got.Equal(dec("600.90")) {
		t.Fatalf("Saldo MARÇO23 = %s", got)
	}
}

func TestExtract_Redemptions(t *testing.T) {
	t.Parallel()

	tbl, err := New(Options{}).Extract(context.Background(), src("resgates.csv", redemptionsCSV), schema.RoleRedemptions)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(tbl.PeriodColumns) != 0 {
		t.Fatalf("redemptions have no periods, got %q", tbl.PeriodColumns)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d", len(tbl.Rows))
	}

	r := tbl.Rows[0]
	checks := []struct {
		field string
		want  any
	}{
		{schema.FieldAccount, schema.AccountKey("12345")},
		{schema.FieldInstallment, 1},
		{schema.FieldAgreement, "CONV001"},
		{schema.FieldRedemptionDate, date(2023, time.January, 15)},
		{schema.FieldCompetenceDate, date(2023, time.January, 15)},
		{"Saldo Conta", "R$ 1.000,50"},
	}
	for _, c := range checks {
		if got := r.Get(c.field); got != c.want {
			t.Fatalf("%s = %#v, want %#v", c.field, got, c.want)
		}
	}
	if got := r.Get(schema.FieldValue).(decimal.Decimal); !got.Equal(dec("100")) {
		t.Fatalf("value = %s", got)
	}

	last := tbl.Rows[2]
	if last.Get(schema.FieldAgreement) != nil || last.Get(schema.FieldCompetenceDate) != nil {
		t.Fatalf("blank optional cells should be missing: %#v", last.Values())
	}
}

func TestExtract_RowLevelWarnings(t *testing.T) {
	t.Parallel()

	in := "Conta;Parcela;Saldo JAN 2023\n" +
		"00123;1;10,00\n" +
		";;\n" +
		"12#4;1;5,00\n" +
		";1;5,00\n" +
		"456;x;abc\n"
	tbl, err := New(Options{}).Extract(context.Background(), src("saldos.csv", in), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank skipped, two keys dropped)", len(tbl.Rows))
	}
	if got := tbl.Rows[0].Get(schema.FieldAccount); got != schema.AccountKey("123") {
		t.Fatalf("account = %#v", got)
	}
	bad := tbl.Rows[1]
	if bad.Get(schema.FieldInstallment) != nil || bad.Get("Saldo JAN 2023") != nil {
		t.Fatalf("unparsable cells should be missing: %#v", bad.Values())
	}

	wantLines := []int{4, 5, 6, 6}
	if len(tbl.Warnings) != len(wantLines) {
		t.Fatalf("warnings = %v", tbl.Warnings)
	}
	for i, w := range tbl.Warnings {
		if w.Line != wantLines[i] || w.Role != schema.RoleBalances {
			t.Fatalf("warning %d = %+v, want line %d", i, w, wantLines[i])
		}
	}
}

func TestExtract_TextAmounts(t *testing.T) {
	t.Parallel()

	in := "Conta;Parcela;Saldo JAN 2023\n" +
		"1;1;R$ 12.500\n" +
		"2;1;1.234\n" +
		"3;1;10,005\n" +
		"4;1;1234.56\n"
	tbl, err := New(Options{}).Extract(context.Background(), src("saldos.csv", in), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	wants := []string{"12500", "1234", "10.01", "1234.56"}
	if len(tbl.Rows) != len(wants) {
		t.Fatalf("rows = %d, want %d", len(tbl.Rows), len(wants))
	}
	for i, want := range wants {
		if got := tbl.Rows[i].Get("Saldo JAN 2023").(decimal.Decimal); !got.Equal(dec(want)) {
			t.Fatalf("row %d = %s, want %s", i, got, want)
		}
	}
	if len(tbl.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one rounding warning", tbl.Warnings)
	}
	if w := tbl.Warnings[0]; w.Line != 4 || w.Column != "Saldo JAN 2023" || !strings.Contains(w.Message, "rounded to 10.01") {
		t.Fatalf("warning = %+v", w)
	}
}

func TestExtract_XLSXMachineAmounts(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Conta", "Parcela", "Saldo JAN 2023", "Saldo FEV 2023"},
		{"7", 1, 1.234, "R$ 12.500"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := New(Options{}).Extract(context.Background(), src("saldos.xlsx", buf.String()), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	r := tbl.Rows[0]
	if got := r.Get("Saldo JAN 2023").(decimal.Decimal); !got.Equal(dec("1.23")) {
		t.Fatalf("numeric cell = %s, want 1.23", got)
	}
	if got := r.Get("Saldo FEV 2023").(decimal.Decimal); !got.Equal(dec("12500")) {
		t.Fatalf("text cell = %s, want 12500", got)
	}
	if len(tbl.Warnings) != 0 {
		t.Fatalf("warnings = %v", tbl.Warnings)
	}
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		opt    Options
		src    datasource.Source
		role   schema.Role
		kind   etlerr.Kind
		substr string
	}{
		{
			name: "unsupported_extension",
			src:  src("saldos.pdf", balancesCSV),
			role: schema.RoleBalances, kind: etlerr.KindFormat, substr: "unsupported file type",
		},
		{
			name: "oversize",
			opt:  Options{MaxFileSize: 16},
			src:  src("saldos.csv", balancesCSV),
			role: schema.RoleBalances, kind: etlerr.KindFormat, substr: "exceeds",
		},
		{
			name: "empty_file",
			src:  src("saldos.csv", "\n\n"),
			role: schema.RoleBalances, kind: etlerr.KindFormat, substr: "empty",
		},
		{
			name: "corrupt_workbook",
			src:  src("saldos.xlsx", "not a zip"),
			role: schema.RoleBalances, kind: etlerr.KindFormat,
		},
		{
			name: "balances_without_periods",
			src:  src("saldos.csv", "Conta;Parcela;Total\n1;1;10\n"),
			role: schema.RoleBalances, kind: etlerr.KindSchema, substr: "no period columns",
		},
		{
			name: "redemptions_missing_columns",
			src:  src("resgates.csv", "Conta;Parcela\n1;1\n"),
			role: schema.RoleRedemptions, kind: etlerr.KindSchema, substr: "redemption_date, value",
		},
		{
			name: "balances_missing_account",
			src:  src("saldos.csv", "Parcela;Saldo JANEIRO23\n1;10\n"),
			role: schema.RoleBalances, kind: etlerr.KindSchema, substr: "account",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tc.opt).Extract(context.Background(), tc.src, tc.role)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := etlerr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %v, want %v (err %v)", got, tc.kind, err)
			}
			if tc.substr != "" && !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("err %q lacks %q", err, tc.substr)
			}
		})
	}
}

func TestExtract_DuplicateFieldColumn(t *testing.T) {
	t.Parallel()

	in := "Conta;Parcela;Conta Judicial;Saldo JANEIRO23;Saldo JAN23\n1;1;2;10;20\n"
	tbl, err := New(Options{}).Extract(context.Background(), src("saldos.csv", in), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := tbl.Rows[0].Get(schema.FieldAccount); got != schema.AccountKey("1") {
		t.Fatalf("first account column should win, got %#v", got)
	}
	if len(tbl.PeriodColumns) != 1 {
		t.Fatalf("PeriodColumns = %q", tbl.PeriodColumns)
	}
	if len(tbl.Warnings) != 2 {
		t.Fatalf("want two ignored-column warnings, got %v", tbl.Warnings)
	}
	for _, w := range tbl.Warnings {
		if !strings.Contains(w.Message, "column ignored") {
			t.Fatalf("warning = %q", w.Message)
		}
	}
}

func TestExtract_KeywordFallback(t *testing.T) {
	t.Parallel()

	in := "Identificação da Conta Judicial|Parcela Nº|Data Efetiva do Resgate|Valor Resgatado Bruto\n" +
		"77|2|05/06/2024|1.234,56\n"
	tbl, err := New(Options{}).Extract(context.Background(), src("resgates.txt", in), schema.RoleRedemptions)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	r := tbl.Rows[0]
	if r.Get(schema.FieldAccount) != schema.AccountKey("77") || r.Get(schema.FieldInstallment) != 2 {
		t.Fatalf("row = %#v", r.Values())
	}
	if r.Get(schema.FieldRedemptionDate) != date(2024, time.June, 5) {
		t.Fatalf("redemption_date = %#v", r.Get(schema.FieldRedemptionDate))
	}
	if got := r.Get(schema.FieldValue).(decimal.Decimal); !got.Equal(dec("1234.56")) {
		t.Fatalf("value = %s", got)
	}
}

func TestExtract_XLSXSerialDates(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Número da Conta Judicial", "Número da Parcela", "DT_RSGT_DEP_JDCL", "Valor total resgatado"},
		{123.0, 1, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 99.9},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := New(Options{}).Extract(context.Background(), src("resgates.xlsx", buf.String()), schema.RoleRedemptions)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	r := tbl.Rows[0]
	if r.Get(schema.FieldAccount) != schema.AccountKey("123") {
		t.Fatalf("account = %#v", r.Get(schema.FieldAccount))
	}
	if r.Get(schema.FieldRedemptionDate) != date(2023, time.January, 1) {
		t.Fatalf("redemption_date = %#v", r.Get(schema.FieldRedemptionDate))
	}
	if got := r.Get(schema.FieldValue).(decimal.Decimal); !got.Equal(dec("99.9")) {
		t.Fatalf("value = %s", got)
	}
}

func TestExtract_XLS(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("testdata/escrow.xls")
	if err != nil {
		t.Fatal(err)
	}
	xlsSrc := datasource.Bytes{Filename: "escrow.xls", Data: data}

	bal, err := New(Options{}).Extract(context.Background(), xlsSrc, schema.RoleBalances)
	if err != nil {
		t.Fatalf("Extract balances: %v", err)
	}
	if got := strings.Join(bal.PeriodColumns, "|"); got != "Saldo JANEIRO23" {
		t.Fatalf("PeriodColumns = %q", got)
	}
	if len(bal.Rows) != 3 || len(bal.Warnings) != 0 {
		t.Fatalf("rows=%d warnings=%v", len(bal.Rows), bal.Warnings)
	}
	balances := []struct {
		line    int
		account schema.AccountKey
		amount  string
	}{
		{2, "123", "100.5"},
		{3, "456", "1234.56"},
		{5, "789", "10"},
	}
	for i, w := range balances {
		r := bal.Rows[i]
		if r.Line() != w.line || r.Get(schema.FieldAccount) != w.account {
			t.Fatalf("row %d = line %d account %#v", i, r.Line(), r.Get(schema.FieldAccount))
		}
		if got := r.Get("Saldo JANEIRO23").(decimal.Decimal); !got.Equal(dec(w.amount)) {
			t.Fatalf("row %d balance = %s, want %s", i, got, w.amount)
		}
	}

	red, err := New(Options{Sheet: "Resgates"}).Extract(context.Background(), xlsSrc, schema.RoleRedemptions)
	if err != nil {
		t.Fatalf("Extract redemptions: %v", err)
	}
	if len(red.Rows) != 2 || len(red.Warnings) != 0 {
		t.Fatalf("rows=%d warnings=%v", len(red.Rows), red.Warnings)
	}
	if got := red.Rows[0].Get(schema.FieldRedemptionDate); got != date(2023, time.February, 10) {
		t.Fatalf("serial redemption_date = %#v", got)
	}
	if got := red.Rows[1].Get(schema.FieldRedemptionDate); got != date(2023, time.March, 5) {
		t.Fatalf("text redemption_date = %#v", got)
	}
	if got := red.Rows[1].Get(schema.FieldValue).(decimal.Decimal); !got.Equal(dec("12500")) {
		t.Fatalf("text value = %s, want 12500", got)
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	e := New(Options{})
	info, err := e.Inspect(context.Background(), src("saldos.csv", balancesCSV), schema.RoleBalances)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !info.Supported || info.Format != FormatDelimited || info.Extension != ".csv" {
		t.Fatalf("info = %+v", info)
	}
	if info.Size != int64(len(balancesCSV)) || info.Rows != 3 || len(info.Samples) != 3 {
		t.Fatalf("size=%d rows=%d samples=%d", info.Size, info.Rows, len(info.Samples))
	}
	if info.Fields[schema.FieldAccount] != "Conta Judicial" || info.Fields[schema.FieldInstallment] != "Parcela" {
		t.Fatalf("Fields = %v", info.Fields)
	}
	if len(info.PeriodColumns) != 3 || len(info.MissingFields) != 0 {
		t.Fatalf("periods=%v missing=%v", info.PeriodColumns, info.MissingFields)
	}

	info, err = e.Inspect(context.Background(), src("resgates.csv", "Conta;Parcela\n1;1\n"), schema.RoleRedemptions)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := strings.Join(info.MissingFields, ","); got != "redemption_date,value" {
		t.Fatalf("MissingFields = %q", got)
	}

	info, err = e.Inspect(context.Background(), src("notes.docx", "x"), schema.RoleBalances)
	if err != nil || info.Supported {
		t.Fatalf("unsupported file: info=%+v err=%v", info, err)
	}
}
