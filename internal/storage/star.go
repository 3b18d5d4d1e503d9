package storage

import (
	"strings"

	"escrowetl/internal/config"
	"escrowetl/internal/ddl"
	"escrowetl/internal/schema"
)

// Column names of the star schema. Every table is scoped by run_id so
// repeated runs append side by side.
const (
	ColRunID           = "run_id"
	ColAccountID       = "account_id"
	ColAccountKey      = "account_key"
	ColFirstSeenSource = "first_seen_source"
	ColInstallment     = "installment_number"
	ColPeriod          = "period"
	ColBalanceAmount   = "balance_amount"
	ColRedemptionSeq   = "redemption_seq"
	ColRedemptionDate  = "redemption_date"
	ColCompetenceDate  = "competence_date"
	ColValueAmount     = "value_amount"
	ColAgreementCode   = "agreement_code"
)

// StarSchema returns the definitions of the account dimension and the two
// fact tables, in creation order.
func StarSchema(t config.Tables) []ddl.TableDef {
	owner := []string{ColRunID, ColAccountID}
	return []ddl.TableDef{
		{
			FQN: t.Accounts,
			Columns: []ddl.ColumnDef{
				{Name: ColRunID, Kind: ddl.KindKey, PrimaryKey: true},
				{Name: ColAccountID, Kind: ddl.KindBigInt, PrimaryKey: true},
				{Name: ColAccountKey, Kind: ddl.KindKey},
				{Name: ColFirstSeenSource, Kind: ddl.KindKey},
			},
			Unique: [][]string{{ColRunID, ColAccountKey}},
		},
		{
			FQN: t.Balances,
			Columns: []ddl.ColumnDef{
				{Name: ColRunID, Kind: ddl.KindKey, PrimaryKey: true},
				{Name: ColAccountID, Kind: ddl.KindBigInt, PrimaryKey: true},
				{Name: ColInstallment, Kind: ddl.KindInt, PrimaryKey: true},
				{Name: ColPeriod, Kind: ddl.KindKey, PrimaryKey: true},
				{Name: ColBalanceAmount, Kind: ddl.KindDecimal},
			},
			ForeignKeys: []ddl.ForeignKey{{Columns: owner, RefTable: t.Accounts, RefColumns: owner}},
		},
		{
			FQN: t.Redemptions,
			Columns: []ddl.ColumnDef{
				{Name: ColRunID, Kind: ddl.KindKey, PrimaryKey: true},
				{Name: ColRedemptionSeq, Kind: ddl.KindBigInt, PrimaryKey: true},
				{Name: ColAccountID, Kind: ddl.KindBigInt},
				{Name: ColInstallment, Kind: ddl.KindInt},
				{Name: ColRedemptionDate, Kind: ddl.KindDate},
				{Name: ColCompetenceDate, Kind: ddl.KindDate},
				{Name: ColValueAmount, Kind: ddl.KindDecimal},
				{Name: ColAgreementCode, Kind: ddl.KindText, Nullable: true},
			},
			ForeignKeys: []ddl.ForeignKey{{Columns: owner, RefTable: t.Accounts, RefColumns: owner}},
		},
	}
}

// The row builders emit int64 for every integer column, decimal.Decimal for
// amounts and time.Time for dates. Backends encode those as their drivers
// require.

func accountRow(runID string) func(int, schema.DimAccount) []any {
	return func(_ int, a schema.DimAccount) []any {
		return []any{runID, a.AccountID, string(a.AccountKey), string(a.FirstSeenSource)}
	}
}

func balanceRow(runID string) func(int, schema.FactBalance) []any {
	return func(_ int, b schema.FactBalance) []any {
		return []any{runID, b.AccountID, int64(b.InstallmentNumber), b.Period.String(), b.BalanceAmount}
	}
}

// redemptionRow numbers redemptions from 1 in output order.
func redemptionRow(runID string) func(int, schema.FactRedemption) []any {
	return func(i int, r schema.FactRedemption) []any {
		var agreement any
		if r.AgreementCode != nil {
			agreement = *r.AgreementCode
		}
		return []any{
			runID,
			int64(i + 1),
			r.AccountID,
			int64(r.InstallmentNumber),
			r.RedemptionDate,
			r.CompetenceDate,
			r.ValueAmount,
			agreement,
		}
	}
}

// missingColumns returns the names in want that have no case-insensitive
// match in have, in want order.
func missingColumns(want, have []string) []string {
	present := make(map[string]bool, len(have))
	for _, h := range have {
		present[strings.ToLower(strings.TrimSpace(h))] = true
	}
	var missing []string
	for _, w := range want {
		if !present[strings.ToLower(w)] {
			missing = append(missing, w)
		}
	}
	return missing
}
