// Package transformer reshapes extracted tables into the star schema.
//
// Build reconciles account keys across both inputs into DimAccount, unpivots
// the wide balances table into one FactBalance per (row, period), and turns
// each redemption row into a FactRedemption. Only slices and the
// insertion-ordered account registry are iterated, so equal inputs always
// produce equal outputs, ids included.
package transformer

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"escrowetl/internal/coerce"
	"escrowetl/internal/etlerr"
	"escrowetl/internal/period"
	"escrowetl/internal/schema"
)

// Build produces the star schema for one run. Either table may be nil.
// Balances are scanned before redemptions, which fixes the id order.
func Build(balances, redemptions *schema.Table) (*schema.Output, error) {
	b := &builder{
		reg:      newRegistry(),
		balances: newKeepFirst[balanceKey](),
		out:      &schema.Output{},
	}
	if balances != nil {
		b.addBalances(balances)
	}
	if redemptions != nil {
		b.addRedemptions(redemptions)
	}
	if b.reg.len() == 0 {
		return nil, etlerr.New(etlerr.KindReconciliation, "transform",
			"no valid account key found in either input")
	}
	b.out.Accounts = b.reg.accounts

	log.Debug("transformed",
		"accounts", len(b.out.Accounts),
		"balance_facts", len(b.out.Balances),
		"redemption_facts", len(b.out.Redemptions),
		"warnings", len(b.out.Warnings))
	return b.out, nil
}

type builder struct {
	reg      *registry
	balances *keepFirst[balanceKey]
	out      *schema.Output
}

func (b *builder) warn(role schema.Role, line int, column, format string, args ...any) {
	b.out.Warnings = append(b.out.Warnings, schema.Warning{
		Role: role, Line: line, Column: column, Message: fmt.Sprintf(format, args...),
	})
}

func (b *builder) addBalances(t *schema.Table) {
	type periodColumn struct {
		header string
		p      period.Period
	}
	cols := make([]periodColumn, 0, len(t.PeriodColumns))
	for _, h := range t.PeriodColumns {
		p, ok := period.ParseHeader(h)
		if !ok {
			b.warn(t.Role, 0, h, "not a period header; column skipped")
			continue
		}
		cols = append(cols, periodColumn{header: h, p: p})
	}

	for _, row := range t.Rows {
		key, ok := row.Get(schema.FieldAccount).(schema.AccountKey)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldAccount, "missing account key; row excluded")
			continue
		}
		id := b.reg.add(key, schema.RoleBalances)

		inst, ok := row.Get(schema.FieldInstallment).(int)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldInstallment, "missing installment for account %s; row excluded", key)
			continue
		}

		for _, c := range cols {
			amount, ok := row.Get(c.header).(decimal.Decimal)
			if !ok {
				continue
			}
			k := balanceKey{account: id, installment: inst, period: c.p}
			if prev, isNew := b.balances.claim(k, row.Line()); !isNew {
				b.warn(t.Role, row.Line(), c.header,
					"duplicate balance for account %s installment %d period %s; keeping line %d",
					key, inst, c.p, prev)
				continue
			}
			b.out.Balances = append(b.out.Balances, schema.FactBalance{
				AccountID:         id,
				InstallmentNumber: inst,
				Period:            c.p,
				BalanceAmount:     amount.Round(coerce.AmountScale),
			})
		}
	}
}

func (b *builder) addRedemptions(t *schema.Table) {
	for _, row := range t.Rows {
		key, ok := row.Get(schema.FieldAccount).(schema.AccountKey)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldAccount, "missing account key; row excluded")
			continue
		}
		id, known := b.reg.lookup(key)
		if !known {
			id = b.reg.add(key, schema.RoleRedemptions)
			b.warn(t.Role, row.Line(), schema.FieldAccount,
				"account %s is not in the balances file; added to the account dimension", key)
		}

		inst, ok := row.Get(schema.FieldInstallment).(int)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldInstallment, "missing installment for account %s; row excluded", key)
			continue
		}
		when, ok := row.Get(schema.FieldRedemptionDate).(time.Time)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldRedemptionDate, "missing redemption date for account %s; row excluded", key)
			continue
		}
		value, ok := row.Get(schema.FieldValue).(decimal.Decimal)
		if !ok {
			b.warn(t.Role, row.Line(), schema.FieldValue, "missing redemption value for account %s; row excluded", key)
			continue
		}
		competence, ok := row.Get(schema.FieldCompetenceDate).(time.Time)
		if !ok {
			competence = when
		}

		fact := schema.FactRedemption{
			AccountID:         id,
			InstallmentNumber: inst,
			RedemptionDate:    when,
			CompetenceDate:    competence,
			ValueAmount:       value.Round(coerce.AmountScale),
		}
		if code, ok := row.Get(schema.FieldAgreement).(string); ok && code != "" {
			fact.AgreementCode = &code
		}
		b.out.Redemptions = append(b.out.Redemptions, fact)
	}
}
