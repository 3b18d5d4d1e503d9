// Package schema holds the in-memory data model shared by the extractor,
// transformer, and loader: raw tables read from input files and the star
// schema rows derived from them.
package schema

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"escrowetl/internal/period"
)

// DateLayout is the canonical date rendering used for persisted dates.
const DateLayout = "2006-01-02"

// Role tells which input a table came from.
type Role string

const (
	RoleBalances    Role = "balances"
	RoleRedemptions Role = "redemptions"
)

// DimAccount is one row of the account dimension.
type DimAccount struct {
	AccountID       int64      `db:"account_id" json:"account_id"`
	AccountKey      AccountKey `db:"account_key" json:"account_key"`
	FirstSeenSource Role       `db:"first_seen_source" json:"first_seen_source"`
}

// FactBalance is the balance of one installment of one account at the end of
// one month.
type FactBalance struct {
	AccountID         int64           `db:"account_id" json:"account_id"`
	InstallmentNumber int             `db:"installment_number" json:"installment_number"`
	Period            period.Period   `db:"period" json:"period"`
	BalanceAmount     decimal.Decimal `db:"balance_amount" json:"balance_amount"`
}

// FactRedemption is one withdrawal from an escrow account.
type FactRedemption struct {
	AccountID         int64           `db:"account_id" json:"account_id"`
	InstallmentNumber int             `db:"installment_number" json:"installment_number"`
	RedemptionDate    time.Time       `db:"redemption_date" json:"redemption_date"`
	CompetenceDate    time.Time       `db:"competence_date" json:"competence_date"`
	ValueAmount       decimal.Decimal `db:"value_amount" json:"value_amount"`
	AgreementCode     *string         `db:"agreement_code" json:"agreement_code,omitempty"`
}

// Warning is a recoverable, row-level anomaly. Line is the 1-based line (or
// spreadsheet row) in the source file; zero when not tied to a row.
type Warning struct {
	Role    Role   `json:"role"`
	Line    int    `json:"line,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	s := string(w.Role)
	if w.Line > 0 {
		s += " line " + strconv.Itoa(w.Line)
	}
	if w.Column != "" {
		s += " column " + `"` + w.Column + `"`
	}
	return s + ": " + w.Message
}

// Output is the star schema produced by one transformation run.
type Output struct {
	Accounts    []DimAccount
	Balances    []FactBalance
	Redemptions []FactRedemption
	Warnings    []Warning
}
