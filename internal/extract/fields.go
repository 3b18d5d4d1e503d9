package extract

import (
	"strings"

	"escrowetl/internal/period"
	"escrowetl/internal/schema"
	"escrowetl/internal/textnorm"
)

type valueKind int

const (
	kindText valueKind = iota
	kindKey
	kindInt
	kindDecimal
	kindDate
)

// field describes one fixed column a role understands. Aliases are compact
// header forms (textnorm.Compact) matched exactly; each keyword group matches
// when every keyword is contained in the compact header.
type field struct {
	name     string
	kind     valueKind
	required bool
	aliases  []string
	keywords [][]string
}

var accountField = field{
	name: schema.FieldAccount, kind: kindKey, required: true,
	aliases: []string{
		"conta", "contajudicial", "numerodacontajudicial", "numerocontajudicial",
		"nrcontajudicial", "nrconta", "numeroconta", "numerodaconta",
		"account", "accountid", "accountnumber", "accountkey",
	},
	keywords: [][]string{{"conta", "judicial"}, {"account"}},
}

var installmentField = field{
	name: schema.FieldInstallment, kind: kindInt, required: true,
	aliases: []string{
		"parcela", "numerodaparcela", "numeroparcela", "nrparcela",
		"installment", "installmentnumber",
	},
	keywords: [][]string{{"parcela"}, {"installment"}},
}

var balanceFields = []field{accountField, installmentField}

var redemptionFields = []field{
	accountField,
	installmentField,
	{
		name: schema.FieldRedemptionDate, kind: kindDate, required: true,
		aliases: []string{
			"dtrsgtdepjdcl", "datadoresgate", "dataresgate", "dtresgate",
			"redemptiondate", "data", "date",
		},
		keywords: [][]string{{"resgate", "data"}, {"rsgt", "dt"}, {"redemption", "date"}},
	},
	{
		name: schema.FieldValue, kind: kindDecimal, required: true,
		aliases: []string{
			"valortotalresgatado", "valorresgatado", "valordoresgate", "vlresgate",
			"vltotalresgatado", "valor", "value", "redemptionvalue", "amount",
		},
		keywords: [][]string{{"valor", "resgat"}, {"vl", "rsgt"}},
	},
	{
		name: schema.FieldCompetenceDate, kind: kindDate,
		aliases:  []string{"competencia", "datacompetencia", "datadecompetencia", "dtcompetencia", "competencedate"},
		keywords: [][]string{{"competencia"}, {"competence"}},
	},
	{
		name: schema.FieldAgreement, kind: kindText,
		aliases: []string{
			"numerodoconvenioderepasse", "numerodoconveniorepasse", "cdconveniorepasse",
			"conveniorepasse", "convenio", "agreementcode", "agreement",
		},
		keywords: [][]string{{"convenio"}, {"repasse"}, {"agreement"}},
	},
}

func fieldsFor(role schema.Role) []field {
	if role == schema.RoleBalances {
		return balanceFields
	}
	return redemptionFields
}

func (f field) matchesAlias(compact string) bool {
	for _, a := range f.aliases {
		if a == compact {
			return true
		}
	}
	return false
}

func (f field) matchesKeywords(compact string) bool {
	for _, group := range f.keywords {
		all := true
		for _, kw := range group {
			if !strings.Contains(compact, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// column is one resolved input column.
type column struct {
	index  int    // position in the raw grid
	header string // original header text
	name   string // field name, period header, or original header
	kind   valueKind
	period bool
}

// layout is the result of header resolution.
type layout struct {
	columns []column
	// fields maps field name to its source header.
	fields   map[string]string
	periods  []string
	missing  []string
	warnings []schema.Warning
}

// resolve maps raw headers to fields for role. Exact aliases are tried on
// every header before keyword groups; the first header to claim a field
// wins.
func resolve(role schema.Role, headers []string) layout {
	fields := fieldsFor(role)
	l := layout{fields: make(map[string]string, len(fields))}

	compact := make([]string, len(headers))
	for i, h := range headers {
		compact[i] = textnorm.Compact(h)
	}
	assigned := make([]*field, len(headers))
	skip := make([]bool, len(headers))
	seenPeriod := make(map[period.Period]string)

	warn := func(h, msg string) {
		l.warnings = append(l.warnings, schema.Warning{Role: role, Column: h, Message: msg})
	}

	if role == schema.RoleBalances {
		for i, h := range headers {
			p, ok := period.ParseHeader(h)
			if !ok {
				continue
			}
			skip[i] = true
			if prev, dup := seenPeriod[p]; dup {
				warn(h, "period "+p.String()+" already read from column \""+prev+"\"; column ignored")
				continue
			}
			seenPeriod[p] = h
			l.periods = append(l.periods, h)
			l.columns = append(l.columns, column{index: i, header: h, name: h, kind: kindDecimal, period: true})
		}
	}

	for i := range headers {
		if skip[i] || compact[i] == "" {
			continue
		}
		for fi := range fields {
			f := &fields[fi]
			if !f.matchesAlias(compact[i]) {
				continue
			}
			if prev, claimed := l.fields[f.name]; claimed {
				warn(headers[i], "duplicate "+f.name+" column; already read from \""+prev+"\"; column ignored")
				skip[i] = true
				break
			}
			l.fields[f.name] = headers[i]
			assigned[i] = f
			break
		}
	}

	for fi := range fields {
		f := &fields[fi]
		if _, claimed := l.fields[f.name]; claimed {
			continue
		}
		for i := range headers {
			if skip[i] || assigned[i] != nil || compact[i] == "" {
				continue
			}
			if f.matchesKeywords(compact[i]) {
				l.fields[f.name] = headers[i]
				assigned[i] = f
				break
			}
		}
	}

	for _, f := range fields {
		if _, ok := l.fields[f.name]; !ok && f.required {
			l.missing = append(l.missing, f.name)
		}
	}

	var out []column
	for i, h := range headers {
		switch {
		case assigned[i] != nil:
			out = append(out, column{index: i, header: h, name: assigned[i].name, kind: assigned[i].kind})
		case skip[i]:
			// period or ignored duplicate; periods are merged below
		default:
			name := h
			if strings.TrimSpace(name) == "" {
				continue
			}
			out = append(out, column{index: i, header: h, name: name, kind: kindText})
		}
	}
	l.columns = mergeByIndex(out, l.columns)
	return l
}

// mergeByIndex merges two index-sorted column lists.
func mergeByIndex(a, b []column) []column {
	out := make([]column, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].index < b[j].index {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
