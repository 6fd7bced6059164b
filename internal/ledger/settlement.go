package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
)

// SettlementEpsilon is the tolerance, in whole currency units, under which
// the two members are considered square. It absorbs rounding noise left by
// installment shares and two-decimal settlement amounts.
var SettlementEpsilon = decimal.NewFromInt(1)

// Debt is the shared-expense position between the two members for one
// currency over a set of (usually period-filtered) transactions.
type Debt struct {
	Currency    core.Currency                   `json:"currency"`
	Paid        map[core.Member]decimal.Decimal `json:"paid"`
	Settled     map[core.Member]decimal.Decimal `json:"settled"`
	TotalShared decimal.Decimal                 `json:"totalShared"`
	Target      decimal.Decimal                 `json:"target"`
	// Diff is the first member's net contribution minus the fair half.
	Diff     decimal.Decimal `json:"diff"`
	Debtor   core.Member     `json:"debtor,omitempty"`
	Creditor core.Member     `json:"creditor,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

// IsSettled reports whether nobody owes anything.
func (d Debt) IsSettled() bool {
	return d.Debtor == ""
}

// Summary renders the position the way the household reads it.
func (d Debt) Summary() string {
	if d.IsSettled() {
		return "Están a mano"
	}
	return fmt.Sprintf("%s le debe a %s", d.Debtor, d.Creditor)
}

// ComputeDebt nets shared expenses against settlement transfers.
//
// Each member's contribution is what they paid for shared expenses (the
// monthly share for installment purchases) plus the settlements they sent,
// minus the settlements they received. Whoever contributed more than half of
// the shared total is owed the difference.
func ComputeDebt(txs []core.Transaction, currency core.Currency) Debt {
	a, b := core.Members[0], core.Members[1]
	d := Debt{
		Currency: currency,
		Paid:     map[core.Member]decimal.Decimal{a: decimal.Zero, b: decimal.Zero},
		Settled:  map[core.Member]decimal.Decimal{a: decimal.Zero, b: decimal.Zero},
	}
	for _, tx := range txs {
		if tx.Currency != currency || !tx.Payer.Valid() {
			continue
		}
		switch {
		case tx.Nature == core.NatureExpense && tx.Beneficiary == core.BeneficiaryShared:
			d.Paid[tx.Payer] = d.Paid[tx.Payer].Add(PeriodShare(tx))
		case tx.Nature == core.NatureTransfer && tx.IsSettlement:
			d.Settled[tx.Payer] = d.Settled[tx.Payer].Add(tx.Amount)
		}
	}

	d.TotalShared = d.Paid[a].Add(d.Paid[b])
	d.Target = d.TotalShared.Div(decimal.NewFromInt(2))
	netA := d.Paid[a].Add(d.Settled[a]).Sub(d.Settled[b])
	d.Diff = netA.Sub(d.Target)

	switch {
	case d.Diff.Abs().LessThan(SettlementEpsilon):
		d.Amount = decimal.Zero
	case d.Diff.IsPositive():
		d.Debtor, d.Creditor, d.Amount = b, a, d.Diff
	default:
		d.Debtor, d.Creditor, d.Amount = a, b, d.Diff.Abs()
	}
	return d
}

// Prefill is the suggested settlement transfer shown before the user
// confirms it.
type Prefill struct {
	Nature               core.Nature        `json:"nature"`
	Amount               decimal.Decimal    `json:"amount"`
	Currency             core.Currency      `json:"currency"`
	Payer                core.Member        `json:"payer"`
	Creditor             core.Member        `json:"creditor"`
	Description          string             `json:"description"`
	IsSettlement         bool               `json:"isSettlement"`
	SourceAccountID      string             `json:"paymentMethodId,omitempty"`
	DestinationAccountID string             `json:"toPaymentMethodId,omitempty"`
	SourceOptions        []accounts.Account `json:"sourceOptions"`
	DestinationOptions   []accounts.Account `json:"destinationOptions"`
}

var shortMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}

// SettlementDescription is the default description of a settlement for p.
func SettlementDescription(p core.Period) string {
	return "Liquidación mes " + shortMonths[p.Month-1]
}

// SettlementPrefill suggests a transfer from the debtor's first liquid
// account to the creditor's. It fails with core.ErrNoDebt when the members
// are square.
func SettlementPrefill(d Debt, reg *accounts.Registry, p core.Period) (Prefill, error) {
	if d.IsSettled() {
		return Prefill{}, core.ErrNoDebt
	}
	pf := Prefill{
		Nature:             core.NatureTransfer,
		Amount:             core.Round2(d.Amount),
		Currency:           d.Currency,
		Payer:              d.Debtor,
		Creditor:           d.Creditor,
		Description:        SettlementDescription(p),
		IsSettlement:       true,
		SourceOptions:      reg.LiquidAccounts(d.Debtor),
		DestinationOptions: reg.LiquidAccounts(d.Creditor),
	}
	if len(pf.SourceOptions) > 0 {
		pf.SourceAccountID = pf.SourceOptions[0].ID
	}
	if len(pf.DestinationOptions) > 0 {
		pf.DestinationAccountID = pf.DestinationOptions[0].ID
	}
	return pf, nil
}

// SettlementRequest carries the user's choices for a settlement.
type SettlementRequest struct {
	SourceAccountID      string
	DestinationAccountID string
	OccurredAt           time.Time
	Description          string
}

// BuildSettlement constructs the settlement transfer for d, the debt of p.
// The source must be one of the debtor's liquid accounts and the
// destination one of the creditor's. The transfer is dated inside p so it
// nets against the debt it settles: an explicit date must fall in p, and
// without one it is now when now is in p, else noon on p's last day. Funds
// are not checked here; the result still goes through the Validator.
func BuildSettlement(d Debt, reg *accounts.Registry, p core.Period, req SettlementRequest, now time.Time) (core.Transaction, error) {
	if d.IsSettled() {
		return core.Transaction{}, core.ErrNoDebt
	}
	src, err := pickLiquid(reg, d.Debtor, req.SourceAccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	dst, err := pickLiquid(reg, d.Creditor, req.DestinationAccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	when, err := settlementDate(p, req.OccurredAt, now)
	if err != nil {
		return core.Transaction{}, err
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = SettlementDescription(p)
	}
	return core.Transaction{
		ID:                   core.NewID(),
		Amount:               core.Round2(d.Amount),
		Currency:             d.Currency,
		Description:          desc,
		OccurredAt:           when,
		Payer:                d.Debtor,
		Beneficiary:          core.BeneficiaryShared,
		Nature:               core.NatureTransfer,
		SourceAccountID:      src.ID,
		DestinationAccountID: dst.ID,
		IsSettlement:         true,
	}, nil
}

func settlementDate(p core.Period, requested, now time.Time) (time.Time, error) {
	if !requested.IsZero() {
		if !p.Contains(requested) {
			return time.Time{}, core.Reject(fmt.Errorf("%w: %s is not in %s",
				core.ErrOutsideSettledMonth, requested.Format(time.DateOnly), p))
		}
		return requested, nil
	}
	if now.IsZero() {
		now = time.Now()
	}
	if p.Contains(now) {
		return now, nil
	}
	end := p.End()
	return time.Date(end.Year(), end.Month(), end.Day(), 12, 0, 0, 0, end.Location()), nil
}

func pickLiquid(reg *accounts.Registry, m core.Member, id string) (accounts.Account, error) {
	a, ok := reg.Lookup(id)
	if !ok {
		return accounts.Account{}, core.Reject(fmt.Errorf("%w: %q", core.ErrUnknownAccount, id))
	}
	for _, l := range reg.LiquidAccounts(m) {
		if l.ID == a.ID {
			return a, nil
		}
	}
	return accounts.Account{}, core.Reject(fmt.Errorf("%w: %s is not a liquid account of %s", core.ErrHolderNotAllowed, a.ID, m))
}
