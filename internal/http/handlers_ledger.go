package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"brunance/internal/accounts"
	"brunance/internal/core"
	"brunance/internal/ledger"
)

type balancesView struct {
	Currency core.Currency           `json:"currency"`
	Accounts []ledger.AccountBalance `json:"accounts"`
	Total    decimal.Decimal         `json:"total"`
}

type debtView struct {
	ledger.Debt
	Settled bool   `json:"settled"`
	Text    string `json:"text"`
}

type summaryView struct {
	Summary  ledger.Summary `json:"summary"`
	Balances balancesView   `json:"balances"`
	Debt     debtView       `json:"debt"`
}

type settlementView struct {
	Period  string          `json:"period"`
	Debt    debtView        `json:"debt"`
	Prefill *ledger.Prefill `json:"prefill,omitempty"`
}

func newDebtView(d ledger.Debt) debtView {
	return debtView{Debt: d, Settled: d.IsSettled(), Text: d.Summary()}
}

func (s *Server) balances(currency core.Currency) balancesView {
	list := s.ledger.Balances(currency)
	if list == nil {
		list = []ledger.AccountBalance{}
	}
	return balancesView{Currency: currency, Accounts: list, Total: ledger.Sum(list)}
}

// periodOrCurrent returns the requested month, or the current one.
func (s *Server) periodOrCurrent(r *http.Request) (core.Period, error) {
	p, ok, err := parsePeriod(r)
	if err != nil {
		return core.Period{}, err
	}
	if !ok {
		p = s.ledger.CurrentPeriod()
	}
	return p, nil
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	reg := s.ledger.Registry()
	list := reg.All()
	if m := core.Member(r.URL.Query().Get("holder")); m != "" {
		if !m.Valid() {
			writeServiceError(w, r, badRequest("invalid holder %q", m))
			return
		}
		list = reg.UsableBy(m)
	}
	if list == nil {
		list = []accounts.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	currency, err := parseCurrency(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.balances(currency))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := s.periodOrCurrent(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	currency, err := parseCurrency(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	key := fmt.Sprintf("%d|%s|%s", s.ledger.Revision(), p, currency)
	view, ok := s.summaryCache.Get(key)
	if !ok {
		view = summaryView{
			Summary:  s.ledger.Summary(p, currency),
			Balances: s.balances(currency),
			Debt:     newDebtView(s.ledger.Debt(p, currency)),
		}
		s.summaryCache.Set(key, view)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSettlementPrefill(w http.ResponseWriter, r *http.Request) {
	p, err := s.periodOrCurrent(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	currency, err := parseCurrency(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view := settlementView{Period: p.String(), Debt: newDebtView(s.ledger.Debt(p, currency))}
	pf, err := s.ledger.Prefill(p, currency)
	switch {
	case err == nil:
		view.Prefill = &pf
	case !errors.Is(err, core.ErrNoDebt):
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type settleRequest struct {
	Year                 int           `json:"year"`
	Month                int           `json:"month"`
	Currency             core.Currency `json:"currency"`
	SourceAccountID      string        `json:"paymentMethodId"`
	DestinationAccountID string        `json:"toPaymentMethodId"`
	Date                 string        `json:"date"`
	Description          string        `json:"description"`
}

// handleSettle commits the settlement transfer. Accounts left empty default
// to the suggested ones.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	p := s.ledger.CurrentPeriod()
	if req.Year != 0 || req.Month != 0 {
		var err error
		if p, err = core.NewPeriod(req.Year, req.Month); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	currency := req.Currency
	if currency == "" {
		currency = core.CurrencyARS
	}
	if !currency.Valid() {
		writeServiceError(w, r, badRequest("%v: %q", core.ErrInvalidCurrency, currency))
		return
	}
	when, err := parseDate(req.Date, s.ledger.Location())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if req.SourceAccountID == "" || req.DestinationAccountID == "" {
		pf, err := s.ledger.Prefill(p, currency)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if req.SourceAccountID == "" {
			req.SourceAccountID = pf.SourceAccountID
		}
		if req.DestinationAccountID == "" {
			req.DestinationAccountID = pf.DestinationAccountID
		}
	}

	committed, err := s.ledger.Settle(r.Context(), p, currency, ledger.SettlementRequest{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		OccurredAt:           when,
		Description:          sanitizeInput(req.Description),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+committed.ID)
	writeJSON(w, http.StatusCreated, committed)
}
