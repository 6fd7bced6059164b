package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"brunance/internal/core"
	"brunance/internal/ledger"
)

// transactionRequest is a candidate as typed by a client. Amount may be a
// JSON number or a string holding an arithmetic expression.
type transactionRequest struct {
	ID                   string           `json:"id"`
	Amount               json.RawMessage  `json:"amount"`
	Currency             core.Currency    `json:"currency"`
	Description          string           `json:"description"`
	Date                 string           `json:"date"`
	Payer                core.Member      `json:"payer"`
	Beneficiary          core.Beneficiary `json:"type"`
	Nature               core.Nature      `json:"nature"`
	SourceAccountID      string           `json:"paymentMethodId"`
	DestinationAccountID string           `json:"toPaymentMethodId"`
	IsSettlement         bool             `json:"isSettlement"`
	Installments         int              `json:"installments"`
}

type transactionList struct {
	Period       string             `json:"period,omitempty"`
	Count        int                `json:"count"`
	Transactions []core.Transaction `json:"transactions,omitempty"`
	Days         []ledger.Day       `json:"days,omitempty"`
}

// evalAmountField evaluates a raw JSON amount.
func evalAmountField(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, fmt.Errorf("%w: missing amount", core.ErrMalformedAmount)
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", core.ErrMalformedAmount, err)
		}
	}
	return core.EvalAmount(s)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, hasPeriod, err := parsePeriod(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Read the revision before the data so a concurrent write can only make
	// the cached value newer than its key, never older.
	rev := s.ledger.Revision()
	key := fmt.Sprintf("%d|all", rev)
	var period *core.Period
	if hasPeriod {
		period = &p
		key = fmt.Sprintf("%d|%s", rev, p)
	}

	txs, ok := s.historyCache.Get(key)
	if !ok {
		txs = s.ledger.Transactions(period)
		s.historyCache.Set(key, txs)
	}

	resp := transactionList{Count: len(txs)}
	if hasPeriod {
		resp.Period = p.String()
	}
	if r.URL.Query().Get("group") == "day" {
		resp.Days = ledger.GroupByDay(txs, s.ledger.Location())
	} else {
		resp.Transactions = txs
		if resp.Transactions == nil {
			resp.Transactions = []core.Transaction{}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	amount, err := evalAmountField(req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	when, err := parseDate(req.Date, s.ledger.Location())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = core.CurrencyARS
	}

	committed, err := s.ledger.Submit(r.Context(), core.Transaction{
		ID:                   sanitizeInput(req.ID),
		Amount:               amount,
		Currency:             currency,
		Description:          sanitizeInput(req.Description),
		OccurredAt:           when,
		Payer:                req.Payer,
		Beneficiary:          req.Beneficiary,
		Nature:               req.Nature,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		IsSettlement:         req.IsSettlement,
		Installments:         req.Installments,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/transactions/"+committed.ID)
	writeJSON(w, http.StatusCreated, committed)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type evalRequest struct {
	Expression string `json:"expression"`
}

type evalResponse struct {
	Expression string          `json:"expression"`
	Amount     decimal.Decimal `json:"amount"`
	Display    string          `json:"display"`
}

func (s *Server) handleEvalAmount(w http.ResponseWriter, r *http.Request) {
	var req evalRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := core.EvalAmount(req.Expression)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evalResponse{
		Expression: req.Expression,
		Amount:     v,
		Display:    v.StringFixed(2),
	})
}
