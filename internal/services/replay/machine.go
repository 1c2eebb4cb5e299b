// Package replay rebuilds open positions from the transaction log.
//
// The state machine is deterministic: given the same ordered log it always
// produces the same final position and the same stream of realized events.
// Netting applies: an opposite-direction trade first closes the existing
// position, and a flip splits one transaction into a close and an open.
package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

// divScale is the minimum scale for intermediate divisions.
const divScale = 8

var hundred = decimal.NewFromInt(100)

// state is the per-(account, asset) machine state during replay.
// totalCost is the cost basis for LONG and the proceeds basis for SHORT.
type state struct {
	posType   models.PositionType // "" = flat
	quantity  decimal.Decimal
	totalCost decimal.Decimal
	firstDate time.Time // opened the current streak
}

func (s *state) flat() bool {
	return s.posType == "" || s.quantity.IsZero()
}

// avgPrice is totalCost / quantity, zero when flat.
func (s *state) avgPrice() decimal.Decimal {
	if s.quantity.IsZero() {
		return decimal.Zero
	}
	return s.totalCost.DivRound(s.quantity, divScale)
}

func (s *state) reset() {
	s.posType = ""
	s.quantity = decimal.Zero
	s.totalCost = decimal.Zero
	s.firstDate = time.Time{}
}

// seedFromAnchor initializes the machine from a position's statement
// anchor, which replay must respect as the authoritative opening state.
func (s *state) seedFromAnchor(p *models.Position) {
	s.posType = p.AnchorType
	s.quantity = p.AnchorQuantity
	s.totalCost = p.AnchorTotalCost
	s.firstDate = p.AnchorDate
}

// run applies the ordered transaction log to the state and returns the
// realized events in emission order. A validation failure aborts the whole
// replay; no partial state escapes.
func run(st *state, txns []*models.Transaction) ([]models.RealizedPnLEntry, error) {
	sortLog(txns)

	var events []models.RealizedPnLEntry
	for _, txn := range txns {
		if !txn.Type.IsReplayRelevant() {
			continue
		}
		if err := txn.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
		}

		switch txn.Type {
		case models.TxnBuy, models.TxnSubscription:
			events = append(events, applyBuy(st, txn, txn.Fees)...)
		case models.TxnTransferIn:
			// Same as BUY with no fees. Reduces a SHORT before opening LONG.
			events = append(events, applyBuy(st, txn, decimal.Zero)...)
		case models.TxnSell:
			events = append(events, applySell(st, txn)...)
		case models.TxnTransferOut:
			applyTransferOut(st, txn)
		case models.TxnSplit, models.TxnReverseSplit:
			applySplit(st, txn)
		}
	}
	return events, nil
}

// sortLog orders by executed_at ascending with id ascending as tie-break.
func sortLog(txns []*models.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].ExecutedAt.Equal(txns[j].ExecutedAt) {
			return txns[i].ID < txns[j].ID
		}
		return txns[i].ExecutedAt.Before(txns[j].ExecutedAt)
	})
}

// applyBuy handles BUY / SUBSCRIPTION / TRANSFER_IN.
func applyBuy(st *state, txn *models.Transaction, fees decimal.Decimal) []models.RealizedPnLEntry {
	q, p := txn.Quantity, txn.Price

	if st.flat() || st.posType == models.PositionLong {
		st.totalCost = st.totalCost.Add(q.Mul(p)).Add(fees)
		st.quantity = st.quantity.Add(q)
		st.posType = models.PositionLong
		if st.firstDate.IsZero() {
			st.firstDate = txn.ExecutedAt
		}
		return nil
	}

	// SHORT: buying back closes short units first.
	qs := st.quantity
	ps := st.avgPrice()

	if q.Cmp(qs) <= 0 {
		// Partial or exact cover.
		gross := q.Mul(ps) // received when shorting
		cost := q.Mul(p).Add(fees)
		entry := shortCloseEntry(st, txn, q, ps, gross, cost, fees)
		st.totalCost = st.totalCost.Sub(q.Mul(ps))
		st.quantity = st.quantity.Sub(q)
		if st.quantity.IsZero() {
			st.reset()
		}
		return []models.RealizedPnLEntry{entry}
	}

	// Flip: cover the whole short, open a long with the excess.
	closeFees := fees.Mul(qs).DivRound(q, divScale)
	openFees := fees.Sub(closeFees)
	gross := st.totalCost // entire proceeds basis
	cost := qs.Mul(p).Add(closeFees)
	entry := shortCloseEntry(st, txn, qs, ps, gross, cost, closeFees)

	remaining := q.Sub(qs)
	st.posType = models.PositionLong
	st.quantity = remaining
	st.totalCost = remaining.Mul(p).Add(openFees)
	st.firstDate = txn.ExecutedAt
	return []models.RealizedPnLEntry{entry}
}

// applySell handles SELL: closes LONG first, extends or opens SHORT.
func applySell(st *state, txn *models.Transaction) []models.RealizedPnLEntry {
	q, p, fees := txn.Quantity, txn.Price, txn.Fees

	if st.posType == models.PositionLong && !st.quantity.IsZero() {
		ql := st.quantity
		cl := st.avgPrice()

		if q.Cmp(ql) <= 0 {
			gross := q.Mul(p)
			cost := q.Mul(cl)
			pnl := gross.Sub(fees).Sub(cost)
			entry := longCloseEntry(st, txn, q, cl, gross, cost, fees, pnl)
			st.quantity = st.quantity.Sub(q)
			st.totalCost = st.totalCost.Sub(cost)
			if st.quantity.IsZero() {
				st.reset()
			}
			return []models.RealizedPnLEntry{entry}
		}

		// Flip: close the whole long, open a short with the excess. The
		// closing leg's proceeds are reported net of its fee share.
		closeFees := fees.Mul(ql).DivRound(q, divScale)
		gross := ql.Mul(p).Sub(closeFees)
		cost := st.totalCost
		pnl := gross.Sub(cost)
		entry := longCloseEntry(st, txn, ql, cl, gross, cost, closeFees, pnl)

		remaining := q.Sub(ql)
		st.posType = models.PositionShort
		st.quantity = remaining
		st.totalCost = remaining.Mul(p) // proceeds basis
		st.firstDate = txn.ExecutedAt
		return []models.RealizedPnLEntry{entry}
	}

	// NONE or SHORT: extend the short at the weighted mean.
	st.posType = models.PositionShort
	st.quantity = st.quantity.Add(q)
	st.totalCost = st.totalCost.Add(q.Mul(p))
	if st.firstDate.IsZero() {
		st.firstDate = txn.ExecutedAt
	}
	return nil
}

// applyTransferOut reduces a LONG at its current average cost. Never emits a
// P&L event; quantity beyond the open long is silently ignored.
func applyTransferOut(st *state, txn *models.Transaction) {
	if st.posType != models.PositionLong || st.quantity.IsZero() {
		return
	}
	q := txn.Quantity
	if q.Cmp(st.quantity) > 0 {
		q = st.quantity
	}
	cost := q.Mul(st.avgPrice())
	st.quantity = st.quantity.Sub(q)
	st.totalCost = st.totalCost.Sub(cost)
	if st.quantity.IsZero() {
		st.reset()
	}
}

// applySplit multiplies the LONG quantity by the split factor; total cost is
// unchanged so the average price recomputes. Reverse splits carry q < 1.
func applySplit(st *state, txn *models.Transaction) {
	if st.posType != models.PositionLong || st.quantity.IsZero() {
		return
	}
	if !txn.Quantity.IsPositive() {
		return
	}
	st.quantity = st.quantity.Mul(txn.Quantity)
}

func longCloseEntry(st *state, txn *models.Transaction, q, openAvg, gross, cost, fees, pnl decimal.Decimal) models.RealizedPnLEntry {
	return models.RealizedPnLEntry{
		AccountID:     txn.AccountID,
		AssetID:       txn.AssetID,
		Side:          models.LongClose,
		Quantity:      q,
		OpenAvgPrice:  openAvg,
		ClosePrice:    txn.Price,
		OpenDate:      st.firstDate,
		CloseDate:     txn.ExecutedAt,
		GrossProceeds: gross,
		CostBasis:     cost,
		Fees:          fees,
		RealizedPnL:   pnl,
		TransactionID: txn.ID,
	}
}

func shortCloseEntry(st *state, txn *models.Transaction, q, openAvg, gross, cost, fees decimal.Decimal) models.RealizedPnLEntry {
	return models.RealizedPnLEntry{
		AccountID:     txn.AccountID,
		AssetID:       txn.AssetID,
		Side:          models.ShortClose,
		Quantity:      q,
		OpenAvgPrice:  openAvg,
		ClosePrice:    txn.Price,
		OpenDate:      st.firstDate,
		CloseDate:     txn.ExecutedAt,
		GrossProceeds: gross,
		CostBasis:     cost,
		Fees:          fees,
		RealizedPnL:   gross.Sub(cost),
		TransactionID: txn.ID,
	}
}
