// Package memory is a map-backed StorageManager. It backs unit tests and
// the local development mode; SurrealDB is the production engine.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.StorageManager = (*Manager)(nil)

// Manager holds every table behind one lock. Operations copy rows in and
// out so callers never alias stored state.
type Manager struct {
	mu sync.RWMutex

	users      map[string]*models.User
	accounts   map[string]*models.Account
	assets     map[string]*models.Asset
	txns       map[string]*models.Transaction
	positions  map[string]*models.Position      // pairKey
	trades     map[string]*models.RealizedTrade // id
	tradeDedup map[string]string                // dedup key -> id (replay-emitted)
	cashflows  map[string]*models.CashFlow
	quotes     map[string]*models.Quote        // assetID|date
	rates      map[string]*models.ExchangeRate // date|from|to
	fundShares map[string]*models.FundShare    // userID|date
	snapshots  map[string]*models.PortfolioSnapshot
	fixedInc   map[string][]*models.FixedIncomePosition    // accountID
	invFunds   map[string][]*models.InvestmentFundPosition // accountID
	documents  map[string]*models.Document
	files      map[string]fileEntry // category|key

	dataPath string
}

type fileEntry struct {
	data        []byte
	contentType string
}

// NewManager creates an empty in-memory storage manager.
func NewManager(dataPath string) *Manager {
	return &Manager{
		users:      make(map[string]*models.User),
		accounts:   make(map[string]*models.Account),
		assets:     make(map[string]*models.Asset),
		txns:       make(map[string]*models.Transaction),
		positions:  make(map[string]*models.Position),
		trades:     make(map[string]*models.RealizedTrade),
		tradeDedup: make(map[string]string),
		cashflows:  make(map[string]*models.CashFlow),
		quotes:     make(map[string]*models.Quote),
		rates:      make(map[string]*models.ExchangeRate),
		fundShares: make(map[string]*models.FundShare),
		snapshots:  make(map[string]*models.PortfolioSnapshot),
		fixedInc:   make(map[string][]*models.FixedIncomePosition),
		invFunds:   make(map[string][]*models.InvestmentFundPosition),
		documents:  make(map[string]*models.Document),
		files:      make(map[string]fileEntry),
		dataPath:   dataPath,
	}
}

func (m *Manager) Users() interfaces.UserStore                     { return (*userStore)(m) }
func (m *Manager) Accounts() interfaces.AccountStore               { return (*accountStore)(m) }
func (m *Manager) Assets() interfaces.AssetStore                   { return (*assetStore)(m) }
func (m *Manager) Transactions() interfaces.TransactionStore       { return (*txnStore)(m) }
func (m *Manager) Positions() interfaces.PositionStore             { return (*positionStore)(m) }
func (m *Manager) RealizedTrades() interfaces.RealizedTradeStore   { return (*tradeStore)(m) }
func (m *Manager) CashFlows() interfaces.CashFlowStore             { return (*cashFlowStore)(m) }
func (m *Manager) Quotes() interfaces.QuoteStore                   { return (*quoteStore)(m) }
func (m *Manager) Rates() interfaces.ExchangeRateStore             { return (*rateStore)(m) }
func (m *Manager) FundShares() interfaces.FundShareStore           { return (*fundShareStore)(m) }
func (m *Manager) Snapshots() interfaces.SnapshotStore             { return (*snapshotStore)(m) }
func (m *Manager) FixedIncome() interfaces.FixedIncomeStore        { return (*fixedIncomeStore)(m) }
func (m *Manager) InvestmentFunds() interfaces.InvestmentFundStore { return (*investmentFundStore)(m) }
func (m *Manager) Documents() interfaces.DocumentStore             { return (*documentStore)(m) }
func (m *Manager) Files() interfaces.FileStore                     { return (*fileStore)(m) }

func (m *Manager) DataPath() string { return m.dataPath }
func (m *Manager) Close() error     { return nil }

func pairKey(accountID, assetID string) string { return accountID + "|" + assetID }

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// ---- users ----

type userStore Manager

func (s *userStore) Get(_ context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

func (s *userStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *userStore) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- accounts ----

type accountStore Manager

func (s *accountStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account %s: %w", account.ID, models.ErrConflict)
	}
	for _, a := range s.accounts {
		if a.UserID == account.UserID && a.Name == account.Name && a.IsActive {
			return fmt.Errorf("account name %q: %w", account.Name, models.ErrConflict)
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *accountStore) Get(_ context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *accountStore) GetByName(_ context.Context, userID, name string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.UserID == userID && a.Name == name && a.IsActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", name, models.ErrNotFound)
}

func (s *accountStore) ListByUser(_ context.Context, userID string, includeInactive bool) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Account
	for _, a := range s.accounts {
		if a.UserID != userID {
			continue
		}
		if !a.IsActive && !includeInactive {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *accountStore) Update(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return fmt.Errorf("account %s: %w", account.ID, models.ErrNotFound)
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *accountStore) SoftDelete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	a.IsActive = false
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- assets ----

type assetStore Manager

func (s *assetStore) Create(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.Ticker == asset.Ticker {
			return fmt.Errorf("ticker %s: %w", asset.Ticker, models.ErrConflict)
		}
	}
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

func (s *assetStore) Get(_ context.Context, assetID string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *assetStore) GetByTicker(_ context.Context, ticker string) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := models.NormalizeTicker(ticker)
	for _, a := range s.assets {
		if a.Ticker == t {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("ticker %s: %w", t, models.ErrNotFound)
}

func (s *assetStore) GetBatch(_ context.Context, assetIDs []string) (map[string]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.Asset, len(assetIDs))
	for _, id := range assetIDs {
		if a, ok := s.assets[id]; ok {
			cp := *a
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *assetStore) List(_ context.Context) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (s *assetStore) Update(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[asset.ID]; !ok {
		return fmt.Errorf("asset %s: %w", asset.ID, models.ErrNotFound)
	}
	cp := *asset
	s.assets[asset.ID] = &cp
	return nil
}

// ---- transactions ----

type txnStore Manager

func (s *txnStore) Create(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.ID]; ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, models.ErrConflict)
	}
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *txnStore) Get(_ context.Context, txnID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[txnID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", txnID, models.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *txnStore) Update(_ context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, models.ErrNotFound)
	}
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *txnStore) Delete(_ context.Context, txnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txnID]; !ok {
		return fmt.Errorf("transaction %s: %w", txnID, models.ErrNotFound)
	}
	delete(s.txns, txnID)
	return nil
}

func (s *txnStore) ListByPair(_ context.Context, accountID, assetID string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, t := range s.txns {
		if t.AccountID == accountID && t.AssetID == assetID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExecutedAt.Equal(out[j].ExecutedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExecutedAt.Before(out[j].ExecutedAt)
	})
	return out, nil
}

func (s *txnStore) List(_ context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, t := range s.txns {
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		if filter.AssetID != "" && t.AssetID != filter.AssetID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.From != nil && t.ExecutedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.ExecutedAt.After(*filter.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	out = paginate(out, filter.Offset, filter.Limit)
	return out, nil
}

func (s *txnStore) AssetIDs(_ context.Context, accountID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, t := range s.txns {
		if t.AccountID == accountID {
			seen[t.AssetID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// ---- positions ----

type positionStore Manager

func (s *positionStore) Get(_ context.Context, accountID, assetID string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[pairKey(accountID, assetID)]
	if !ok {
		return nil, fmt.Errorf("position %s/%s: %w", accountID, assetID, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *positionStore) Upsert(_ context.Context, position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *position
	s.positions[pairKey(position.AccountID, position.AssetID)] = &cp
	return nil
}

func (s *positionStore) Delete(_ context.Context, accountID, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(accountID, assetID)
	if _, ok := s.positions[key]; !ok {
		return fmt.Errorf("position %s/%s: %w", accountID, assetID, models.ErrNotFound)
	}
	delete(s.positions, key)
	return nil
}

func (s *positionStore) DeleteByAccount(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, p := range s.positions {
		if p.AccountID == accountID {
			delete(s.positions, key)
			n++
		}
	}
	return n, nil
}

func (s *positionStore) ListByAccount(_ context.Context, accountID string) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

func (s *positionStore) ListByUser(_ context.Context, userID string) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Position
	for _, p := range s.positions {
		a, ok := s.accounts[p.AccountID]
		if !ok || a.UserID != userID || !a.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID == out[j].AccountID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, nil
}

// ---- realized trades ----

type tradeStore Manager

func (s *tradeStore) Upsert(_ context.Context, trade *models.RealizedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trade
	key := trade.DedupKey()
	if existingID, ok := s.tradeDedup[key]; ok {
		cp.ID = existingID
	}
	s.trades[cp.ID] = &cp
	s.tradeDedup[key] = cp.ID
	return nil
}

func (s *tradeStore) Append(_ context.Context, trade *models.RealizedTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trade
	s.trades[cp.ID] = &cp
	return nil
}

func (s *tradeStore) DeleteCalculated(_ context.Context, accountID, assetID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.trades {
		// Reconciliation-emitted trades carry a document reference and stay.
		if t.AccountID == accountID && t.AssetID == assetID && t.DocumentID == "" {
			delete(s.trades, id)
			delete(s.tradeDedup, t.DedupKey())
			n++
		}
	}
	return n, nil
}

func (s *tradeStore) List(_ context.Context, filter models.RealizedFilter) ([]*models.RealizedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RealizedTrade
	for _, t := range s.trades {
		if filter.AccountID != "" && t.AccountID != filter.AccountID {
			continue
		}
		if filter.AssetID != "" && t.AssetID != filter.AssetID {
			continue
		}
		if filter.UserID != "" {
			a, ok := s.accounts[t.AccountID]
			if !ok || a.UserID != filter.UserID {
				continue
			}
		}
		if filter.From != nil && t.CloseDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.CloseDate.After(*filter.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CloseDate.Before(out[j].CloseDate) })
	return out, nil
}

// ---- cash flows ----

type cashFlowStore Manager

func (s *cashFlowStore) Create(_ context.Context, flow *models.CashFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cashflows[flow.ID]; ok {
		return fmt.Errorf("cash flow %s: %w", flow.ID, models.ErrConflict)
	}
	cp := *flow
	s.cashflows[flow.ID] = &cp
	return nil
}

func (s *cashFlowStore) Get(_ context.Context, flowID string) (*models.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.cashflows[flowID]
	if !ok {
		return nil, fmt.Errorf("cash flow %s: %w", flowID, models.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *cashFlowStore) Update(_ context.Context, flow *models.CashFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cashflows[flow.ID]; !ok {
		return fmt.Errorf("cash flow %s: %w", flow.ID, models.ErrNotFound)
	}
	cp := *flow
	s.cashflows[flow.ID] = &cp
	return nil
}

func (s *cashFlowStore) Delete(_ context.Context, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cashflows[flowID]; !ok {
		return fmt.Errorf("cash flow %s: %w", flowID, models.ErrNotFound)
	}
	delete(s.cashflows, flowID)
	return nil
}

func (s *cashFlowStore) List(_ context.Context, filter models.CashFlowFilter) ([]*models.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CashFlow
	for _, f := range s.cashflows {
		if filter.AccountID != "" && f.AccountID != filter.AccountID {
			continue
		}
		if filter.Type != "" && f.Type != filter.Type {
			continue
		}
		if filter.From != nil && f.ExecutedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && f.ExecutedAt.After(*filter.To) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	out = paginate(out, filter.Offset, filter.Limit)
	return out, nil
}

func (s *cashFlowStore) ListByUser(_ context.Context, userID string, until time.Time) ([]*models.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.CashFlow
	for _, f := range s.cashflows {
		a, ok := s.accounts[f.AccountID]
		if !ok || a.UserID != userID {
			continue
		}
		if f.ExecutedAt.After(until) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

// ---- quotes ----

type quoteStore Manager

func (s *quoteStore) Upsert(_ context.Context, quote *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *quote
	s.quotes[quote.AssetID+"|"+dateKey(quote.Date)] = &cp
	return nil
}

func (s *quoteStore) Latest(_ context.Context, assetIDs []string) (map[string]models.PricePoint, error) {
	return s.atDate(assetIDs, time.Time{})
}

func (s *quoteStore) AtDate(_ context.Context, assetIDs []string, target time.Time) (map[string]models.PricePoint, error) {
	return s.atDate(assetIDs, target)
}

func (s *quoteStore) atDate(assetIDs []string, target time.Time) (map[string]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]bool, len(assetIDs))
	for _, id := range assetIDs {
		want[id] = true
	}
	best := make(map[string]*models.Quote)
	for _, q := range s.quotes {
		if !want[q.AssetID] {
			continue
		}
		if !target.IsZero() && q.Date.After(target) {
			continue
		}
		if cur, ok := best[q.AssetID]; !ok || q.Date.After(cur.Date) {
			best[q.AssetID] = q
		}
	}
	out := make(map[string]models.PricePoint, len(best))
	for id, q := range best {
		out[id] = models.PricePoint{AssetID: id, Date: q.Date, Price: q.EffectivePrice()}
	}
	return out, nil
}

func (s *quoteStore) History(_ context.Context, assetID string, from, to *time.Time, limit int) ([]*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Quote
	for _, q := range s.quotes {
		if q.AssetID != assetID {
			continue
		}
		if from != nil && q.Date.Before(*from) {
			continue
		}
		if to != nil && q.Date.After(*to) {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ---- exchange rates ----

type rateStore Manager

func (s *rateStore) Upsert(_ context.Context, rate *models.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rate
	s.rates[dateKey(rate.Date)+"|"+rate.FromCurrency+"|"+rate.ToCurrency] = &cp
	return nil
}

func (s *rateStore) LatestWithin(_ context.Context, from, to string, target time.Time, windowDays int) (*models.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	floor := target.AddDate(0, 0, -windowDays)
	var best *models.ExchangeRate
	for _, r := range s.rates {
		if r.FromCurrency != from || r.ToCurrency != to {
			continue
		}
		if r.Date.After(target) || r.Date.Before(floor) {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("rate %s/%s at %s: %w", from, to, dateKey(target), models.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

// ---- fund shares ----

type fundShareStore Manager

func (s *fundShareStore) Upsert(_ context.Context, share *models.FundShare) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *share
	s.fundShares[share.UserID+"|"+dateKey(share.Date)] = &cp
	return nil
}

func (s *fundShareStore) Get(_ context.Context, userID string, date time.Time) (*models.FundShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fundShares[userID+"|"+dateKey(date)]
	if !ok {
		return nil, fmt.Errorf("fund share %s@%s: %w", userID, dateKey(date), models.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *fundShareStore) Latest(_ context.Context, userID string) (*models.FundShare, error) {
	return s.latestBefore(userID, time.Time{})
}

func (s *fundShareStore) LatestBefore(_ context.Context, userID string, before time.Time) (*models.FundShare, error) {
	return s.latestBefore(userID, before)
}

func (s *fundShareStore) latestBefore(userID string, before time.Time) (*models.FundShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.FundShare
	for _, f := range s.fundShares {
		if f.UserID != userID {
			continue
		}
		if !before.IsZero() && !f.Date.Before(before) {
			continue
		}
		if best == nil || f.Date.After(best.Date) {
			best = f
		}
	}
	if best == nil {
		return nil, fmt.Errorf("fund share for %s: %w", userID, models.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (s *fundShareStore) History(_ context.Context, userID string, from, to *time.Time, limit int) ([]*models.FundShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.FundShare
	for _, f := range s.fundShares {
		if f.UserID != userID {
			continue
		}
		if from != nil && f.Date.Before(*from) {
			continue
		}
		if to != nil && f.Date.After(*to) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fundShareStore) Recent(ctx context.Context, userID string, n int) ([]*models.FundShare, error) {
	all, err := s.History(ctx, userID, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	// Descending by date.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// ---- snapshots ----

type snapshotStore Manager

func (s *snapshotStore) Upsert(_ context.Context, snapshot *models.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snapshot
	s.snapshots[snapshot.UserID+"|"+dateKey(snapshot.Date)+"|"+snapshot.AccountID] = &cp
	return nil
}

func (s *snapshotStore) Get(_ context.Context, userID string, date time.Time, accountID string) (*models.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID+"|"+dateKey(date)+"|"+accountID]
	if !ok {
		return nil, fmt.Errorf("snapshot %s@%s: %w", userID, dateKey(date), models.ErrNotFound)
	}
	cp := *snap
	return &cp, nil
}

func (s *snapshotStore) History(_ context.Context, userID string, from, to *time.Time) ([]*models.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PortfolioSnapshot
	for _, snap := range s.snapshots {
		if snap.UserID != userID {
			continue
		}
		if from != nil && snap.Date.Before(*from) {
			continue
		}
		if to != nil && snap.Date.After(*to) {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ---- fixed income / investment funds ----

type fixedIncomeStore Manager

func (s *fixedIncomeStore) ReplaceForAccount(_ context.Context, accountID string, positions []*models.FixedIncomePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := make([]*models.FixedIncomePosition, len(positions))
	for i, p := range positions {
		cp := *p
		cps[i] = &cp
	}
	s.fixedInc[accountID] = cps
	return nil
}

func (s *fixedIncomeStore) ListByAccount(_ context.Context, accountID string) ([]*models.FixedIncomePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.fixedInc[accountID]
	out := make([]*models.FixedIncomePosition, len(src))
	for i, p := range src {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

type investmentFundStore Manager

func (s *investmentFundStore) ReplaceForAccount(_ context.Context, accountID string, positions []*models.InvestmentFundPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := make([]*models.InvestmentFundPosition, len(positions))
	for i, p := range positions {
		cp := *p
		cps[i] = &cp
	}
	s.invFunds[accountID] = cps
	return nil
}

func (s *investmentFundStore) ListByAccount(_ context.Context, accountID string) ([]*models.InvestmentFundPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.invFunds[accountID]
	out := make([]*models.InvestmentFundPosition, len(src))
	for i, p := range src {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// ---- documents ----

type documentStore Manager

func (s *documentStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, models.ErrConflict)
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *documentStore) Get(_ context.Context, docID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *documentStore) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, models.ErrNotFound)
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *documentStore) Delete(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, models.ErrNotFound)
	}
	delete(s.documents, docID)
	return nil
}

func (s *documentStore) ListByUser(_ context.Context, userID string, status models.ParsingStatus) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, d := range s.documents {
		if d.UserID != userID {
			continue
		}
		if status != "" && d.ParsingStatus != status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- files ----

type fileStore Manager

func (s *fileStore) SaveFile(_ context.Context, category, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[category+"|"+key] = fileEntry{data: cp, contentType: contentType}
	return nil
}

func (s *fileStore) GetFile(_ context.Context, category, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[category+"|"+key]
	if !ok {
		return nil, "", fmt.Errorf("file %s/%s: %w", category, key, models.ErrNotFound)
	}
	cp := make([]byte, len(e.data))
	copy(cp, e.data)
	return cp, e.contentType, nil
}

func (s *fileStore) DeleteFile(_ context.Context, category, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[category+"|"+key]; !ok {
		return fmt.Errorf("file %s/%s: %w", category, key, models.ErrNotFound)
	}
	delete(s.files, category+"|"+key)
	return nil
}

func (s *fileStore) HasFile(_ context.Context, category, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[category+"|"+key]
	return ok, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
