package fund

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

const (
	// drawdownWindow is the number of trailing rows the max drawdown scans.
	drawdownWindow = 252
	// volMinSamples is the minimum daily-return count before volatility is
	// reported at all.
	volMinSamples = 20
)

// Performance aggregates quota metrics from the user's fund share history.
// All period returns are computed on share value, so deposits and
// withdrawals do not distort them.
func (s *Service) Performance(ctx context.Context, userID string) (*models.FundPerformance, error) {
	history, err := s.storage.FundShares().History(ctx, userID, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("fund history for %s: %w", userID, models.ErrNotFound)
	}

	latest := history[len(history)-1]
	perf := &models.FundPerformance{
		UserID:            userID,
		CurrentNAV:        latest.NAV,
		CurrentShareValue: latest.ShareValue,
		SharesOutstanding: latest.SharesOutstanding,
		TotalReturn:       latest.CumulativeReturn,
		DailyReturn:       latest.DailyReturn,
		AsOf:              latest.Date,
	}

	perf.MTDReturn = periodReturn(history, latest,
		time.Date(latest.Date.Year(), latest.Date.Month(), 1, 0, 0, 0, 0, time.UTC))
	perf.YTDReturn = periodReturn(history, latest,
		time.Date(latest.Date.Year(), 1, 1, 0, 0, 0, 0, time.UTC))
	perf.OneYearReturn = periodReturn(history, latest, latest.Date.AddDate(-1, 0, 0))

	perf.MaxDrawdown = maxDrawdown(tail(history, drawdownWindow))

	if vol, ok := annualizedVolatility(history); ok {
		perf.Volatility = &vol
	}
	return perf, nil
}

// periodReturn is latest/value-at-boundary − 1, where the boundary value is
// the newest row strictly before the period start. Zero when the history
// does not reach back that far.
func periodReturn(history []*models.FundShare, latest *models.FundShare, periodStart time.Time) decimal.Decimal {
	var anchor *models.FundShare
	for _, row := range history {
		if !row.Date.Before(periodStart) {
			break
		}
		anchor = row
	}
	if anchor == nil || anchor.ShareValue.IsZero() {
		return decimal.Zero
	}
	return latest.ShareValue.DivRound(anchor.ShareValue, shareScale).Sub(one)
}

// maxDrawdown is the deepest peak-to-trough decline of the share value,
// returned as a non-positive decimal (−0.10 means a 10% drawdown).
func maxDrawdown(history []*models.FundShare) decimal.Decimal {
	worst := decimal.Zero
	peak := decimal.Zero
	for _, row := range history {
		if row.ShareValue.GreaterThan(peak) {
			peak = row.ShareValue
		}
		if peak.IsZero() {
			continue
		}
		dd := row.ShareValue.DivRound(peak, shareScale).Sub(one)
		if dd.LessThan(worst) {
			worst = dd
		}
	}
	return worst
}

// annualizedVolatility is the sample standard deviation of daily returns
// scaled by √252. ok=false below the minimum sample count.
func annualizedVolatility(history []*models.FundShare) (decimal.Decimal, bool) {
	var returns []float64
	for i := 1; i < len(history); i++ {
		prev := history[i-1].ShareValue
		if prev.IsZero() {
			continue
		}
		r, _ := history[i].ShareValue.DivRound(prev, shareScale).Sub(one).Float64()
		returns = append(returns, r)
	}
	if len(returns) < volMinSamples {
		return decimal.Zero, false
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	vol := math.Sqrt(variance) * math.Sqrt(252)
	return decimal.NewFromFloat(vol).Round(shareScale), true
}

func tail(history []*models.FundShare, n int) []*models.FundShare {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
