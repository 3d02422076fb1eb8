package backtest

import (
	"math"
	"sort"

	"LevelWatch/internal/domain/models"
)

// Compute reduces a trade list to summary statistics and the cumulative
// risk-multiple equity curve, both ordered by exit time. A nil metrics
// struct is never returned; an empty trade list yields zeroed metrics and
// no equity points.
func Compute(trades []models.SimTrade) (*models.RunMetrics, []models.EquityPoint) {
	m := &models.RunMetrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return m, nil
	}

	ordered := make([]models.SimTrade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].ExitTime.Before(ordered[b].ExitTime)
	})

	var (
		wins, losses         int
		grossWin, grossLoss  float64
		sumR, sumBars        float64
		winStreak, lossStreak int
		equity, peak         float64
		points               = make([]models.EquityPoint, 0, len(ordered))
	)
	for i := range ordered {
		t := &ordered[i]
		r := t.RMultiple
		sumR += r
		sumBars += float64(t.BarsHeld)

		switch {
		case r > 0:
			wins++
			grossWin += r
			winStreak++
			lossStreak = 0
			if winStreak > m.LongestWinStreak {
				m.LongestWinStreak = winStreak
			}
		case r < 0:
			losses++
			grossLoss += -r
			lossStreak++
			winStreak = 0
			if lossStreak > m.LongestLossStreak {
				m.LongestLossStreak = lossStreak
			}
		default:
			winStreak, lossStreak = 0, 0
		}

		equity += r
		if equity > peak {
			peak = equity
		}
		dd := equity - peak
		if -dd > m.MaxDrawdown {
			m.MaxDrawdown = -dd
		}
		points = append(points, models.EquityPoint{
			Seq:      i,
			ExitTime: t.ExitTime,
			Equity:   equity,
			Drawdown: dd,
		})
	}

	n := float64(len(ordered))
	m.WinRate = float64(wins) / n
	m.AvgR = sumR / n
	m.AvgBarsHeld = sumBars / n

	var avgWin, avgLoss float64
	if wins > 0 {
		avgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		avgLoss = grossLoss / float64(losses)
	}
	m.Expectancy = m.WinRate*avgWin - (1-m.WinRate)*avgLoss

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	}

	if n > 1 {
		var ss float64
		for i := range ordered {
			d := ordered[i].RMultiple - m.AvgR
			ss += d * d
		}
		sd := math.Sqrt(ss / (n - 1))
		if sd > 0 {
			m.Sharpe = m.AvgR / sd * math.Sqrt(n)
		}
	}
	return m, points
}
