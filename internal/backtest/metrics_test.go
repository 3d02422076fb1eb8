package backtest

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

func rTrade(exit time.Time, r float64, bars int) models.SimTrade {
	return models.SimTrade{Symbol: "AAPL", ExitTime: exit, RMultiple: r, BarsHeld: bars}
}

func TestComputeEmpty(t *testing.T) {
	m, eq := Compute(nil)
	if m == nil || m.TotalTrades != 0 || len(eq) != 0 {
		t.Fatalf("expected zeroed metrics, got %+v %v", m, eq)
	}
}

func TestComputeSummary(t *testing.T) {
	t0 := vtime(15, 10, 0)
	trades := []models.SimTrade{
		rTrade(t0, 2, 4),
		rTrade(t0.Add(time.Hour), -1, 2),
		rTrade(t0.Add(2*time.Hour), -1, 3),
		rTrade(t0.Add(3*time.Hour), 2, 5),
		rTrade(t0.Add(4*time.Hour), 0, 1),
	}
	m, eq := Compute(trades)

	if m.TotalTrades != 5 {
		t.Fatalf("total %d", m.TotalTrades)
	}
	if math.Abs(m.WinRate-0.4) > 1e-9 {
		t.Fatalf("win rate %v", m.WinRate)
	}
	if math.Abs(m.AvgR-0.4) > 1e-9 {
		t.Fatalf("avg r %v", m.AvgR)
	}
	// 0.4*2 - 0.6*1
	if math.Abs(m.Expectancy-0.2) > 1e-9 {
		t.Fatalf("expectancy %v", m.Expectancy)
	}
	if math.Abs(m.ProfitFactor-2) > 1e-9 {
		t.Fatalf("profit factor %v", m.ProfitFactor)
	}
	if m.LongestWinStreak != 1 || m.LongestLossStreak != 2 {
		t.Fatalf("streaks %d/%d", m.LongestWinStreak, m.LongestLossStreak)
	}
	if math.Abs(m.AvgBarsHeld-3) > 1e-9 {
		t.Fatalf("avg bars %v", m.AvgBarsHeld)
	}
	if math.Abs(m.MaxDrawdown-2) > 1e-9 {
		t.Fatalf("max drawdown %v", m.MaxDrawdown)
	}
	if m.Sharpe == 0 {
		t.Fatalf("expected nonzero sharpe")
	}

	if len(eq) != 5 {
		t.Fatalf("equity points %d", len(eq))
	}
	wantEquity := []float64{2, 1, 0, 2, 2}
	for i, p := range eq {
		if math.Abs(p.Equity-wantEquity[i]) > 1e-9 {
			t.Fatalf("equity[%d] = %v, want %v", i, p.Equity, wantEquity[i])
		}
		if p.Drawdown > 0 {
			t.Fatalf("drawdown must be <= 0, got %v", p.Drawdown)
		}
		if i > 0 && p.ExitTime.Before(eq[i-1].ExitTime) {
			t.Fatalf("equity not ordered by exit time")
		}
	}
}

func TestComputeOrdersOutOfOrderExits(t *testing.T) {
	t0 := vtime(15, 10, 0)
	trades := []models.SimTrade{
		rTrade(t0.Add(time.Hour), -1, 1),
		rTrade(t0, 2, 1),
	}
	_, eq := Compute(trades)
	if !eq[0].ExitTime.Equal(t0) {
		t.Fatalf("equity must sort by exit time, got %v first", eq[0].ExitTime)
	}
	if math.Abs(eq[1].Equity-1) > 1e-9 {
		t.Fatalf("final equity %v", eq[1].Equity)
	}
}

func TestComputeProfitFactorEdges(t *testing.T) {
	t0 := vtime(15, 10, 0)

	m, _ := Compute([]models.SimTrade{rTrade(t0, 2, 1), rTrade(t0.Add(time.Minute), 1, 1)})
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Fatalf("wins with no losses must be +Inf, got %v", m.ProfitFactor)
	}

	m, _ = Compute([]models.SimTrade{rTrade(t0, 0, 1)})
	if m.ProfitFactor != 0 {
		t.Fatalf("no wins and no losses must be 0, got %v", m.ProfitFactor)
	}
}

func TestComputeZeroVarianceSharpe(t *testing.T) {
	t0 := vtime(15, 10, 0)
	m, _ := Compute([]models.SimTrade{rTrade(t0, 1, 1), rTrade(t0.Add(time.Minute), 1, 1)})
	if m.Sharpe != 0 {
		t.Fatalf("zero stddev must give zero sharpe, got %v", m.Sharpe)
	}
}

func TestRunMetricsJSONWithNoLosses(t *testing.T) {
	m, _ := Compute([]models.SimTrade{rTrade(vtime(15, 10, 0), 2, 4)})
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Fatalf("loss-free run should report an infinite profit factor, got %v", m.ProfitFactor)
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"profit_factor":null`) {
		t.Fatalf("infinite profit factor must encode as null, got %s", b)
	}
	if !strings.Contains(string(b), `"total_trades":1`) {
		t.Fatalf("remaining fields must survive, got %s", b)
	}
}

func TestRunMetricsJSONFiniteProfitFactor(t *testing.T) {
	m, _ := Compute([]models.SimTrade{
		rTrade(vtime(15, 10, 0), 2, 4),
		rTrade(vtime(15, 11, 0), -1, 2),
	})
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"profit_factor":2`) {
		t.Fatalf("finite profit factor must encode as a number, got %s", b)
	}
}
