package signals

import (
	"testing"
	"time"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/config"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(config.SignalConfig{
		MinAgreeCount:        1,
		MaxVolumeBoost:       0.10,
		MaxTimingPenalty:     0.15,
		MaxLevelBoost:        0.10,
		MaxCorrelationAdjust: 0.05,
	})
}

func vote(strategy string, dir domain.Direction, confidence, weight float64) domain.StrategyVote {
	return domain.StrategyVote{
		Strategy:   strategy,
		Symbol:     "AAPL",
		Direction:  dir,
		Confidence: confidence,
		Weight:     weight,
		At:         time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
}

// 聚合是纯函数：相同输入永远产生相同输出
func TestAggregateDeterminism(t *testing.T) {
	a := newTestAggregator()
	votes := []domain.StrategyVote{
		vote("momentum", domain.DirectionBuy, 0.8, 2.0),
		vote("meanrev", domain.DirectionBuy, 0.6, 1.0),
		vote("other", domain.DirectionSell, 0.9, 1.0),
	}
	mctx := domain.MarketContext{
		VolumeRatio:          1.8,
		MinutesFromOpen:      120,
		MinutesToClose:       200,
		NearSupport:          true,
		BenchmarkCorrelation: 0.5,
	}

	first := a.Aggregate("AAPL", votes, mctx)
	for i := 0; i < 50; i++ {
		got := a.Aggregate("AAPL", votes, mctx)
		if got != first {
			t.Fatalf("第 %d 次聚合结果不一致: %+v != %+v", i, got, first)
		}
	}
}

func TestMajorityDirection(t *testing.T) {
	a := newTestAggregator()

	sig := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.8, 1.0),
		vote("b", domain.DirectionBuy, 0.6, 1.0),
		vote("c", domain.DirectionSell, 0.9, 1.0),
	}, domain.MarketContext{VolumeRatio: 1.0})

	if sig.Direction != domain.DirectionBuy {
		t.Fatalf("多数方向应为 BUY: actual=%s", sig.Direction)
	}
	if sig.AgreeCount != 2 || sig.TotalVotes != 3 {
		t.Fatalf("计票错误: agree=%d total=%d", sig.AgreeCount, sig.TotalVotes)
	}
}

// 平票与 HOLD 票都不产生方向
func TestTieAndHoldProduceHold(t *testing.T) {
	a := newTestAggregator()

	sig := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.8, 1.0),
		vote("b", domain.DirectionSell, 0.8, 1.0),
	}, domain.MarketContext{VolumeRatio: 1.0})
	if sig.Direction != domain.DirectionHold {
		t.Fatalf("平票应输出 HOLD: actual=%s", sig.Direction)
	}

	sig = a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionHold, 0.9, 1.0),
		vote("b", domain.DirectionHold, 0.9, 1.0),
	}, domain.MarketContext{VolumeRatio: 1.0})
	if sig.Direction != domain.DirectionHold {
		t.Fatalf("全 HOLD 应输出 HOLD: actual=%s", sig.Direction)
	}

	sig = a.Aggregate("AAPL", nil, domain.MarketContext{})
	if sig.Direction != domain.DirectionHold || sig.TotalVotes != 0 {
		t.Fatalf("空投票应输出 HOLD: %+v", sig)
	}
}

func TestMinAgreeCountGate(t *testing.T) {
	a := NewAggregator(config.SignalConfig{MinAgreeCount: 2})

	sig := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.9, 1.0),
	}, domain.MarketContext{VolumeRatio: 1.0})
	if sig.Direction != domain.DirectionHold {
		t.Fatalf("同向策略数不足应输出 HOLD: actual=%s", sig.Direction)
	}

	sig = a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.9, 1.0),
		vote("b", domain.DirectionBuy, 0.7, 1.0),
	}, domain.MarketContext{VolumeRatio: 1.0})
	if sig.Direction != domain.DirectionBuy {
		t.Fatalf("同向策略数足够应输出方向: actual=%s", sig.Direction)
	}
}

// 加权平均只统计同向投票
func TestWeightedAverageOverAgreeingVotes(t *testing.T) {
	a := newTestAggregator()

	sig := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 1.0, 3.0),
		vote("b", domain.DirectionBuy, 0.5, 1.0),
		vote("c", domain.DirectionSell, 0.0, 100.0), // 反向票不参与平均
	}, domain.MarketContext{VolumeRatio: 1.0, MinutesFromOpen: 120, MinutesToClose: 200})

	// (1.0*3 + 0.5*1) / 4 = 0.875，中性上下文无修正
	expected := 0.875
	if diff := sig.Confidence - expected; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("加权平均错误: expected=%.3f actual=%.3f", expected, sig.Confidence)
	}
}

// 上下文修正有界，最终置信度钳制在 [0,1]
func TestContextAdjustmentsBounded(t *testing.T) {
	a := newTestAggregator()
	votes := []domain.StrategyVote{vote("a", domain.DirectionBuy, 1.0, 1.0)}

	// 全部正向修正叠加后仍不超过 1
	sig := a.Aggregate("AAPL", votes, domain.MarketContext{
		VolumeRatio:          2.0,
		MinutesFromOpen:      120,
		MinutesToClose:       200,
		NearSupport:          true,
		BenchmarkCorrelation: 1.0,
	})
	if sig.Confidence > 1.0 {
		t.Fatalf("置信度超过 1: actual=%.3f", sig.Confidence)
	}

	// 全部负向修正叠加后仍不低于 0
	sig = a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.05, 1.0),
	}, domain.MarketContext{
		VolumeRatio:          0.3,
		MinutesFromOpen:      5,
		MinutesToClose:       300,
		NearResistance:       true,
		BenchmarkCorrelation: -1.0,
	})
	if sig.Confidence < 0 {
		t.Fatalf("置信度低于 0: actual=%.3f", sig.Confidence)
	}
}

func TestTimingPenaltyNearOpenAndClose(t *testing.T) {
	a := newTestAggregator()
	votes := []domain.StrategyVote{vote("a", domain.DirectionBuy, 0.5, 1.0)}
	neutral := domain.MarketContext{VolumeRatio: 1.0, MinutesFromOpen: 120, MinutesToClose: 200}

	base := a.Aggregate("AAPL", votes, neutral).Confidence

	nearOpen := neutral
	nearOpen.MinutesFromOpen = 5
	got := a.Aggregate("AAPL", votes, nearOpen).Confidence
	if diff := (base - got) - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("开盘附近惩罚错误: base=%.3f got=%.3f", base, got)
	}

	nearClose := neutral
	nearClose.MinutesToClose = 5
	got = a.Aggregate("AAPL", votes, nearClose).Confidence
	if diff := (base - got) - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("收盘附近惩罚错误: base=%.3f got=%.3f", base, got)
	}
}

// 相关性修正对 SELL 方向取反
func TestCorrelationAdjustFlipsForSell(t *testing.T) {
	a := newTestAggregator()
	mctx := domain.MarketContext{VolumeRatio: 1.0, MinutesFromOpen: 120, MinutesToClose: 200,
		BenchmarkCorrelation: 1.0}

	buy := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionBuy, 0.5, 1.0),
	}, mctx)
	sell := a.Aggregate("AAPL", []domain.StrategyVote{
		vote("a", domain.DirectionSell, 0.5, 1.0),
	}, mctx)

	if diff := (buy.Confidence - 0.55); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("BUY 正相关应加成: actual=%.3f", buy.Confidence)
	}
	if diff := (sell.Confidence - 0.45); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("SELL 正相关应减分: actual=%.3f", sell.Confidence)
	}
}
