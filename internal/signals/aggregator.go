package signals

import (
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/config"
)

var aggLog = logrus.WithField("component", "signal_aggregator")

// Aggregator 把多个策略的独立投票合并为一个聚合置信度。
// 整个聚合路径是纯函数：相同的投票和市场上下文永远产生相同的结果，
// 不允许引入任何随机性。
type Aggregator struct {
	cfg config.SignalConfig
}

// NewAggregator 创建信号聚合器
func NewAggregator(cfg config.SignalConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate 聚合策略投票：
// 1. 统计 BUY/SELL 多数方向（HOLD 不参与计票，平票视为 HOLD）
// 2. 对同向投票按权重求加权平均置信度
// 3. 叠加市场上下文的有界加性修正，最后钳制到 [0,1]
// 同向策略数不足 min_agree_count 时输出 HOLD。
func (a *Aggregator) Aggregate(symbol string, votes []domain.StrategyVote, mctx domain.MarketContext) domain.AggregatedSignal {
	out := domain.AggregatedSignal{
		Symbol:     symbol,
		Direction:  domain.DirectionHold,
		TotalVotes: len(votes),
	}
	if len(votes) == 0 {
		return out
	}

	buyCount, sellCount := 0, 0
	for _, v := range votes {
		switch v.Direction {
		case domain.DirectionBuy:
			buyCount++
		case domain.DirectionSell:
			sellCount++
		}
	}

	var dir domain.Direction
	switch {
	case buyCount > sellCount:
		dir = domain.DirectionBuy
		out.AgreeCount = buyCount
	case sellCount > buyCount:
		dir = domain.DirectionSell
		out.AgreeCount = sellCount
	default:
		// 无多数方向
		return out
	}

	if out.AgreeCount < a.cfg.MinAgreeCount {
		aggLog.Debugf("同向策略数不足: symbol=%s dir=%s agree=%d need=%d",
			symbol, dir, out.AgreeCount, a.cfg.MinAgreeCount)
		return out
	}

	// 同向投票的加权平均置信度
	var weightedSum, weightTotal float64
	for _, v := range votes {
		if v.Direction != dir {
			continue
		}
		w := v.EffectiveWeight()
		weightedSum += clamp01(v.Confidence) * w
		weightTotal += w
	}
	if weightTotal <= 0 {
		return out
	}
	confidence := weightedSum / weightTotal

	// 市场上下文修正（有界加性）
	confidence += a.volumeAdjust(mctx)
	confidence += a.timingAdjust(mctx)
	confidence += a.levelAdjust(dir, mctx)
	confidence += a.correlationAdjust(dir, mctx)

	out.Direction = dir
	out.Confidence = clamp01(confidence)

	aggLog.Debugf("📊 聚合信号: symbol=%s dir=%s confidence=%.3f agree=%d/%d",
		symbol, dir, out.Confidence, out.AgreeCount, out.TotalVotes)
	return out
}

// volumeAdjust 成交量确认：放量加成，缩量减分。
// 修正值被各自的配置上限约束。
func (a *Aggregator) volumeAdjust(mctx domain.MarketContext) float64 {
	switch {
	case mctx.VolumeRatio >= 1.5:
		return a.cfg.MaxVolumeBoost
	case mctx.VolumeRatio > 0 && mctx.VolumeRatio < 0.7:
		return -a.cfg.MaxVolumeBoost / 2
	default:
		return 0
	}
}

// timingAdjust 时段修正：开盘/收盘前后 15 分钟波动大，降低置信度。
func (a *Aggregator) timingAdjust(mctx domain.MarketContext) float64 {
	if mctx.MinutesFromOpen >= 0 && mctx.MinutesFromOpen < 15 {
		return -a.cfg.MaxTimingPenalty
	}
	if mctx.MinutesToClose >= 0 && mctx.MinutesToClose < 15 {
		return -a.cfg.MaxTimingPenalty
	}
	return 0
}

// levelAdjust 支撑/阻力位修正：顺着关键价位方向加成，逆着减分。
func (a *Aggregator) levelAdjust(dir domain.Direction, mctx domain.MarketContext) float64 {
	switch dir {
	case domain.DirectionBuy:
		if mctx.NearSupport {
			return a.cfg.MaxLevelBoost
		}
		if mctx.NearResistance {
			return -a.cfg.MaxLevelBoost
		}
	case domain.DirectionSell:
		if mctx.NearResistance {
			return a.cfg.MaxLevelBoost
		}
		if mctx.NearSupport {
			return -a.cfg.MaxLevelBoost
		}
	}
	return 0
}

// correlationAdjust 基准相关性修正：与基准同向加成，逆向减分。
func (a *Aggregator) correlationAdjust(dir domain.Direction, mctx domain.MarketContext) float64 {
	corr := mctx.BenchmarkCorrelation
	if corr < -1 {
		corr = -1
	}
	if corr > 1 {
		corr = 1
	}
	if dir == domain.DirectionSell {
		corr = -corr
	}
	return corr * a.cfg.MaxCorrelationAdjust
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
