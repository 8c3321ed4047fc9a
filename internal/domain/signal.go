package domain

import "time"

// Direction 信号方向
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// StrategyVote 单个策略的投票：方向 + 置信度 + 权重
type StrategyVote struct {
	Strategy   string    `json:"strategy"`   // 策略名
	Symbol     string    `json:"symbol"`     // 标的代码
	Direction  Direction `json:"direction"`  // 方向
	Confidence float64   `json:"confidence"` // 置信度 [0,1]
	Weight     float64   `json:"weight"`     // 聚合权重（<=0 视为 1）
	At         time.Time `json:"at"`         // 产生时间
}

// EffectiveWeight 返回有效权重（未配置时为 1）
func (v StrategyVote) EffectiveWeight() float64 {
	if v.Weight <= 0 {
		return 1
	}
	return v.Weight
}

// MarketContext 聚合时的市场上下文。各调整项是有界的加性修正，
// 最终置信度会被钳制在 [0,1]。
type MarketContext struct {
	VolumeRatio          float64 // 当前成交量 / 近期均量（>1 表示放量确认）
	MinutesFromOpen      int     // 距开盘分钟数
	MinutesToClose       int     // 距收盘分钟数
	NearSupport          bool    // 买入方向是否接近支撑位
	NearResistance       bool    // 卖出方向是否接近阻力位
	BenchmarkCorrelation float64 // 与基准同向程度 [-1,1]（如 SPY 当日走势）
}

// AggregatedSignal 聚合结果
type AggregatedSignal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`  // 多数方向（无多数时为 HOLD）
	Confidence float64   `json:"confidence"` // 聚合置信度 [0,1]
	AgreeCount int       `json:"agree_count"` // 同向策略数
	TotalVotes int       `json:"total_votes"` // 参与投票的策略数
}
