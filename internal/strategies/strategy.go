package strategies

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockbot/gostock/internal/domain"
)

// Strategy 投票策略接口。策略消费价格观测，产出带置信度的方向投票。
// 投票必须是价格历史的确定性函数——聚合路径不允许随机信号。
type Strategy interface {
	// ID 策略标识
	ID() string

	// Observe 喂入一次价格观测
	Observe(symbol string, price decimal.Decimal, at time.Time)

	// Vote 对指定标的投票。数据不足时返回 ok=false。
	Vote(symbol string, now time.Time) (vote domain.StrategyVote, ok bool)
}

// StrategyValidator 策略配置校验接口（可选）
type StrategyValidator interface {
	Validate() error
}

// StrategyDefaulter 策略默认值接口（可选）
type StrategyDefaulter interface {
	Defaults() error
}
