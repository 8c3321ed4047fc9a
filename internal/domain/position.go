package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position 仓位领域模型
type Position struct {
	Symbol       string          `json:"symbol"`        // 标的代码
	Quantity     decimal.Decimal `json:"quantity"`      // 持仓数量（负数表示空头）
	EntryPrice   decimal.Decimal `json:"entry_price"`   // 入场均价
	CurrentPrice decimal.Decimal `json:"current_price"` // 最新标记价格
	OpenedAt     time.Time       `json:"opened_at"`     // 开仓时间
}

// Notional 返回按当前价格计算的持仓市值（绝对值）
func (p Position) Notional() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice).Abs()
}

// UnrealizedPnL 返回未实现盈亏
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.EntryPrice).Mul(p.Quantity)
}

// PortfolioHeat 计算组合风险敞口：各仓位市值之和 / 余额。
// balance <= 0 时定义为 0（刚启动或异常账户，不做除零）。
func PortfolioHeat(positions map[string]Position, balance decimal.Decimal) decimal.Decimal {
	if balance.Sign() <= 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Notional())
	}
	return total.Div(balance)
}
