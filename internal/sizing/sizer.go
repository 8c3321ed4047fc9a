package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/config"
)

var sizerLog = logrus.WithField("component", "position_sizer")

// Request 仓位计算请求
type Request struct {
	Symbol               string
	AggregatedConfidence float64         // 聚合置信度 [0,1]
	EntryPrice           decimal.Decimal // 入场价格（必须 > 0）
	CurrentBalance       decimal.Decimal // 当前余额
	OpenPositions        map[string]domain.Position
}

// Result 仓位计算结果。拒绝是正常的、需要上报的结果，不是错误。
type Result struct {
	Size     decimal.Decimal // 仓位金额（USD）
	Approved bool
	Reason   string
}

// Sizer 仓位计算器：把聚合置信度映射为有界的美元仓位。
type Sizer struct {
	base    decimal.Decimal
	min     decimal.Decimal
	max     decimal.Decimal
	maxHeat decimal.Decimal // 最大组合风险敞口比例
	bands   []config.ConfidenceBand
	top     decimal.Decimal
}

// NewSizer 从配置创建仓位计算器（配置已在启动时校验）
func NewSizer(cfg config.SizingConfig) *Sizer {
	return &Sizer{
		base:    decimal.NewFromFloat(cfg.BasePositionSize),
		min:     decimal.NewFromFloat(cfg.MinPositionSize),
		max:     decimal.NewFromFloat(cfg.MaxPositionSize),
		maxHeat: decimal.NewFromFloat(cfg.MaxPortfolioHeatPercent / 100),
		bands:   cfg.ConfidenceBands,
		top:     decimal.NewFromFloat(cfg.TopMultiplier),
	}
}

// multiplier 置信度乘数：单调递增的分档函数，档位来自配置。
func (s *Sizer) multiplier(confidence float64) decimal.Decimal {
	for _, b := range s.bands {
		if confidence < b.Below {
			return decimal.NewFromFloat(b.Multiplier)
		}
	}
	return s.top
}

// reject 返回拒绝结果并记录日志
func reject(symbol, format string, args ...interface{}) Result {
	reason := fmt.Sprintf(format, args...)
	sizerLog.Infof("⛔ 仓位被拒绝: symbol=%s reason=%s", symbol, reason)
	return Result{Size: decimal.Zero, Approved: false, Reason: reason}
}

// Calculate 计算仓位：base × multiplier(confidence)，钳制到 [min, max]，
// 再检查 (size + 当前敞口金额) / balance 不超过最大敞口比例。
func (s *Sizer) Calculate(req Request) Result {
	if req.CurrentBalance.Sign() <= 0 {
		return reject(req.Symbol, "余额必须大于 0: %s", req.CurrentBalance)
	}
	if req.EntryPrice.Sign() <= 0 {
		return reject(req.Symbol, "入场价格必须大于 0: %s", req.EntryPrice)
	}
	if req.AggregatedConfidence < 0 || req.AggregatedConfidence > 1 {
		return reject(req.Symbol, "置信度超出 [0,1]: %v", req.AggregatedConfidence)
	}

	size := s.base.Mul(s.multiplier(req.AggregatedConfidence))

	// 钳制到 [min, max]
	if size.LessThan(s.min) {
		size = s.min
	}
	if size.GreaterThan(s.max) {
		size = s.max
	}

	// 组合风险敞口检查：新仓位加入后不得超过上限
	heatDollars := decimal.Zero
	for _, p := range req.OpenPositions {
		heatDollars = heatDollars.Add(p.Notional())
	}
	projected := size.Add(heatDollars).Div(req.CurrentBalance)
	if projected.GreaterThan(s.maxHeat) {
		return reject(req.Symbol, "组合敞口超限: 当前=%s%% 新增后=%s%% 上限=%s%%",
			heatDollars.Div(req.CurrentBalance).Mul(hundred).StringFixed(2),
			projected.Mul(hundred).StringFixed(2),
			s.maxHeat.Mul(hundred).StringFixed(2))
	}

	sizerLog.Debugf("✅ 仓位批准: symbol=%s confidence=%.3f size=%s heat=%s%%",
		req.Symbol, req.AggregatedConfidence, size.StringFixed(2),
		projected.Mul(hundred).StringFixed(2))
	return Result{Size: size, Approved: true, Reason: "ok"}
}

var hundred = decimal.NewFromInt(100)
