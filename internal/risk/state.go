package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var stateLog = logrus.WithField("component", "risk_state")

// State 风控状态：峰值余额、当日起始余额、当日交易计数。
// 字段不导出，所有变更只能通过方法进行；峰值只在 ResetPeak 时允许下调。
// 由单个控制循环独占持有，不支持并发变更（见 engine）。
type State struct {
	peakBalance       decimal.Decimal
	dailyStartBalance decimal.Decimal
	lastBalance       decimal.Decimal
	tradeCountToday   int
	lastResetDate     string // 交易所时区的日历日期，格式 2006-01-02

	loc *time.Location
	now func() time.Time
}

// NewState 创建风控状态。loc 为交易所时区（按日重置的依据）。
func NewState(loc *time.Location) *State {
	if loc == nil {
		loc = time.UTC
	}
	return &State{
		loc: loc,
		now: time.Now,
	}
}

// SetClock 注入时钟（仅测试用）
func (s *State) SetClock(now func() time.Time) {
	s.now = now
}

// rollDayIfNeeded 交易所时区日历日期变化时重置当日数据。
// 在每次对外操作的入口惰性调用（午夜后的第一次访问触发重置）。
func (s *State) rollDayIfNeeded() {
	today := s.now().In(s.loc).Format("2006-01-02")
	if s.lastResetDate == today {
		return
	}
	if s.lastResetDate != "" {
		stateLog.Infof("📅 新交易日 %s：重置当日起始余额=%s 交易计数（昨日 %d 笔）",
			today, s.lastBalance.StringFixed(2), s.tradeCountToday)
	}
	s.lastResetDate = today
	s.dailyStartBalance = s.lastBalance
	s.tradeCountToday = 0
}

// RecordBalance 记录一次余额观测。余额超过峰值时上调峰值；
// 亏损观测永远不会下调峰值，下调只能通过 ResetPeak。
func (s *State) RecordBalance(balance decimal.Decimal) {
	s.lastBalance = balance
	s.rollDayIfNeeded()
	if s.dailyStartBalance.IsZero() {
		s.dailyStartBalance = balance
	}
	if balance.GreaterThan(s.peakBalance) {
		s.peakBalance = balance
	}
}

// ResetPeak 操作员显式重置峰值（例如出入金之后高水位失真）。
// 这是唯一允许下调峰值的入口，同时重置当日起始余额。
func (s *State) ResetPeak(balance decimal.Decimal) {
	stateLog.Warnf("⚠️ 手动重置峰值: %s -> %s", s.peakBalance.StringFixed(2), balance.StringFixed(2))
	s.peakBalance = balance
	s.dailyStartBalance = balance
	s.lastBalance = balance
}

// CurrentDrawdown 当前回撤比例：(peak - balance) / peak，钳制在 [0,1]。
// peak <= 0 时定义为 0。
func (s *State) CurrentDrawdown() decimal.Decimal {
	if s.peakBalance.Sign() <= 0 {
		return decimal.Zero
	}
	dd := s.peakBalance.Sub(s.lastBalance).Div(s.peakBalance)
	return clampFraction(dd)
}

// DailyLossFraction 当日亏损比例：(dailyStart - balance) / dailyStart，钳制在 [0,1]。
// 当日起始余额 <= 0 或盈利时为 0。
func (s *State) DailyLossFraction() decimal.Decimal {
	s.rollDayIfNeeded()
	if s.dailyStartBalance.Sign() <= 0 {
		return decimal.Zero
	}
	loss := s.dailyStartBalance.Sub(s.lastBalance).Div(s.dailyStartBalance)
	return clampFraction(loss)
}

// RecordTrade 每次订单被接受后调用，累计当日交易计数
func (s *State) RecordTrade() {
	s.rollDayIfNeeded()
	s.tradeCountToday++
}

// TradeCountToday 当日交易计数
func (s *State) TradeCountToday() int {
	s.rollDayIfNeeded()
	return s.tradeCountToday
}

// PeakBalance 当前峰值余额
func (s *State) PeakBalance() decimal.Decimal {
	return s.peakBalance
}

// LastBalance 最近一次观测余额
func (s *State) LastBalance() decimal.Decimal {
	return s.lastBalance
}

// DailyStartBalance 当日起始余额
func (s *State) DailyStartBalance() decimal.Decimal {
	return s.dailyStartBalance
}

var one = decimal.NewFromInt(1)

// clampFraction 钳制到 [0,1]
func clampFraction(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}
