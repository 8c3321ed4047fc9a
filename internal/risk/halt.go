package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var haltLog = logrus.WithField("component", "halt_manager")

// HaltState 熔断状态
type HaltState string

const (
	StateActive HaltState = "ACTIVE"
	StateHalted HaltState = "HALTED"
)

// HaltConfig 熔断配置。阈值为比例（0.10 = 10%）。
type HaltConfig struct {
	MaxDrawdown  decimal.Decimal // 回撤熔断阈值
	MaxDailyLoss decimal.Decimal // 当日亏损熔断阈值
	Cooldown     time.Duration   // 熔断后恢复冷却时间
	AuthCode     string          // 恢复交易授权码
}

// HaltManager 紧急熔断管理器。
// ACTIVE -> HALTED 由阈值自动触发且单向；HALTED -> ACTIVE 只能通过
// ResumeTrading 显式恢复，管理器自身永远不会自动恢复。
type HaltManager struct {
	cfg      HaltConfig
	state    HaltState
	haltedAt time.Time
	reason   string
	now      func() time.Time
}

// NewHaltManager 创建熔断管理器（初始 ACTIVE）
func NewHaltManager(cfg HaltConfig) *HaltManager {
	return &HaltManager{
		cfg:   cfg,
		state: StateActive,
		now:   time.Now,
	}
}

// SetClock 注入时钟（仅测试用）
func (h *HaltManager) SetClock(now func() time.Time) {
	h.now = now
}

// IsHalted 是否处于熔断状态
func (h *HaltManager) IsHalted() bool {
	return h.state == StateHalted
}

// State 当前状态
func (h *HaltManager) State() HaltState {
	return h.state
}

// HaltReason 熔断原因（未熔断时为空）
func (h *HaltManager) HaltReason() string {
	return h.reason
}

// HaltedAt 熔断时间（未熔断时为零值）
func (h *HaltManager) HaltedAt() time.Time {
	return h.haltedAt
}

// Evaluate 按当前回撤/当日亏损评估是否触发熔断。
// 返回值表示本次调用是否发生了 ACTIVE -> HALTED 转换。
// 已处于 HALTED 时不做任何事（转换单向，不会叠加）。
func (h *HaltManager) Evaluate(drawdown, dailyLoss decimal.Decimal) bool {
	if h.state == StateHalted {
		return false
	}

	var reason string
	switch {
	case drawdown.GreaterThanOrEqual(h.cfg.MaxDrawdown):
		reason = fmt.Sprintf("回撤 %s 达到阈值 %s", pct(drawdown), pct(h.cfg.MaxDrawdown))
	case dailyLoss.GreaterThanOrEqual(h.cfg.MaxDailyLoss):
		reason = fmt.Sprintf("当日亏损 %s 达到阈值 %s", pct(dailyLoss), pct(h.cfg.MaxDailyLoss))
	default:
		return false
	}

	h.state = StateHalted
	h.haltedAt = h.now()
	h.reason = reason
	haltLog.Errorf("🛑 紧急熔断: %s（冷却 %v 后可恢复）", reason, h.cfg.Cooldown)
	return true
}

// ResumeTrading 显式恢复交易。
// 授权码缺失/错误、或冷却未结束且未强制时拒绝：返回 (false, 原因)，
// 不改变任何状态，也不会 panic/返回 error——拒绝是正常结果。
// force=true 跳过冷却检查，但调用仍带授权码记入审计日志。
func (h *HaltManager) ResumeTrading(code string, force bool) (bool, string) {
	if h.state != StateHalted {
		return false, "当前未处于熔断状态"
	}
	if strings.TrimSpace(code) == "" {
		haltLog.Warnf("❌ 恢复交易被拒绝：授权码为空")
		return false, "授权码不能为空"
	}
	if code != h.cfg.AuthCode {
		haltLog.Warnf("❌ 恢复交易被拒绝：授权码错误")
		return false, "授权码错误"
	}

	elapsed := h.now().Sub(h.haltedAt)
	if elapsed < h.cfg.Cooldown && !force {
		remaining := h.cfg.Cooldown - elapsed
		haltLog.Warnf("❌ 恢复交易被拒绝：冷却未结束，剩余 %v", remaining.Round(time.Second))
		return false, fmt.Sprintf("冷却未结束，剩余 %v", remaining.Round(time.Second))
	}

	// 审计：force 绕过冷却时必须连同授权串一起记录
	if force && elapsed < h.cfg.Cooldown {
		haltLog.Warnf("🔓 强制恢复交易（绕过冷却）: code=%s 熔断时长=%v 原因=%q",
			code, elapsed.Round(time.Second), h.reason)
	} else {
		haltLog.Infof("🔓 恢复交易: code=%s 熔断时长=%v 原因=%q",
			code, elapsed.Round(time.Second), h.reason)
	}

	h.state = StateActive
	h.haltedAt = time.Time{}
	h.reason = ""
	return true, "已恢复交易"
}

var hundred = decimal.NewFromInt(100)

func pct(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(2) + "%"
}
