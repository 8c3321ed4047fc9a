package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestHalt(cooldown time.Duration) (*HaltManager, *time.Time) {
	h := NewHaltManager(HaltConfig{
		MaxDrawdown:  decimal.NewFromFloat(0.10),
		MaxDailyLoss: decimal.NewFromFloat(0.05),
		Cooldown:     cooldown,
		AuthCode:     "RESUME-2026",
	})
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	h.SetClock(func() time.Time { return now })
	return h, &now
}

func TestHaltTriggersExactlyAtThreshold(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)

	// 阈值以下不触发
	if h.Evaluate(decimal.NewFromFloat(0.0999), decimal.Zero) {
		t.Fatal("阈值以下不应触发熔断")
	}
	if h.IsHalted() {
		t.Fatal("阈值以下状态应保持 ACTIVE")
	}

	// 恰好到达阈值触发（>= 语义）
	if !h.Evaluate(decimal.NewFromFloat(0.10), decimal.Zero) {
		t.Fatal("回撤到达阈值应触发熔断")
	}
	if !h.IsHalted() {
		t.Fatal("触发后状态应为 HALTED")
	}
	if h.HaltReason() == "" {
		t.Fatal("熔断后原因不应为空")
	}
}

func TestHaltOnDailyLoss(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)

	if !h.Evaluate(decimal.Zero, decimal.NewFromFloat(0.05)) {
		t.Fatal("当日亏损到达阈值应触发熔断")
	}
}

// 熔断是单向的：已 HALTED 时再评估不产生新的转换
func TestHaltDoesNotRetrigger(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)

	if !h.Evaluate(decimal.NewFromFloat(0.20), decimal.Zero) {
		t.Fatal("第一次评估应触发熔断")
	}
	firstReason := h.HaltReason()

	if h.Evaluate(decimal.NewFromFloat(0.50), decimal.NewFromFloat(0.50)) {
		t.Fatal("已熔断时不应再次触发转换")
	}
	if h.HaltReason() != firstReason {
		t.Fatalf("已熔断时原因不应被覆盖: %q -> %q", firstReason, h.HaltReason())
	}
}

// 管理器永远不会自动恢复：冷却结束后仍保持 HALTED
func TestNoAutoResume(t *testing.T) {
	h, now := newTestHalt(30 * time.Minute)
	h.Evaluate(decimal.NewFromFloat(0.20), decimal.Zero)

	*now = now.Add(24 * time.Hour)
	h.Evaluate(decimal.Zero, decimal.Zero)
	if !h.IsHalted() {
		t.Fatal("冷却结束也不应自动恢复")
	}
}

func TestResumeRefusalsDoNotMutate(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)
	h.Evaluate(decimal.NewFromFloat(0.20), decimal.Zero)
	haltedAt := h.HaltedAt()

	cases := []struct {
		name  string
		code  string
		force bool
	}{
		{"空授权码", "", false},
		{"空授权码强制", "", true},
		{"错误授权码", "WRONG", false},
		{"错误授权码强制", "WRONG", true},
		{"冷却未结束", "RESUME-2026", false},
	}
	for _, tc := range cases {
		ok, msg := h.ResumeTrading(tc.code, tc.force)
		if ok {
			t.Fatalf("%s: 应被拒绝", tc.name)
		}
		if msg == "" {
			t.Fatalf("%s: 拒绝原因不应为空", tc.name)
		}
		if !h.IsHalted() {
			t.Fatalf("%s: 拒绝后应仍处于 HALTED", tc.name)
		}
		if !h.HaltedAt().Equal(haltedAt) {
			t.Fatalf("%s: 拒绝不应改变熔断时间", tc.name)
		}
	}
}

func TestResumeAfterCooldown(t *testing.T) {
	h, now := newTestHalt(30 * time.Minute)
	h.Evaluate(decimal.NewFromFloat(0.20), decimal.Zero)

	*now = now.Add(31 * time.Minute)
	ok, _ := h.ResumeTrading("RESUME-2026", false)
	if !ok {
		t.Fatal("冷却结束 + 正确授权码应恢复")
	}
	if h.IsHalted() {
		t.Fatal("恢复后状态应为 ACTIVE")
	}
	if h.HaltReason() != "" {
		t.Fatalf("恢复后原因应清空: %q", h.HaltReason())
	}
}

// force 绕过冷却但不绕过授权码
func TestForceResumeBypassesCooldownOnly(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)
	h.Evaluate(decimal.NewFromFloat(0.20), decimal.Zero)

	if ok, _ := h.ResumeTrading("RESUME-2026", true); !ok {
		t.Fatal("force + 正确授权码应立即恢复")
	}
}

func TestResumeWhenNotHalted(t *testing.T) {
	h, _ := newTestHalt(30 * time.Minute)

	ok, msg := h.ResumeTrading("RESUME-2026", false)
	if ok {
		t.Fatal("未熔断时恢复请求应被拒绝")
	}
	if msg == "" {
		t.Fatal("拒绝原因不应为空")
	}
}
