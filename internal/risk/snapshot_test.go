package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// 快照 -> 恢复：熔断状态必须跨进程重启保持
func TestSnapshotRestorePreservesHalt(t *testing.T) {
	s := newTestState()
	h, now := newTestHalt(30 * time.Minute)

	s.RecordBalance(decimal.NewFromInt(100000))
	s.RecordBalance(decimal.NewFromInt(85000))
	s.RecordTrade()
	h.Evaluate(s.CurrentDrawdown(), s.DailyLossFraction())
	if !h.IsHalted() {
		t.Fatal("15% 回撤应触发熔断")
	}

	snap := TakeSnapshot(s, h)

	// 模拟进程重启
	s2 := newTestState()
	h2 := NewHaltManager(HaltConfig{
		MaxDrawdown:  decimal.NewFromFloat(0.10),
		MaxDailyLoss: decimal.NewFromFloat(0.05),
		Cooldown:     30 * time.Minute,
		AuthCode:     "RESUME-2026",
	})
	h2.SetClock(func() time.Time { return *now })
	Restore(snap, s2, h2)

	if !h2.IsHalted() {
		t.Fatal("恢复后应保持 HALTED")
	}
	if h2.HaltReason() != h.HaltReason() {
		t.Fatalf("熔断原因丢失: %q != %q", h2.HaltReason(), h.HaltReason())
	}
	if !h2.HaltedAt().Equal(h.HaltedAt()) {
		t.Fatalf("熔断时间丢失: %v != %v", h2.HaltedAt(), h.HaltedAt())
	}
	if !s2.PeakBalance().Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("峰值丢失: actual=%s", s2.PeakBalance())
	}
	if !s2.LastBalance().Equal(decimal.NewFromInt(85000)) {
		t.Fatalf("最新余额丢失: actual=%s", s2.LastBalance())
	}
	if s2.TradeCountToday() != 1 {
		t.Fatalf("交易计数丢失: actual=%d", s2.TradeCountToday())
	}
}

func TestSnapshotActiveState(t *testing.T) {
	s := newTestState()
	h, _ := newTestHalt(30 * time.Minute)
	s.RecordBalance(decimal.NewFromInt(100000))

	snap := TakeSnapshot(s, h)
	if snap.HaltState != StateActive {
		t.Fatalf("未熔断时快照状态应为 ACTIVE: actual=%s", snap.HaltState)
	}
	if snap.HaltedAt != nil {
		t.Fatal("未熔断时快照不应带熔断时间")
	}
	if !snap.Drawdown.IsZero() {
		t.Fatalf("余额即峰值时冗余回撤字段应为 0: actual=%s", snap.Drawdown)
	}
}
