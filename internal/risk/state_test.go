package risk

import (
	"math/rand"
	"testing"
	"testing/quick"
	"time"

	"github.com/shopspring/decimal"
)

func newTestState() *State {
	s := NewState(time.UTC)
	fixed := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	return s
}

// 峰值单调性：无论余额序列怎么走，RecordBalance 永远不会下调峰值
func TestPeakMonotonicity(t *testing.T) {
	property := func(raw []int64) bool {
		s := newTestState()
		prevPeak := decimal.Zero
		for _, r := range raw {
			// 余额约束到 (0, 1e6] 区间
			bal := decimal.NewFromInt(1 + (abs64(r) % 1000000))
			s.RecordBalance(bal)
			if s.PeakBalance().LessThan(prevPeak) {
				t.Logf("峰值下降: prev=%s now=%s", prevPeak, s.PeakBalance())
				return false
			}
			prevPeak = s.PeakBalance()
		}
		return true
	}

	cfg := &quick.Config{
		MaxCount: 200,
		Rand:     rand.New(rand.NewSource(42)),
	}
	if err := quick.Check(property, cfg); err != nil {
		t.Errorf("峰值单调性被违反: %v", err)
	}
}

// 回撤值域：任何余额序列下回撤都在 [0,1] 区间
func TestDrawdownBounds(t *testing.T) {
	property := func(raw []int64) bool {
		s := newTestState()
		for _, r := range raw {
			bal := decimal.NewFromInt(1 + (abs64(r) % 1000000))
			s.RecordBalance(bal)
			dd := s.CurrentDrawdown()
			if dd.Sign() < 0 || dd.GreaterThan(decimal.NewFromInt(1)) {
				t.Logf("回撤越界: %s", dd)
				return false
			}
		}
		return true
	}

	cfg := &quick.Config{
		MaxCount: 200,
		Rand:     rand.New(rand.NewSource(7)),
	}
	if err := quick.Check(property, cfg); err != nil {
		t.Errorf("回撤值域被违反: %v", err)
	}
}

func TestDrawdownExample(t *testing.T) {
	s := newTestState()
	s.RecordBalance(decimal.NewFromInt(100000))
	s.RecordBalance(decimal.NewFromInt(85000))

	dd := s.CurrentDrawdown()
	if !dd.Equal(decimal.NewFromFloat(0.15)) {
		t.Fatalf("回撤计算错误: expected=0.15 actual=%s", dd)
	}
}

func TestDrawdownZeroAtPeak(t *testing.T) {
	s := newTestState()
	s.RecordBalance(decimal.NewFromInt(50000))

	if !s.CurrentDrawdown().IsZero() {
		t.Fatalf("余额即峰值时回撤应为 0: actual=%s", s.CurrentDrawdown())
	}

	// 创新高后回撤立即归零
	s.RecordBalance(decimal.NewFromInt(40000))
	s.RecordBalance(decimal.NewFromInt(60000))
	if !s.CurrentDrawdown().IsZero() {
		t.Fatalf("创新高后回撤应为 0: actual=%s", s.CurrentDrawdown())
	}
}

func TestDrawdownZeroBeforeAnyBalance(t *testing.T) {
	s := newTestState()
	if !s.CurrentDrawdown().IsZero() {
		t.Fatalf("无余额观测时回撤应为 0: actual=%s", s.CurrentDrawdown())
	}
	if !s.DailyLossFraction().IsZero() {
		t.Fatalf("无余额观测时当日亏损应为 0: actual=%s", s.DailyLossFraction())
	}
}

func TestResetPeakIsOnlyDownwardPath(t *testing.T) {
	s := newTestState()
	s.RecordBalance(decimal.NewFromInt(100000))
	s.RecordBalance(decimal.NewFromInt(85000))

	// 亏损观测不下调峰值
	if !s.PeakBalance().Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("亏损观测不应下调峰值: actual=%s", s.PeakBalance())
	}

	// 显式重置是唯一下调入口
	s.ResetPeak(decimal.NewFromInt(85000))
	if !s.PeakBalance().Equal(decimal.NewFromInt(85000)) {
		t.Fatalf("重置后峰值错误: actual=%s", s.PeakBalance())
	}
	if !s.CurrentDrawdown().IsZero() {
		t.Fatalf("重置后回撤应为 0: actual=%s", s.CurrentDrawdown())
	}
}

// 按交易所时区跨日：午夜后的第一次访问触发当日数据重置
func TestDailyRollover(t *testing.T) {
	s := NewState(time.UTC)
	day1 := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return day1 })

	s.RecordBalance(decimal.NewFromInt(100000))
	s.RecordBalance(decimal.NewFromInt(95000))
	s.RecordTrade()
	s.RecordTrade()

	if got := s.DailyLossFraction(); !got.Equal(decimal.NewFromFloat(0.05)) {
		t.Fatalf("当日亏损计算错误: expected=0.05 actual=%s", got)
	}
	if s.TradeCountToday() != 2 {
		t.Fatalf("当日交易计数错误: expected=2 actual=%d", s.TradeCountToday())
	}

	// 跨日：当日起始余额重置为最新余额，计数归零，峰值保持
	day2 := day1.Add(24 * time.Hour)
	s.SetClock(func() time.Time { return day2 })

	if !s.DailyLossFraction().IsZero() {
		t.Fatalf("跨日后当日亏损应为 0: actual=%s", s.DailyLossFraction())
	}
	if s.TradeCountToday() != 0 {
		t.Fatalf("跨日后交易计数应为 0: actual=%d", s.TradeCountToday())
	}
	if !s.PeakBalance().Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("跨日不应影响峰值: actual=%s", s.PeakBalance())
	}
	if !s.DailyStartBalance().Equal(decimal.NewFromInt(95000)) {
		t.Fatalf("跨日后当日起始余额应为最新余额: actual=%s", s.DailyStartBalance())
	}
}

// 当日盈利时亏损比例为 0（不会出现负亏损）
func TestDailyLossZeroWhenProfitable(t *testing.T) {
	s := newTestState()
	s.RecordBalance(decimal.NewFromInt(100000))
	s.RecordBalance(decimal.NewFromInt(110000))

	if !s.DailyLossFraction().IsZero() {
		t.Fatalf("盈利时当日亏损应为 0: actual=%s", s.DailyLossFraction())
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		// MinInt64 取反会溢出，钳到一个普通正数
		if v == -9223372036854775808 {
			return 1
		}
		return -v
	}
	return v
}
