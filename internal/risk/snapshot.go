package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot 风控状态的 KV 快照。每次状态变更后写入持久化存储，
// 外部进程（dashboard）只读该快照，进程重启时据此恢复。
type Snapshot struct {
	PeakBalance       decimal.Decimal `json:"peak_balance"`
	DailyStartBalance decimal.Decimal `json:"daily_start_balance"`
	LastBalance       decimal.Decimal `json:"last_balance"`
	TradeCountToday   int             `json:"trade_count_today"`
	LastResetDate     string          `json:"last_reset_date"`

	HaltState  HaltState  `json:"halt_state"`
	HaltedAt   *time.Time `json:"halted_at,omitempty"`
	HaltReason string     `json:"halt_reason,omitempty"`

	Drawdown  decimal.Decimal `json:"drawdown"`   // 冗余字段，方便只读方直接展示
	DailyLoss decimal.Decimal `json:"daily_loss"` // 同上
	SavedAt   time.Time       `json:"saved_at"`
}

// TakeSnapshot 汇总当前风控状态
func TakeSnapshot(s *State, h *HaltManager) Snapshot {
	snap := Snapshot{
		PeakBalance:       s.peakBalance,
		DailyStartBalance: s.dailyStartBalance,
		LastBalance:       s.lastBalance,
		TradeCountToday:   s.tradeCountToday,
		LastResetDate:     s.lastResetDate,
		HaltState:         h.state,
		HaltReason:        h.reason,
		Drawdown:          s.CurrentDrawdown(),
		DailyLoss:         s.DailyLossFraction(),
		SavedAt:           time.Now(),
	}
	if !h.haltedAt.IsZero() {
		t := h.haltedAt
		snap.HaltedAt = &t
	}
	return snap
}

// Restore 从快照恢复风控状态（进程重启后调用一次）
func Restore(snap Snapshot, s *State, h *HaltManager) {
	s.peakBalance = snap.PeakBalance
	s.dailyStartBalance = snap.DailyStartBalance
	s.lastBalance = snap.LastBalance
	s.tradeCountToday = snap.TradeCountToday
	s.lastResetDate = snap.LastResetDate

	if snap.HaltState == StateHalted {
		h.state = StateHalted
		h.reason = snap.HaltReason
		if snap.HaltedAt != nil {
			h.haltedAt = *snap.HaltedAt
		}
	}
}
