package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot 账户快照。由券商轮询产生，捕获后不可变。
type AccountSnapshot struct {
	Balance   decimal.Decimal `json:"balance"`   // 账户余额（USD）
	Timestamp time.Time       `json:"timestamp"` // 捕获时间
}

// Age 返回快照年龄
func (s AccountSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// IsStale 检查快照是否超过允许的过期窗口
func (s AccountSnapshot) IsStale(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return s.Age(now) > window
}
