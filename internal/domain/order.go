package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"  // 待处理
	OrderStatusFilled   OrderStatus = "filled"   // 已成交
	OrderStatusRejected OrderStatus = "rejected" // 被拒绝
)

// Order 订单领域模型
type Order struct {
	ClientOrderID string          `json:"client_order_id"` // 客户端订单 ID
	Symbol        string          `json:"symbol"`          // 标的代码
	Side          Side            `json:"side"`            // 方向
	Quantity      decimal.Decimal `json:"quantity"`        // 数量（股）
	LimitPrice    decimal.Decimal `json:"limit_price"`     // 限价
	Notional      decimal.Decimal `json:"notional"`        // 名义金额（USD）
	CreatedAt     time.Time       `json:"created_at"`      // 创建时间
	FilledAt      *time.Time      `json:"filled_at"`       // 成交时间（可选）
	Status        OrderStatus     `json:"status"`          // 状态
}

// IsFilled 检查订单是否已成交
func (o *Order) IsFilled() bool {
	return o != nil && o.Status == OrderStatusFilled && o.FilledAt != nil
}
