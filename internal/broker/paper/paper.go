package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
)

var log = logrus.WithField("component", "paper_broker")

// Broker 纸交易券商：内存账本，订单按最新报价立即成交。
// 让控制循环在没有真实券商会话时也能完整跑通。
type Broker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]domain.Position
	quotes    map[string]decimal.Decimal
	now       func() time.Time
}

// New 创建纸交易券商
func New(startingBalance decimal.Decimal) *Broker {
	return &Broker{
		cash:      startingBalance,
		positions: make(map[string]domain.Position),
		quotes:    make(map[string]decimal.Decimal),
		now:       time.Now,
	}
}

// SetClock 注入时钟（仅测试用）
func (b *Broker) SetClock(now func() time.Time) {
	b.now = now
}

// SetQuote 设置标的报价（行情来源：ws 流或测试注入）
func (b *Broker) SetQuote(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = price
	// 同步刷新持仓标记价格
	if p, ok := b.positions[symbol]; ok {
		p.CurrentPrice = price
		b.positions[symbol] = p
	}
}

// GetAccountBalance 返回账户余额快照（现金 + 持仓市值）
func (b *Broker) GetAccountBalance(ctx context.Context) (domain.AccountSnapshot, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, p := range b.positions {
		equity = equity.Add(p.Quantity.Mul(p.CurrentPrice))
	}
	return domain.AccountSnapshot{
		Balance:   equity,
		Timestamp: b.now(),
	}, nil
}

// GetOpenPositions 返回全部未平仓位（副本）
func (b *Broker) GetOpenPositions(ctx context.Context) (map[string]domain.Position, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]domain.Position, len(b.positions))
	for sym, p := range b.positions {
		out[sym] = p
	}
	return out, nil
}

// GetLastPrice 返回标的最新报价
func (b *Broker) GetLastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("无报价: %s", symbol)
	}
	return price, nil
}

// PlaceOrder 按最新报价立即成交（无滑点、无手续费的简化模型）
func (b *Broker) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.quotes[order.Symbol]
	if !ok {
		order.Status = domain.OrderStatusRejected
		return order, fmt.Errorf("无报价: %s", order.Symbol)
	}

	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.NewString()
	}
	now := b.now()
	order.CreatedAt = now

	qty := order.Quantity
	if qty.IsZero() && order.Notional.Sign() > 0 {
		// 按名义金额推导股数
		qty = order.Notional.Div(price).Round(0)
	}
	if qty.Sign() <= 0 {
		order.Status = domain.OrderStatusRejected
		return order, fmt.Errorf("订单数量非法: %s", qty)
	}
	if order.Side == domain.SideSell {
		qty = qty.Neg()
	}

	cost := qty.Mul(price)
	b.cash = b.cash.Sub(cost)

	pos, exists := b.positions[order.Symbol]
	if !exists {
		pos = domain.Position{
			Symbol:     order.Symbol,
			EntryPrice: price,
			OpenedAt:   now,
		}
	}
	pos.Quantity = pos.Quantity.Add(qty)
	pos.CurrentPrice = price
	if pos.Quantity.IsZero() {
		delete(b.positions, order.Symbol)
	} else {
		b.positions[order.Symbol] = pos
	}

	filled := now
	order.Quantity = qty.Abs()
	order.LimitPrice = price
	order.Status = domain.OrderStatusFilled
	order.FilledAt = &filled

	log.Infof("📄 纸交易成交: %s %s qty=%s price=%s cash=%s",
		order.Side, order.Symbol, order.Quantity, price.StringFixed(2), b.cash.StringFixed(2))
	return order, nil
}
